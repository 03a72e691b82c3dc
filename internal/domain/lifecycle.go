package domain

// transitionKey is one edge of the ride state machine.
type transitionKey struct {
	from RideStatus
	to   RideStatus
}

// rideTransitions lists every permitted edge and the roles allowed to take it.
// Anything absent from this table is rejected.
var rideTransitions = map[transitionKey][]Role{
	{RideStatusRequested, RideStatusMatched}:    {RoleSystem},
	{RideStatusRequested, RideStatusCancelled}:  {RoleRider, RoleAdmin},
	{RideStatusMatched, RideStatusAccepted}:     {RoleDriver},
	{RideStatusMatched, RideStatusCancelled}:    {RoleRider, RoleDriver, RoleAdmin},
	{RideStatusAccepted, RideStatusInProgress}:  {RoleDriver},
	{RideStatusAccepted, RideStatusCancelled}:   {RoleRider, RoleDriver, RoleAdmin},
	{RideStatusInProgress, RideStatusCompleted}: {RoleDriver},
	{RideStatusInProgress, RideStatusCancelled}: {RoleDriver, RoleAdmin},
}

// CanTransition reports whether role may move a ride from one status to another.
func CanTransition(from, to RideStatus, role Role) bool {
	roles, ok := rideTransitions[transitionKey{from: from, to: to}]
	if !ok {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// RequiresDriver reports whether a ride in status must have a driver bound.
func RequiresDriver(status RideStatus) bool {
	switch status {
	case RideStatusMatched, RideStatusAccepted, RideStatusInProgress, RideStatusCompleted:
		return true
	}
	return false
}

// AllowedRoles returns the roles permitted on an edge, or nil if the edge does not exist.
func AllowedRoles(from, to RideStatus) []Role {
	roles := rideTransitions[transitionKey{from: from, to: to}]
	if roles == nil {
		return nil
	}
	out := make([]Role, len(roles))
	copy(out, roles)
	return out
}

// AllRideStatuses returns every status in lifecycle order.
func AllRideStatuses() []RideStatus {
	return []RideStatus{
		RideStatusRequested,
		RideStatusMatched,
		RideStatusAccepted,
		RideStatusInProgress,
		RideStatusCompleted,
		RideStatusCancelled,
	}
}
