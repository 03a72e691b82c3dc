package domain

import "time"

// Role identifies who is acting on a ride.
type Role string

const (
	RoleRider  Role = "rider"
	RoleDriver Role = "driver"
	RoleAdmin  Role = "admin"
	RoleSystem Role = "system"
)

// ParseRole converts a raw string into a known Role.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleRider, RoleDriver, RoleAdmin, RoleSystem:
		return r, true
	}
	return "", false
}

// User represents a rider, driver or admin account.
type User struct {
	ID        string
	Name      string
	Phone     string
	Role      Role
	IsActive  bool
	CreatedAt time.Time
}
