package tests

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"ridematch/internal/domain"
	"ridematch/internal/geo"
	"ridematch/internal/notify"
	"ridematch/internal/redis"
	"ridematch/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK DRIVER REPOSITORY
// ──────────────────────────────────────────────

// MockDriverRepository is a mock implementation of DriverRepository.
// Claim and Release honour the same preconditions as the SQL updates.
type MockDriverRepository struct {
	mu      sync.RWMutex
	drivers map[string]*domain.Driver

	// Counters for verification
	ClaimCallCount   int32
	ReleaseCallCount int32

	// Error injection
	FilterError  error
	ClaimError   error
	ReleaseError error
}

// NewMockDriverRepository creates a new mock driver repository.
func NewMockDriverRepository() *MockDriverRepository {
	return &MockDriverRepository{
		drivers: make(map[string]*domain.Driver),
	}
}

// AddDriver adds a driver to the mock repository.
func (m *MockDriverRepository) AddDriver(driver *domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.ID] = driver
}

// RemoveDriver deletes a driver record.
func (m *MockDriverRepository) RemoveDriver(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drivers, id)
}

// SetAvailable overwrites a driver's availability flag.
func (m *MockDriverRepository) SetAvailable(id string, available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.drivers[id]; ok {
		d.IsAvailable = available
	}
}

func (m *MockDriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	driver, ok := m.drivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *driver
	return &copy, nil
}

func (m *MockDriverRepository) FilterEligible(ctx context.Context, ids []string) (map[string]*domain.Driver, error) {
	if m.FilterError != nil {
		return nil, m.FilterError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string]*domain.Driver)
	for _, id := range ids {
		if d, ok := m.drivers[id]; ok && d.Eligible() {
			copy := *d
			result[id] = &copy
		}
	}
	return result, nil
}

func (m *MockDriverRepository) Claim(ctx context.Context, driverID string, at time.Time) (bool, error) {
	atomic.AddInt32(&m.ClaimCallCount, 1)
	if m.ClaimError != nil {
		return false, m.ClaimError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[driverID]
	if !ok || !d.IsActive || !d.IsAvailable {
		return false, nil
	}
	d.IsAvailable = false
	d.LastAssignedAt = &at
	return true, nil
}

func (m *MockDriverRepository) Release(ctx context.Context, driverID string, at time.Time) (bool, error) {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	if m.ReleaseError != nil {
		return false, m.ReleaseError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[driverID]
	if !ok {
		return false, nil
	}
	d.IsAvailable = true
	d.LastReleasedAt = &at
	return true, nil
}

func (m *MockDriverRepository) UpdateLocation(ctx context.Context, driverID string, p geo.Point, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[driverID]
	if !ok {
		return repository.ErrNotFound
	}
	d.CurrentLocation = &p
	d.LocationUpdatedAt = &at
	return nil
}

// GetDriver returns a snapshot of the driver for test assertions.
func (m *MockDriverRepository) GetDriver(id string) *domain.Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drivers[id]
	if !ok {
		return nil
	}
	copy := *d
	return &copy
}

// ──────────────────────────────────────────────
// MOCK RIDE REPOSITORY
// ──────────────────────────────────────────────

// MockRideRepository is a mock implementation of RideRepository.
// Conditional updates check their WHERE clause under the lock.
type MockRideRepository struct {
	mu     sync.RWMutex
	rides  map[string]*domain.Ride
	events []*domain.RideEvent

	// Counters for verification
	ClaimCallCount  int32
	RevertCallCount int32

	// Error injection
	GetError          error
	ClaimError        error
	ChangeStatusError error
	AppendEventError  error

	// BeforeClaim runs before the claim precondition is checked, to let a
	// test change the ride concurrently.
	BeforeClaim func(rideID string)
}

// NewMockRideRepository creates a new mock ride repository.
func NewMockRideRepository() *MockRideRepository {
	return &MockRideRepository{
		rides: make(map[string]*domain.Ride),
	}
}

// AddRide adds a ride to the mock repository.
func (m *MockRideRepository) AddRide(ride *domain.Ride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[ride.ID] = ride
}

// SetStatus overwrites a ride's status.
func (m *MockRideRepository) SetStatus(id string, status domain.RideStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rides[id]; ok {
		r.Status = status
	}
}

func (m *MockRideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rides[ride.ID]; ok {
		return repository.ErrAlreadyExists
	}
	copy := *ride
	m.rides[ride.ID] = &copy
	return nil
}

func (m *MockRideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *ride
	return &copy, nil
}

func (m *MockRideRepository) GetAll(ctx context.Context) ([]*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Ride, 0, len(m.rides))
	for _, r := range m.rides {
		copy := *r
		result = append(result, &copy)
	}
	return result, nil
}

func (m *MockRideRepository) ClaimForDriver(ctx context.Context, rideID, driverID string, at time.Time) (bool, error) {
	atomic.AddInt32(&m.ClaimCallCount, 1)
	if m.BeforeClaim != nil {
		m.BeforeClaim(rideID)
	}
	if m.ClaimError != nil {
		return false, m.ClaimError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok || r.Status != domain.RideStatusRequested || r.DriverID != "" {
		return false, nil
	}
	r.Status = domain.RideStatusAccepted
	r.DriverID = driverID
	r.MatchedAt = &at
	r.AcceptedAt = &at
	return true, nil
}

func (m *MockRideRepository) RevertClaim(ctx context.Context, rideID, driverID string) (bool, error) {
	atomic.AddInt32(&m.RevertCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok || r.DriverID != driverID || r.Status != domain.RideStatusAccepted {
		return false, nil
	}
	r.Status = domain.RideStatusRequested
	r.DriverID = ""
	r.MatchedAt = nil
	r.AcceptedAt = nil
	return true, nil
}

func (m *MockRideRepository) ChangeStatus(ctx context.Context, change repository.StatusChange) (bool, error) {
	if m.ChangeStatusError != nil {
		return false, m.ChangeStatusError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[change.RideID]
	if !ok || r.Status != change.From || r.DriverID != change.DriverID {
		return false, nil
	}
	at := change.At
	r.Status = change.To
	switch change.To {
	case domain.RideStatusMatched:
		r.MatchedAt = &at
	case domain.RideStatusAccepted:
		r.AcceptedAt = &at
	case domain.RideStatusInProgress:
		r.StartedAt = &at
	case domain.RideStatusCompleted:
		r.CompletedAt = &at
	case domain.RideStatusCancelled:
		r.CancelledAt = &at
		r.CancelledBy = change.CancelledBy
		r.CancelReason = change.Reason
	}
	return true, nil
}

func (m *MockRideRepository) AppendEvent(ctx context.Context, event *domain.RideEvent) error {
	if m.AppendEventError != nil {
		return m.AppendEventError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// GetRide returns a snapshot of the ride for test assertions.
func (m *MockRideRepository) GetRide(id string) *domain.Ride {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[id]
	if !ok {
		return nil
	}
	copy := *r
	return &copy
}

// Events returns the timeline entries recorded for a ride.
func (m *MockRideRepository) Events(rideID string) []*domain.RideEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.RideEvent
	for _, e := range m.events {
		if e.RideID == rideID {
			result = append(result, e)
		}
	}
	return result
}

// CountRides returns the number of rides.
func (m *MockRideRepository) CountRides() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rides)
}

// ──────────────────────────────────────────────
// MOCK USER REPOSITORY
// ──────────────────────────────────────────────

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

// NewMockUserRepository creates a new mock user repository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[string]*domain.User)}
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Phone == user.Phone {
			return repository.ErrAlreadyExists
		}
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *u
	return &copy, nil
}

func (m *MockUserRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Phone == phone {
			copy := *u
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockUserRepository) GetAll(ctx context.Context) ([]*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.User, 0, len(m.users))
	for _, u := range m.users {
		copy := *u
		result = append(result, &copy)
	}
	return result, nil
}

// ──────────────────────────────────────────────
// MOCK LOCATION STORE
// ──────────────────────────────────────────────

// MockLocationStore is a mock implementation of LocationStore that answers
// radius queries with the haversine distance.
type MockLocationStore struct {
	mu        sync.RWMutex
	locations map[string]geo.Point

	// Radii queried, in call order
	Radii []int

	// Error injection
	FindError error
}

// NewMockLocationStore creates a new mock location store.
func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{
		locations: make(map[string]geo.Point),
	}
}

// SetLocation places a driver in the index.
func (m *MockLocationStore) SetLocation(driverID string, p geo.Point) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[driverID] = p
}

func (m *MockLocationStore) UpdateLocation(ctx context.Context, driverID string, p geo.Point) error {
	m.SetLocation(driverID, p)
	return nil
}

func (m *MockLocationStore) FindNear(ctx context.Context, p geo.Point, radiusMeters int) ([]redis.DriverLocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Radii = append(m.Radii, radiusMeters)
	if m.FindError != nil {
		return nil, m.FindError
	}

	radiusKm := geo.MetersToKm(radiusMeters)
	var result []redis.DriverLocation
	for id, loc := range m.locations {
		if geo.HaversineKm(p, loc) <= radiusKm {
			result = append(result, redis.DriverLocation{DriverID: id, Location: loc})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return geo.HaversineKm(p, result[i].Location) < geo.HaversineKm(p, result[j].Location)
	})
	return result, nil
}

func (m *MockLocationStore) RemoveLocation(ctx context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locations, driverID)
	return nil
}

// HasLocation reports whether the driver is in the index.
func (m *MockLocationStore) HasLocation(driverID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.locations[driverID]
	return ok
}

// QueriedRadii returns a copy of the radii queried so far.
func (m *MockLocationStore) QueriedRadii() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int(nil), m.Radii...)
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of LockStore.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]string

	AcquireError error
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{locks: make(map[string]string)}
}

func (m *MockLockStore) AcquireSearchLock(ctx context.Context, rideID, token string, ttl time.Duration) (bool, error) {
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.locks[rideID]; held {
		return false, nil
	}
	m.locks[rideID] = token
	return true, nil
}

func (m *MockLockStore) ReleaseSearchLock(ctx context.Context, rideID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[rideID] == token {
		delete(m.locks, rideID)
	}
	return nil
}

// Hold marks a ride as being searched by someone else.
func (m *MockLockStore) Hold(rideID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks[rideID] = "other-worker"
}

// IsHeld reports whether a search marker exists for the ride.
func (m *MockLockStore) IsHeld(rideID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, held := m.locks[rideID]
	return held
}

// ──────────────────────────────────────────────
// MOCK NOTIFIER
// ──────────────────────────────────────────────

// MockNotifier records every event it receives.
type MockNotifier struct {
	mu       sync.Mutex
	Assigned []notify.Event
	Changed  []notify.Event
}

func (m *MockNotifier) RideAssigned(ctx context.Context, e notify.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Assigned = append(m.Assigned, e)
}

func (m *MockNotifier) StatusChanged(ctx context.Context, e notify.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Changed = append(m.Changed, e)
}

// Counts returns the number of assigned and status-changed events.
func (m *MockNotifier) Counts() (assigned, changed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Assigned), len(m.Changed)
}

// ──────────────────────────────────────────────
// MOCK SCHEDULER
// ──────────────────────────────────────────────

// MockScheduler records scheduled searches without running them.
type MockScheduler struct {
	mu    sync.Mutex
	Rides []string
	Radii []int
}

func (m *MockScheduler) Schedule(ride *domain.Ride, initialRadius int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rides = append(m.Rides, ride.ID)
	m.Radii = append(m.Radii, initialRadius)
}

// Ensure mocks implement interfaces.
var (
	_ repository.DriverRepository  = (*MockDriverRepository)(nil)
	_ repository.RideRepository    = (*MockRideRepository)(nil)
	_ repository.UserRepository    = (*MockUserRepository)(nil)
	_ redis.LocationStoreInterface = (*MockLocationStore)(nil)
	_ redis.LockStoreInterface     = (*MockLockStore)(nil)
	_ notify.Notifier              = (*MockNotifier)(nil)
)
