package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockStore keeps short-lived markers that stop two workers from running the
// same background search. It never guards assignment itself.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AcquireSearchLock attempts to mark a ride as being searched by the holder of token.
// Returns false if another worker already holds the marker.
func (s *LockStore) AcquireSearchLock(ctx context.Context, rideID, token string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, searchLockKey(rideID), token, ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// ReleaseSearchLock releases the marker if it is still owned by token.
func (s *LockStore) ReleaseSearchLock(ctx context.Context, rideID, token string) error {
	return releaseScript.Run(ctx, s.client, []string{searchLockKey(rideID)}, token).Err()
}

func searchLockKey(rideID string) string {
	return fmt.Sprintf("lock:ride-search:%s", rideID)
}
