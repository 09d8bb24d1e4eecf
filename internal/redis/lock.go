package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// AcquireBookingLock attempts to acquire the matching lock for a booking.
// Returns the owner token and true if the lock was acquired.
func (s *LockStore) AcquireBookingLock(ctx context.Context, bookingID string, ttl time.Duration) (string, bool, error) {
	key := fmt.Sprintf("lock:booking:%s", bookingID)
	token := uuid.NewString()

	ok, err := s.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}

	return token, ok, nil
}

// ReleaseBookingLock releases the lock if token still owns it.
func (s *LockStore) ReleaseBookingLock(ctx context.Context, bookingID, token string) error {
	key := fmt.Sprintf("lock:booking:%s", bookingID)

	return releaseScript.Run(ctx, s.client, []string{key}, token).Err()
}
