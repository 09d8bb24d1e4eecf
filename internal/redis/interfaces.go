package redis

import (
	"context"
	"time"

	"toda/internal/domain"
)

// QueueStoreInterface defines the driver queue operations.
type QueueStoreInterface interface {
	Join(ctx context.Context, entry domain.QueueEntry) (*domain.QueueEntry, error)
	Restore(ctx context.Context, entry domain.QueueEntry) error
	Leave(ctx context.Context, driverID string) error
	SetStatus(ctx context.Context, driverID string, status domain.QueueStatus) error
	Claim(ctx context.Context, entry *domain.QueueEntry) (bool, error)
	List(ctx context.Context) ([]domain.QueueEntry, error)
	Len(ctx context.Context) (int64, error)
	Subscribe(ctx context.Context) (<-chan QueueEvent, func() error, error)
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireBookingLock(ctx context.Context, bookingID string, ttl time.Duration) (string, bool, error)
	ReleaseBookingLock(ctx context.Context, bookingID, token string) error
}

// NoShowQueueInterface defines the delayed no-show task operations.
type NoShowQueueInterface interface {
	Schedule(ctx context.Context, bookingID string, due time.Time) error
	Cancel(ctx context.Context, bookingID string) error
	ClaimDue(ctx context.Context, now time.Time, limit int64) ([]string, error)
}

// DriverCacheInterface defines the driver cache operations.
type DriverCacheInterface interface {
	GetDriverByRFID(ctx context.Context, rfid string) (*CachedDriver, error)
	GetDriver(ctx context.Context, driverID string) (*CachedDriver, error)
	SetDriver(ctx context.Context, driver *CachedDriver) error
	InvalidateDriver(ctx context.Context, driverID string, rfids ...string) error
}

// Ensure concrete types implement interfaces.
var (
	_ QueueStoreInterface  = (*QueueStore)(nil)
	_ LockStoreInterface   = (*LockStore)(nil)
	_ NoShowQueueInterface = (*NoShowQueue)(nil)
	_ DriverCacheInterface = (*CacheStore)(nil)
)
