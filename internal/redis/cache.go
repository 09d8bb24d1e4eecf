package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheStore handles entity caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// DriverCacheTTL bounds how stale a cached RFID or payment mode can be.
const DriverCacheTTL = 30 * time.Second

const (
	driverCachePrefix = "cache:driver:"
	rfidCachePrefix   = "cache:rfid:"
)

// CachedDriver is the subset of a driver the matcher needs.
type CachedDriver struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	RFIDUID        string `json:"rfid_uid"`
	TodaNumber     string `json:"toda_number"`
	TricycleNumber string `json:"tricycle_number"`
	PaymentMode    string `json:"payment_mode"`
}

// GetDriverByRFID resolves an RFID through the cached RFID index.
// Returns nil on a cache miss.
func (s *CacheStore) GetDriverByRFID(ctx context.Context, rfid string) (*CachedDriver, error) {
	id, err := s.client.Get(ctx, rfidCachePrefix+rfid).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	return s.GetDriver(ctx, id)
}

// GetDriver retrieves a driver from cache. Returns nil on a cache miss.
func (s *CacheStore) GetDriver(ctx context.Context, driverID string) (*CachedDriver, error) {
	data, err := s.client.Get(ctx, driverCachePrefix+driverID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var driver CachedDriver
	if err := json.Unmarshal(data, &driver); err != nil {
		return nil, err
	}
	return &driver, nil
}

// SetDriver stores a driver and its RFID index entry.
func (s *CacheStore) SetDriver(ctx context.Context, driver *CachedDriver) error {
	data, err := json.Marshal(driver)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, driverCachePrefix+driver.ID, data, DriverCacheTTL)
	if driver.RFIDUID != "" {
		pipe.Set(ctx, rfidCachePrefix+driver.RFIDUID, driver.ID, DriverCacheTTL)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// InvalidateDriver removes a driver and the given RFID index entries.
func (s *CacheStore) InvalidateDriver(ctx context.Context, driverID string, rfids ...string) error {
	keys := []string{driverCachePrefix + driverID}
	for _, rfid := range rfids {
		if rfid != "" {
			keys = append(keys, rfidCachePrefix+rfid)
		}
	}
	return s.client.Del(ctx, keys...).Err()
}
