package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"toda/internal/domain"
)

// Key layout:
//
//	queue:drivers            ZSET  entry key -> join timestamp (ms)
//	queue:entry:<key>        HASH  entry fields
//	queue:slot:<driverID>    STRING entry key held by the driver
const (
	queueKey         = "queue:drivers"
	queueEntryPrefix = "queue:entry:"
	queueSlotPrefix  = "queue:slot:"
	queueChannel     = "queue:events"
)

// maxKeyCollisions bounds the timestamp bumps Join performs when two drivers
// join in the same millisecond.
const maxKeyCollisions = 16

var (
	// ErrAlreadyQueued is returned when the driver already holds a queue slot.
	ErrAlreadyQueued = errors.New("driver already in queue")

	// ErrNotQueued is returned when the driver holds no queue slot.
	ErrNotQueued = errors.New("driver not in queue")

	// ErrKeyCollision is returned when no free timestamp key was found.
	ErrKeyCollision = errors.New("queue key collision")
)

// joinScript inserts an entry unless the driver already holds a slot.
// Returns -1 when the driver is queued, 0 on key collision, 1 on success.
var joinScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[3]) == 1 then return -1 end
if redis.call('EXISTS', KEYS[2]) == 1 then return 0 end
redis.call('HSET', KEYS[2], 'driver_id', ARGV[3], 'driver_rfid', ARGV[4], 'driver_name', ARGV[5], 'toda_number', ARGV[6], 'timestamp', ARGV[2], 'status', ARGV[7])
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[1])
redis.call('SET', KEYS[3], ARGV[1])
return 1
`)

var leaveScript = redis.NewScript(`
local key = redis.call('GET', KEYS[2])
if not key then return 0 end
redis.call('ZREM', KEYS[1], key)
redis.call('DEL', ARGV[1] .. key)
redis.call('DEL', KEYS[2])
return 1
`)

var statusScript = redis.NewScript(`
local key = redis.call('GET', KEYS[1])
if not key then return 0 end
redis.call('HSET', ARGV[1] .. key, 'status', ARGV[2])
return 1
`)

// claimScript removes an entry only while it is still waiting, so two
// matchers can never take the same driver.
var claimScript = redis.NewScript(`
if redis.call('HGET', KEYS[2], 'status') ~= 'waiting' then return 0 end
if redis.call('ZREM', KEYS[1], ARGV[1]) == 0 then return 0 end
redis.call('DEL', KEYS[2])
if redis.call('GET', KEYS[3]) == ARGV[1] then redis.call('DEL', KEYS[3]) end
return 1
`)

// QueueEventType names a queue mutation.
type QueueEventType string

const (
	QueueEventJoined  QueueEventType = "joined"
	QueueEventLeft    QueueEventType = "left"
	QueueEventStatus  QueueEventType = "status"
	QueueEventClaimed QueueEventType = "claimed"
)

// QueueEvent is published on every queue mutation.
type QueueEvent struct {
	Type     QueueEventType `json:"type"`
	DriverID string         `json:"driver_id"`
	Key      string         `json:"key,omitempty"`
}

// QueueStore holds the driver queue in Redis.
type QueueStore struct {
	client *redis.Client
}

// NewQueueStore creates a new QueueStore.
func NewQueueStore(client *redis.Client) *QueueStore {
	return &QueueStore{client: client}
}

// Join appends the entry to the queue. If another entry already uses the
// same timestamp the timestamp is bumped by one millisecond. The stored
// entry (with its final timestamp) is returned.
func (s *QueueStore) Join(ctx context.Context, entry domain.QueueEntry) (*domain.QueueEntry, error) {
	if entry.Status == "" {
		entry.Status = domain.QueueStatusWaiting
	}
	return s.place(ctx, entry)
}

// Restore puts a claimed entry back with its original timestamp. If a newer
// entry took that timestamp meanwhile, the restored entry lands right after it.
func (s *QueueStore) Restore(ctx context.Context, entry domain.QueueEntry) error {
	entry.Status = domain.QueueStatusWaiting
	_, err := s.place(ctx, entry)
	return err
}

func (s *QueueStore) place(ctx context.Context, entry domain.QueueEntry) (*domain.QueueEntry, error) {
	for i := 0; i < maxKeyCollisions; i++ {
		res, err := s.insert(ctx, &entry)
		if err != nil {
			return nil, err
		}
		switch res {
		case 1:
			s.publish(ctx, QueueEvent{Type: QueueEventJoined, DriverID: entry.DriverID, Key: entry.Key()})
			return &entry, nil
		case -1:
			return nil, ErrAlreadyQueued
		}
		entry.Timestamp++
	}

	return nil, ErrKeyCollision
}

func (s *QueueStore) insert(ctx context.Context, entry *domain.QueueEntry) (int, error) {
	key := entry.Key()
	return joinScript.Run(ctx, s.client,
		[]string{queueKey, queueEntryPrefix + key, queueSlotPrefix + entry.DriverID},
		key,
		entry.Timestamp,
		entry.DriverID,
		entry.DriverRFID,
		entry.DriverName,
		entry.TodaNumber,
		string(entry.Status),
	).Int()
}

// Leave removes the driver's entry.
func (s *QueueStore) Leave(ctx context.Context, driverID string) error {
	res, err := leaveScript.Run(ctx, s.client,
		[]string{queueKey, queueSlotPrefix + driverID},
		queueEntryPrefix,
	).Int()
	if err != nil {
		return err
	}
	if res == 0 {
		return ErrNotQueued
	}
	s.publish(ctx, QueueEvent{Type: QueueEventLeft, DriverID: driverID})
	return nil
}

// SetStatus changes the status of the driver's entry without moving it.
func (s *QueueStore) SetStatus(ctx context.Context, driverID string, status domain.QueueStatus) error {
	res, err := statusScript.Run(ctx, s.client,
		[]string{queueSlotPrefix + driverID},
		queueEntryPrefix, string(status),
	).Int()
	if err != nil {
		return err
	}
	if res == 0 {
		return ErrNotQueued
	}
	s.publish(ctx, QueueEvent{Type: QueueEventStatus, DriverID: driverID})
	return nil
}

// Claim atomically removes a waiting entry. It reports false when the entry
// is gone or no longer waiting.
func (s *QueueStore) Claim(ctx context.Context, entry *domain.QueueEntry) (bool, error) {
	key := entry.Key()
	res, err := claimScript.Run(ctx, s.client,
		[]string{queueKey, queueEntryPrefix + key, queueSlotPrefix + entry.DriverID},
		key,
	).Int()
	if err != nil {
		return false, err
	}
	if res == 0 {
		return false, nil
	}
	s.publish(ctx, QueueEvent{Type: QueueEventClaimed, DriverID: entry.DriverID, Key: key})
	return true, nil
}

// List returns all entries in ascending timestamp order.
func (s *QueueStore) List(ctx context.Context) ([]domain.QueueEntry, error) {
	members, err := s.client.ZRangeWithScores(ctx, queueKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(members))
	for i, m := range members {
		cmds[i] = pipe.HGetAll(ctx, queueEntryPrefix+m.Member.(string))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	entries := make([]domain.QueueEntry, 0, len(members))
	for i, m := range members {
		fields, err := cmds[i].Result()
		if err != nil || len(fields) == 0 {
			// Hash expired or removed between the two reads.
			continue
		}
		entries = append(entries, domain.QueueEntry{
			DriverID:   fields["driver_id"],
			DriverRFID: fields["driver_rfid"],
			DriverName: fields["driver_name"],
			TodaNumber: fields["toda_number"],
			Timestamp:  int64(m.Score),
			Status:     domain.QueueStatus(fields["status"]),
		})
	}

	return entries, nil
}

// Len returns the number of queued entries.
func (s *QueueStore) Len(ctx context.Context) (int64, error) {
	return s.client.ZCard(ctx, queueKey).Result()
}

// Subscribe streams queue events until ctx is done or the returned close
// func is called. It returns once Redis has confirmed the subscription, so
// every mutation after the call is delivered.
func (s *QueueStore) Subscribe(ctx context.Context) (<-chan QueueEvent, func() error, error) {
	sub := s.client.Subscribe(ctx, queueChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe to queue events: %w", err)
	}
	out := make(chan QueueEvent, 16)

	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev QueueEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					slog.Warn("dropping malformed queue event", "error", err)
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, sub.Close, nil
}

func (s *QueueStore) publish(ctx context.Context, ev QueueEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.client.Publish(ctx, queueChannel, data).Err(); err != nil {
		slog.Warn("publish queue event failed", "type", ev.Type, "driver_id", ev.DriverID, "error", err)
	}
}
