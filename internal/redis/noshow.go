package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const noShowDueKey = "noshow:due"

// NoShowQueue is a delayed-task set of bookings whose no-show window
// closes at the member's score (unix ms).
type NoShowQueue struct {
	client *redis.Client
}

// NewNoShowQueue creates a new NoShowQueue.
func NewNoShowQueue(client *redis.Client) *NoShowQueue {
	return &NoShowQueue{client: client}
}

// Schedule registers bookingID to fire at due. Rescheduling replaces the
// previous due time.
func (q *NoShowQueue) Schedule(ctx context.Context, bookingID string, due time.Time) error {
	return q.client.ZAdd(ctx, noShowDueKey, redis.Z{
		Score:  float64(due.UnixMilli()),
		Member: bookingID,
	}).Err()
}

// Cancel drops the task for bookingID, if any.
func (q *NoShowQueue) Cancel(ctx context.Context, bookingID string) error {
	return q.client.ZRem(ctx, noShowDueKey, bookingID).Err()
}

// ClaimDue returns up to limit bookings whose due time is at or before now.
// Each returned booking was removed by this caller only.
func (q *NoShowQueue) ClaimDue(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	ids, err := q.client.ZRangeByScore(ctx, noShowDueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, err
	}

	claimed := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := q.client.ZRem(ctx, noShowDueKey, id).Result()
		if err != nil {
			return claimed, err
		}
		if n == 1 {
			claimed = append(claimed, id)
		}
	}
	return claimed, nil
}
