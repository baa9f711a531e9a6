package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const reviewQueueKey = "moderation:review_queue"

// ReviewQueue orders pending images for admins. Scores are queue
// timestamps; an appeal re-scores its image far enough back that appealed
// items surface first. The database stays the source of truth for status;
// this is ordering only.
type ReviewQueue struct {
	rdb   *redis.Client
	boost time.Duration
}

func NewReviewQueue(rdb *redis.Client, boost time.Duration) *ReviewQueue {
	return &ReviewQueue{rdb: rdb, boost: boost}
}

func (q *ReviewQueue) Push(ctx context.Context, id string, at time.Time) error {
	if q.rdb == nil {
		return nil
	}
	return q.rdb.ZAdd(ctx, reviewQueueKey, redis.Z{
		Score:  float64(at.Unix()),
		Member: id,
	}).Err()
}

// Boost moves an appealed image to the front of the queue.
func (q *ReviewQueue) Boost(ctx context.Context, id string, at time.Time) error {
	if q.rdb == nil {
		return nil
	}
	return q.rdb.ZAdd(ctx, reviewQueueKey, redis.Z{
		Score:  float64(at.Add(-q.boost).Unix()),
		Member: id,
	}).Err()
}

func (q *ReviewQueue) Remove(ctx context.Context, ids ...string) error {
	if q.rdb == nil || len(ids) == 0 {
		return nil
	}
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	return q.rdb.ZRem(ctx, reviewQueueKey, members...).Err()
}

func (q *ReviewQueue) List(ctx context.Context, limit int) ([]string, error) {
	if q.rdb == nil {
		return nil, nil
	}
	return q.rdb.ZRange(ctx, reviewQueueKey, 0, int64(limit)-1).Result()
}
