package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/99minutos/access-control/internal/core/domain"
)

const (
	// DefaultName matches the queue name used by the rest of the platform.
	DefaultName = "role-cache-invalidation"

	failedRetention = 10000
)

// RedisQueue is a durable job queue on Redis lists.
//
//	<name>:pending     list, producers LPUSH, consumers BLMOVE to :processing
//	<name>:processing  list of in-flight payloads, LREM on ack
//	<name>:delayed     sorted set of retries scored by due time (unix ms)
//	<name>:failed      list of exhausted jobs kept for inspection
//
// Delivery is at-least-once: payloads left in :processing by a crashed worker
// are moved back to :pending by RequeueInflight.
type RedisQueue struct {
	client *redis.Client
	name   string
	retain int64
}

func NewRedisQueue(client *redis.Client, name string) *RedisQueue {
	if name == "" {
		name = DefaultName
	}
	return &RedisQueue{client: client, name: name, retain: failedRetention}
}

func (q *RedisQueue) pendingKey() string    { return q.name + ":pending" }
func (q *RedisQueue) processingKey() string { return q.name + ":processing" }
func (q *RedisQueue) delayedKey() string    { return q.name + ":delayed" }
func (q *RedisQueue) failedKey() string     { return q.name + ":failed" }

func (q *RedisQueue) Enqueue(ctx context.Context, job domain.InvalidationJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("enqueue: marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.pendingKey(), payload).Err(); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

// Dequeue blocks up to wait for the next job. It returns nil, nil on timeout.
func (q *RedisQueue) Dequeue(ctx context.Context, wait time.Duration) (*Delivery, error) {
	raw, err := q.client.BLMove(ctx, q.pendingKey(), q.processingKey(), "RIGHT", "LEFT", wait).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue: %w", err)
	}

	var job domain.InvalidationJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		// Poison payload: drop it from :processing so it is not redelivered.
		_ = q.client.LRem(ctx, q.processingKey(), 1, raw).Err()
		return nil, fmt.Errorf("dequeue: decode job: %w", err)
	}
	return &Delivery{Job: job, receipt: raw}, nil
}

func (q *RedisQueue) Ack(ctx context.Context, d *Delivery) error {
	if err := q.client.LRem(ctx, q.processingKey(), 1, d.receipt).Err(); err != nil {
		return fmt.Errorf("ack job %s: %w", d.Job.ID, err)
	}
	return nil
}

func (q *RedisQueue) Retry(ctx context.Context, job domain.InvalidationJob, at time.Time) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("retry: marshal job: %w", err)
	}
	err = q.client.ZAdd(ctx, q.delayedKey(), redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: payload,
	}).Err()
	if err != nil {
		return fmt.Errorf("retry job %s: %w", job.ID, err)
	}
	return nil
}

// PromoteDue moves retries whose due time has passed back to :pending. The
// ZREM guard keeps concurrent promoters from duplicating a job.
func (q *RedisQueue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	due, err := q.client.ZRangeByScore(ctx, q.delayedKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("promote due: %w", err)
	}

	promoted := 0
	for _, member := range due {
		removed, err := q.client.ZRem(ctx, q.delayedKey(), member).Result()
		if err != nil {
			return promoted, fmt.Errorf("promote due: %w", err)
		}
		if removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, q.pendingKey(), member).Err(); err != nil {
			return promoted, fmt.Errorf("promote due: %w", err)
		}
		promoted++
	}
	return promoted, nil
}

// RequeueInflight returns payloads stranded in :processing to :pending.
// Call it once at worker start-up, before consuming.
func (q *RedisQueue) RequeueInflight(ctx context.Context) (int, error) {
	moved := 0
	for {
		err := q.client.LMove(ctx, q.processingKey(), q.pendingKey(), "RIGHT", "LEFT").Err()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("requeue inflight: %w", err)
		}
		moved++
	}
}

// SaveFailed retains an exhausted job. Only the most recent entries are kept.
func (q *RedisQueue) SaveFailed(ctx context.Context, job domain.InvalidationJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("save failed job: marshal: %w", err)
	}
	pipe := q.client.TxPipeline()
	pipe.LPush(ctx, q.failedKey(), payload)
	pipe.LTrim(ctx, q.failedKey(), 0, q.retain-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save failed job %s: %w", job.ID, err)
	}
	return nil
}

// Failed lists up to limit exhausted jobs, newest first.
func (q *RedisQueue) Failed(ctx context.Context, limit int64) ([]domain.InvalidationJob, error) {
	if limit <= 0 {
		limit = 50
	}
	raws, err := q.client.LRange(ctx, q.failedKey(), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list failed jobs: %w", err)
	}
	jobs := make([]domain.InvalidationJob, 0, len(raws))
	for _, raw := range raws {
		var job domain.InvalidationJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
