package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/99minutos/access-control/internal/core/domain"
)

// MemoryQueue is an in-process Source for development and tests. It offers
// the same retry semantics as RedisQueue but nothing survives a restart.
type MemoryQueue struct {
	mu      sync.Mutex
	pending []domain.InvalidationJob
	delayed []delayedJob
	failed  []domain.InvalidationJob
	notify  chan struct{}
}

type delayedJob struct {
	job domain.InvalidationJob
	at  time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{notify: make(chan struct{}, 1)}
}

func (q *MemoryQueue) Enqueue(_ context.Context, job domain.InvalidationJob) error {
	q.mu.Lock()
	q.pending = append(q.pending, job)
	q.mu.Unlock()
	q.wake()
	return nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context, wait time.Duration) (*Delivery, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if len(q.pending) > 0 {
			job := q.pending[0]
			q.pending = q.pending[1:]
			q.mu.Unlock()
			return &Delivery{Job: job}, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-q.notify:
		}
	}
}

func (q *MemoryQueue) Ack(context.Context, *Delivery) error { return nil }

func (q *MemoryQueue) Retry(_ context.Context, job domain.InvalidationJob, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.delayed = append(q.delayed, delayedJob{job: job, at: at})
	return nil
}

func (q *MemoryQueue) PromoteDue(_ context.Context, now time.Time) (int, error) {
	q.mu.Lock()
	sort.Slice(q.delayed, func(i, j int) bool { return q.delayed[i].at.Before(q.delayed[j].at) })
	n := 0
	for n < len(q.delayed) && !q.delayed[n].at.After(now) {
		q.pending = append(q.pending, q.delayed[n].job)
		n++
	}
	q.delayed = q.delayed[n:]
	q.mu.Unlock()

	if n > 0 {
		q.wake()
	}
	return n, nil
}

func (q *MemoryQueue) SaveFailed(_ context.Context, job domain.InvalidationJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed = append(q.failed, job)
	return nil
}

// Failed returns a snapshot of exhausted jobs.
func (q *MemoryQueue) Failed() []domain.InvalidationJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.InvalidationJob(nil), q.failed...)
}

// Len reports pending plus delayed jobs.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) + len(q.delayed)
}

func (q *MemoryQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
