package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupTTL = time.Hour

// DedupChecker remembers processed job ids so a redelivered job is skipped.
// Key format: dedup:<queue>:<job_id>
type DedupChecker struct {
	client *redis.Client
	prefix string
}

func NewDedupChecker(client *redis.Client, queue string) *DedupChecker {
	return &DedupChecker{client: client, prefix: "dedup:" + queue + ":"}
}

// IsDuplicate reports whether the job has already been processed.
func (d *DedupChecker) IsDuplicate(ctx context.Context, jobID string) (bool, error) {
	n, err := d.client.Exists(ctx, d.prefix+jobID).Result()
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}
	return n > 0, nil
}

// Mark records the job as processed (expires after dedupTTL).
func (d *DedupChecker) Mark(ctx context.Context, jobID string) error {
	if err := d.client.Set(ctx, d.prefix+jobID, "1", dedupTTL).Err(); err != nil {
		return fmt.Errorf("dedup mark: %w", err)
	}
	return nil
}
