package queue

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/99minutos/access-control/internal/core/domain"
)

// UserInvalidator is the slice of the role cache the processor needs.
type UserInvalidator interface {
	InvalidateUser(ctx context.Context, userID int64, scope domain.ScopeKey) error
}

// Deduper remembers processed job ids.
type Deduper interface {
	IsDuplicate(ctx context.Context, jobID string) (bool, error)
	Mark(ctx context.Context, jobID string) error
}

// InvalidationProcessor applies a single-user invalidation job.
type InvalidationProcessor struct {
	cache UserInvalidator
	dedup Deduper
	log   zerolog.Logger
}

// NewInvalidationProcessor builds a processor. dedup may be nil.
func NewInvalidationProcessor(cache UserInvalidator, dedup Deduper, log zerolog.Logger) *InvalidationProcessor {
	return &InvalidationProcessor{cache: cache, dedup: dedup, log: log}
}

// Handle returns the cache error untouched so the dispatcher can retry it.
// Dedup failures never fail the job.
func (p *InvalidationProcessor) Handle(ctx context.Context, job domain.InvalidationJob) error {
	if p.dedup != nil && job.ID != "" {
		dup, err := p.dedup.IsDuplicate(ctx, job.ID)
		if err != nil {
			p.log.Warn().Err(err).Str("job_id", job.ID).Msg("dedup check failed, processing anyway")
		}
		if dup {
			p.log.Debug().Str("job_id", job.ID).Msg("skipping already processed job")
			return nil
		}
	}

	if err := p.cache.InvalidateUser(ctx, job.UserID, job.Scope()); err != nil {
		return err
	}

	if p.dedup != nil && job.ID != "" {
		if err := p.dedup.Mark(ctx, job.ID); err != nil {
			p.log.Warn().Err(err).Str("job_id", job.ID).Msg("dedup mark failed")
		}
	}
	return nil
}
