package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/access-control/internal/core/domain"
	"github.com/99minutos/access-control/internal/core/ports"
)

const failedJobsCollection = "invalidation_failures"

// FailedJobRepository archives invalidation jobs that exhausted their retries.
type FailedJobRepository struct {
	coll *mongo.Collection
}

var _ ports.FailedJobStore = (*FailedJobRepository)(nil)

func NewFailedJobRepository(db *mongo.Database) *FailedJobRepository {
	return &FailedJobRepository{coll: db.Collection(failedJobsCollection)}
}

// EnsureIndexes creates the lookup indexes used by List. Safe to call on every start.
func (r *FailedJobRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "job_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "failed_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("ensure failed job indexes: %w", err)
	}
	return nil
}

// SaveFailed upserts by job id so a redelivered job is archived once.
func (r *FailedJobRepository) SaveFailed(ctx context.Context, job domain.InvalidationJob) error {
	doc := bson.M{
		"job_id":      job.ID,
		"user_id":     job.UserID,
		"attempts":    job.Attempts,
		"enqueued_at": job.EnqueuedAt.UTC(),
		"last_error":  job.LastError,
		"failed_at":   time.Now().UTC(),
	}
	if job.TenantID != nil {
		doc["tenant_id"] = *job.TenantID
	}

	_, err := r.coll.UpdateOne(ctx,
		bson.M{"job_id": job.ID},
		bson.M{"$set": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save failed job %s: %w", job.ID, err)
	}
	return nil
}

// List returns up to limit archived jobs, newest first.
func (r *FailedJobRepository) List(ctx context.Context, limit int64) ([]domain.InvalidationJob, error) {
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().SetSort(bson.D{{Key: "failed_at", Value: -1}}).SetLimit(limit)
	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list failed jobs: %w", err)
	}
	defer cursor.Close(ctx)

	jobs := []domain.InvalidationJob{}
	if err := cursor.All(ctx, &jobs); err != nil {
		return nil, fmt.Errorf("decode failed jobs: %w", err)
	}
	return jobs, nil
}
