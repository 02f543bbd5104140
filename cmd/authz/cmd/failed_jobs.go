package cmd

import (
	"context"
	"encoding/json"
	"errors"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/99minutos/access-control/internal/core/domain"
	"github.com/99minutos/access-control/internal/infrastructure/db/mongo"
	"github.com/99minutos/access-control/internal/infrastructure/db/redis"
	"github.com/99minutos/access-control/internal/infrastructure/queue"
)

var failedJobsCmd = &cobra.Command{
	Use:   "failed-jobs",
	Short: "List invalidation jobs that exhausted their retries",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt64("limit")
		ctx := cmd.Context()

		jobs, err := listFailedJobs(ctx, limit)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(jobs)
	},
}

func init() {
	failedJobsCmd.Flags().Int64("limit", 50, "Maximum number of jobs to list")
}

func listFailedJobs(ctx context.Context, limit int64) ([]domain.InvalidationJob, error) {
	if cfg.Mongo.URI != "" {
		client, db, err := mongo.Connect(ctx, mongoConfig())
		if err != nil {
			return nil, err
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		return mongo.NewFailedJobRepository(db).List(ctx, limit)
	}

	if cfg.Cache.Driver == "memory" {
		return nil, errors.New("failed jobs are not retained across processes with CACHE_DRIVER=memory")
	}
	rdb, err := redis.Connect(ctx, redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Timeout:  cfg.Redis.Timeout,
	})
	if err != nil {
		return nil, err
	}
	defer func(c *goredis.Client) { _ = c.Close() }(rdb)
	return queue.NewRedisQueue(rdb, cfg.Queue.Name).Failed(ctx, limit)
}
