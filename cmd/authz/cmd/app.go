package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/labstack/echo/v4"
	goredis "github.com/redis/go-redis/v9"
	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"github.com/99minutos/access-control/internal/api"
	"github.com/99minutos/access-control/internal/api/handler"
	"github.com/99minutos/access-control/internal/core/access"
	"github.com/99minutos/access-control/internal/core/ports"
	"github.com/99minutos/access-control/internal/core/service"
	"github.com/99minutos/access-control/internal/infrastructure/db/memory"
	"github.com/99minutos/access-control/internal/infrastructure/db/mongo"
	"github.com/99minutos/access-control/internal/infrastructure/db/postgres"
	"github.com/99minutos/access-control/internal/infrastructure/db/redis"
	"github.com/99minutos/access-control/internal/infrastructure/queue"
	"github.com/99minutos/access-control/internal/infrastructure/rolecache"
	"github.com/99minutos/access-control/pkg/logger"
)

// app holds every long-lived component. Fields for optional backends stay nil
// when the backend is not configured.
type app struct {
	db    *sql.DB
	rdb   *goredis.Client
	mongo *mongodriver.Client

	users      *postgres.UserRepository
	cache      *rolecache.Cache
	source     queue.Source
	failed     ports.FailedJobStore
	redisQueue *queue.RedisQueue
	mongoJobs  *mongo.FailedJobRepository
	dedup      queue.Deduper

	auth   *service.AuthService
	grants *service.GrantService
	tokens *service.TokenService
	gates  *access.Gates
}

// newApp validates the configuration before touching any backend, so a bad
// setting never reaches a half-connected process.
func newApp(ctx context.Context) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &app{}
	ready := false
	defer func() {
		if !ready {
			a.close(context.Background())
		}
	}()

	db, err := postgres.Connect(ctx, postgres.Config{DSN: cfg.Postgres.DSN, Timeout: cfg.Postgres.Timeout})
	if err != nil {
		return nil, err
	}
	a.db = db
	a.users = postgres.NewUserRepository(db, cfg.Postgres.Timeout)
	log.Info().Msg("connected to postgres")

	var (
		store    rolecache.SetStore
		jobQueue ports.JobQueue
	)
	switch cfg.Cache.Driver {
	case "memory":
		mq := queue.NewMemoryQueue()
		a.source, a.failed, jobQueue = mq, mq, mq
		store = memory.NewSetStore()
		log.Warn().Msg("using in-process role cache and queue, state is lost on restart")
	case "redis":
		rdb, err := redis.Connect(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Timeout:  cfg.Redis.Timeout,
		})
		if err != nil {
			return nil, err
		}
		a.rdb = rdb
		a.redisQueue = queue.NewRedisQueue(rdb, cfg.Queue.Name)
		a.source, a.failed, jobQueue = a.redisQueue, a.redisQueue, a.redisQueue
		a.dedup = redis.NewDedupChecker(rdb, cfg.Queue.Name)
		store = redis.NewSetStore(rdb, cfg.Redis.Timeout)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")
	}

	if cfg.Mongo.URI != "" {
		client, mdb, err := mongo.Connect(ctx, mongoConfig())
		if err != nil {
			return nil, err
		}
		a.mongo = client
		a.mongoJobs = mongo.NewFailedJobRepository(mdb)
		if err := a.mongoJobs.EnsureIndexes(ctx); err != nil {
			log.Warn().Err(err).Msg("failed job indexes not created")
		}
		a.failed = a.mongoJobs
		log.Info().Str("database", cfg.Mongo.Database).Msg("connected to mongo, failed jobs archived there")
	}

	a.cache = rolecache.New(store, jobQueue, cfg.Cache.TTL, log)

	a.tokens, err = service.NewTokenService(service.TokenConfig{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
	})
	if err != nil {
		return nil, err
	}

	resolver := service.NewRoleResolver(a.users)
	credentials := service.NewCredentialVerifier(a.users, service.NewPasswordHasher(cfg.Password.Cost))
	a.auth = service.NewAuthService(credentials, a.tokens, resolver, a.cache, log)
	a.grants = service.NewGrantService(a.users, resolver, a.cache, log)
	a.gates = access.NewGates(a.tokens, a.cache, log, access.WithFallback(resolver))

	ready = true
	return a, nil
}

func mongoConfig() mongo.Config {
	return mongo.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		Timeout:  cfg.Mongo.Timeout,
		AppName:  "authz",
	}
}

// dispatcher builds the invalidation worker pool over the configured queue.
func (a *app) dispatcher() *queue.Dispatcher {
	processor := queue.NewInvalidationProcessor(a.cache, a.dedup, logger.Component("invalidation_processor"))
	return queue.NewDispatcher(a.source, processor, a.failed, queue.Options{
		Workers:     cfg.Queue.Workers,
		MaxAttempts: cfg.Queue.MaxAttempts,
		Backoff:     cfg.Queue.Backoff,
	}, log)
}

// startWorkers returns jobs a previous process left in flight to the queue,
// then starts the dispatcher. Requeue failures are logged: the jobs stay in
// the processing list for the next start.
func (a *app) startWorkers(ctx context.Context) *queue.Dispatcher {
	if a.redisQueue != nil {
		if n, err := a.redisQueue.RequeueInflight(ctx); err != nil {
			log.Warn().Err(err).Msg("requeue of in-flight jobs failed")
		} else if n > 0 {
			log.Info().Int("jobs", n).Msg("requeued in-flight jobs from a previous run")
		}
	}

	d := a.dispatcher()
	d.Start(ctx)
	log.Info().Int("workers", cfg.Queue.Workers).Str("queue", cfg.Queue.Name).Msg("invalidation workers started")
	return d
}

func (a *app) router() *echo.Echo {
	deps := map[string]handler.Pinger{
		"postgres": a.users,
	}
	if a.rdb != nil {
		deps["redis"] = handler.PingFunc(func(ctx context.Context) error { return a.rdb.Ping(ctx).Err() })
	}
	if a.mongo != nil {
		deps["mongodb"] = handler.PingFunc(func(ctx context.Context) error { return a.mongo.Ping(ctx, nil) })
	}

	return api.NewRouter(api.RouterDeps{
		Gates:   a.gates,
		Auth:    handler.NewAuthHandler(a.auth, a.tokens.RefreshTTL(), cfg.IsProduction(), logger.Component("auth_handler")),
		Grants:  handler.NewGrantHandler(a.grants),
		Tenants: handler.NewTenantHandler(),
		Ready:   handler.NewHealthDependenciesHandler(deps),
		Log:     logger.Component("http"),
	})
}

func (a *app) close(ctx context.Context) {
	if a.mongo != nil {
		_ = a.mongo.Disconnect(ctx)
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
