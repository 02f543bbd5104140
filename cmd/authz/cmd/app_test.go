package cmd

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/99minutos/access-control/internal/core/domain"
	"github.com/99minutos/access-control/internal/infrastructure/config"
	"github.com/99minutos/access-control/internal/infrastructure/db/memory"
	"github.com/99minutos/access-control/internal/infrastructure/queue"
	"github.com/99minutos/access-control/internal/infrastructure/rolecache"
)

func withConfig(t *testing.T, c *config.Config) {
	t.Helper()
	prevCfg, prevLog := cfg, log
	cfg, log = c, zerolog.Nop()
	t.Cleanup(func() { cfg, log = prevCfg, prevLog })
}

func TestNewApp_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		driver  string
		wantErr string
	}{
		{"misspelled driver", "mem", "CACHE_DRIVER"},
		{"wrong case driver", "Memory", "CACHE_DRIVER"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			withConfig(t, &config.Config{
				JWT:      config.JWTConfig{AccessSecret: "a", RefreshSecret: "b"},
				Cache:    config.CacheConfig{Driver: tc.driver},
				Postgres: config.PostgresConfig{DSN: "postgres://unreachable.invalid/authz"},
			})

			a, err := newApp(context.Background())
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("newApp = %v, %v; want error containing %q", a, err, tc.wantErr)
			}
		})
	}
}

func TestStartWorkers_RequeuesInflightJobs(t *testing.T) {
	withConfig(t, &config.Config{Queue: config.QueueConfig{Name: "test-queue", Workers: 1, MaxAttempts: 3, Backoff: time.Second}})

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	q := queue.NewRedisQueue(client, "test-queue")
	cache := rolecache.New(memory.NewSetStore(), q, time.Hour, zerolog.Nop())
	a := &app{cache: cache, source: q, failed: q, redisQueue: q}

	if err := cache.CacheRoles(ctx, 1, domain.GlobalScope, []string{domain.RoleAdmin}); err != nil {
		t.Fatalf("CacheRoles: %v", err)
	}
	// A previous process took the job and stopped before settling it.
	if err := q.Enqueue(ctx, domain.InvalidationJob{ID: "j1", UserID: 1}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if d, err := q.Dequeue(ctx, 100*time.Millisecond); err != nil || d == nil {
		t.Fatalf("Dequeue: %v, %v", d, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d := a.startWorkers(runCtx)
	defer func() {
		cancel()
		d.Wait()
	}()

	deadline := time.Now().Add(3 * time.Second)
	for {
		_, ok, err := cache.GetRoles(ctx, 1, domain.GlobalScope)
		if err != nil {
			t.Fatalf("GetRoles: %v", err)
		}
		if !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("stranded job was never processed")
		}
		time.Sleep(20 * time.Millisecond)
	}

	deadline = time.Now().Add(time.Second)
	for {
		n, _ := client.LLen(ctx, "test-queue:processing").Result()
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never acknowledged, %d left in processing", n)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
