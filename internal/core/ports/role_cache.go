package ports

import (
	"context"

	"github.com/99minutos/access-control/internal/core/domain"
)

// RoleCache mirrors role grants for constant-time authorization checks.
// It is a rebuildable projection, never the source of truth.
type RoleCache interface {
	// CacheRoles adds roles to the user's set for scope and resets its TTL.
	// Empty roles is a no-op.
	CacheRoles(ctx context.Context, userID int64, scope domain.ScopeKey, roles []string) error
	// GetRoles returns the cached set, or ok=false on a miss.
	GetRoles(ctx context.Context, userID int64, scope domain.ScopeKey) (roles []string, ok bool, err error)
	// UsersWithRole lists the reverse index for role in scope.
	UsersWithRole(ctx context.Context, role string, scope domain.ScopeKey) ([]int64, error)
	InvalidateUser(ctx context.Context, userID int64, scope domain.ScopeKey) error
	// InvalidateRole fans out one queued job per holder, then drops the reverse set.
	InvalidateRole(ctx context.Context, role string, scope domain.ScopeKey) error
}

// JobQueue accepts invalidation jobs for asynchronous processing.
type JobQueue interface {
	Enqueue(ctx context.Context, job domain.InvalidationJob) error
}

// FailedJobStore retains jobs that exhausted their retries.
type FailedJobStore interface {
	SaveFailed(ctx context.Context, job domain.InvalidationJob) error
}
