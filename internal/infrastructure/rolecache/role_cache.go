// Package rolecache implements the role cache as two set indices over a
// key/set substrate (Redis in production, go-cache in development).
//
// Key layout:
//
//	user_roles:<userID>:<tenantID|global>  → set of role names, TTL-bound
//	role_users:<role>:<tenantID|global>    → set of user ids, no TTL
//
// The two indices are kept adjacent, not transactional. Both are projections
// of the relational grants and can be dropped at any time.
package rolecache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/99minutos/access-control/internal/api/metrics"
	"github.com/99minutos/access-control/internal/core/domain"
	"github.com/99minutos/access-control/internal/core/ports"
)

const (
	DefaultTTL = time.Hour

	userRolesPrefix = "user_roles"
	roleUsersPrefix = "role_users"
)

// SetStore is the cache substrate: atomic per-key string-set operations.
type SetStore interface {
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	Del(ctx context.Context, keys ...string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

var _ ports.RoleCache = (*Cache)(nil)

// Cache is the forward/reverse set-index role cache.
type Cache struct {
	store SetStore
	queue ports.JobQueue
	ttl   time.Duration
	now   func() time.Time
	log   zerolog.Logger
}

func New(store SetStore, queue ports.JobQueue, ttl time.Duration, log zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		store: store,
		queue: queue,
		ttl:   ttl,
		now:   time.Now,
		log:   log.With().Str("component", "role_cache").Logger(),
	}
}

func (c *Cache) CacheRoles(ctx context.Context, userID int64, scope domain.ScopeKey, roles []string) error {
	if len(roles) == 0 {
		return nil
	}

	key := UserRolesKey(userID, scope)
	if err := c.store.SAdd(ctx, key, roles...); err != nil {
		return fmt.Errorf("cache roles: %w", err)
	}
	if err := c.store.Expire(ctx, key, c.ttl); err != nil {
		return fmt.Errorf("cache roles: %w", err)
	}

	member := strconv.FormatInt(userID, 10)
	for _, role := range roles {
		if err := c.store.SAdd(ctx, RoleUsersKey(role, scope), member); err != nil {
			return fmt.Errorf("cache roles: reverse index %s: %w", role, err)
		}
	}
	return nil
}

// GetRoles treats an empty set as a miss: the substrate cannot tell an
// expired key from one that never existed.
func (c *Cache) GetRoles(ctx context.Context, userID int64, scope domain.ScopeKey) ([]string, bool, error) {
	label := metrics.ScopeLabel(string(scope))

	roles, err := c.store.SMembers(ctx, UserRolesKey(userID, scope))
	if err != nil {
		metrics.RoleCacheLookupsTotal.WithLabelValues(label, "error").Inc()
		return nil, false, fmt.Errorf("get roles: %w", err)
	}
	if len(roles) == 0 {
		metrics.RoleCacheLookupsTotal.WithLabelValues(label, "miss").Inc()
		return nil, false, nil
	}
	metrics.RoleCacheLookupsTotal.WithLabelValues(label, "hit").Inc()
	return roles, true, nil
}

func (c *Cache) UsersWithRole(ctx context.Context, role string, scope domain.ScopeKey) ([]int64, error) {
	members, err := c.store.SMembers(ctx, RoleUsersKey(role, scope))
	if err != nil {
		return nil, fmt.Errorf("users with role: %w", err)
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			c.log.Warn().Str("member", m).Str("role", role).Msg("skipping malformed reverse index member")
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// InvalidateUser removes the user from each reverse set it currently appears
// in for scope, then drops the forward entry.
func (c *Cache) InvalidateUser(ctx context.Context, userID int64, scope domain.ScopeKey) error {
	key := UserRolesKey(userID, scope)

	roles, err := c.store.SMembers(ctx, key)
	if err != nil {
		return fmt.Errorf("invalidate user %d: %w", userID, err)
	}

	member := strconv.FormatInt(userID, 10)
	for _, role := range roles {
		if err := c.store.SRem(ctx, RoleUsersKey(role, scope), member); err != nil {
			return fmt.Errorf("invalidate user %d: reverse index %s: %w", userID, role, err)
		}
	}
	if err := c.store.Del(ctx, key); err != nil {
		return fmt.Errorf("invalidate user %d: %w", userID, err)
	}

	metrics.RoleCacheInvalidationsTotal.WithLabelValues("user").Inc()
	c.log.Debug().Int64("user_id", userID).Str("scope", string(scope)).Msg("user role cache invalidated")
	return nil
}

// InvalidateRole enqueues one job per current holder and deletes the reverse
// set. The per-user work runs on the queue, off the caller's path.
func (c *Cache) InvalidateRole(ctx context.Context, role string, scope domain.ScopeKey) error {
	userIDs, err := c.UsersWithRole(ctx, role, scope)
	if err != nil {
		return fmt.Errorf("invalidate role %s: %w", role, err)
	}

	tenantID := scope.TenantID()
	for _, userID := range userIDs {
		job := domain.InvalidationJob{
			ID:         uuid.NewString(),
			UserID:     userID,
			TenantID:   tenantID,
			EnqueuedAt: c.now().UTC(),
		}
		if err := c.queue.Enqueue(ctx, job); err != nil {
			return fmt.Errorf("invalidate role %s: enqueue user %d: %w", role, userID, err)
		}
		metrics.InvalidationJobsEnqueuedTotal.Inc()
	}

	if err := c.store.Del(ctx, RoleUsersKey(role, scope)); err != nil {
		return fmt.Errorf("invalidate role %s: %w", role, err)
	}

	metrics.RoleCacheInvalidationsTotal.WithLabelValues("role").Inc()
	c.log.Debug().
		Str("role", role).
		Str("scope", string(scope)).
		Int("jobs", len(userIDs)).
		Msg("role invalidation queued")
	return nil
}

// UserRolesKey is the forward-index key.
func UserRolesKey(userID int64, scope domain.ScopeKey) string {
	return fmt.Sprintf("%s:%d:%s", userRolesPrefix, userID, scopeOrGlobal(scope))
}

// RoleUsersKey is the reverse-index key.
func RoleUsersKey(role string, scope domain.ScopeKey) string {
	return fmt.Sprintf("%s:%s:%s", roleUsersPrefix, role, scopeOrGlobal(scope))
}

func scopeOrGlobal(scope domain.ScopeKey) domain.ScopeKey {
	if scope == "" {
		return domain.GlobalScope
	}
	return scope
}
