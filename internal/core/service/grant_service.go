package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/99minutos/access-control/internal/core/domain"
	"github.com/99minutos/access-control/internal/core/ports"
)

// GrantService changes role grants in the system of record and keeps the
// affected cache scope in step.
type GrantService struct {
	grants   ports.GrantRepository
	resolver *RoleResolver
	cache    ports.RoleCache
	log      zerolog.Logger
}

func NewGrantService(grants ports.GrantRepository, resolver *RoleResolver, cache ports.RoleCache, log zerolog.Logger) *GrantService {
	return &GrantService{
		grants:   grants,
		resolver: resolver,
		cache:    cache,
		log:      log.With().Str("component", "grant_service").Logger(),
	}
}

// Grant stores a new grant. The scope follows the tenant: a grant with a
// tenant id is a TENANT grant, one without is GLOBAL.
func (s *GrantService) Grant(ctx context.Context, grant domain.RoleGrant) error {
	grant, err := s.prepare(ctx, grant)
	if err != nil {
		return err
	}
	if err := s.grants.CreateGrant(ctx, grant); err != nil {
		return err
	}
	s.resync(ctx, grant.UserID, grant.ScopeKey())
	return nil
}

func (s *GrantService) Revoke(ctx context.Context, grant domain.RoleGrant) error {
	grant, err := s.prepare(ctx, grant)
	if err != nil {
		return err
	}
	if err := s.grants.DeleteGrant(ctx, grant); err != nil {
		return err
	}
	s.resync(ctx, grant.UserID, grant.ScopeKey())
	return nil
}

// InvalidateRole drops the cached membership of every holder of role in the
// given scope. Per-user work happens on the invalidation queue.
func (s *GrantService) InvalidateRole(ctx context.Context, role string, tenantID *int64) error {
	if role == "" {
		return domain.ErrRoleNotFound
	}
	if err := s.cache.InvalidateRole(ctx, role, domain.ScopeOf(tenantID)); err != nil {
		return fmt.Errorf("invalidate role %s: %w", role, err)
	}
	return nil
}

func (s *GrantService) ResolveRoles(ctx context.Context, userID int64) (*domain.ResolvedRoles, error) {
	return s.resolver.Resolve(ctx, userID)
}

func (s *GrantService) prepare(ctx context.Context, grant domain.RoleGrant) (domain.RoleGrant, error) {
	grant.Scope = domain.ScopeGlobal
	if grant.TenantID != nil {
		grant.Scope = domain.ScopeTenant
	}
	if err := grant.Validate(); err != nil {
		return grant, err
	}

	role, err := s.grants.FindRole(ctx, grant.RoleID)
	if err != nil {
		return grant, err
	}
	grant.RoleName = role.Name
	return grant, nil
}

// resync replaces the cached set for one scope with what the store now says.
// Failures are logged: the entry heals at TTL expiry or the next sign-in.
func (s *GrantService) resync(ctx context.Context, userID int64, scope domain.ScopeKey) {
	logger := s.log.With().Int64("user_id", userID).Str("scope", string(scope)).Logger()

	if err := s.cache.InvalidateUser(ctx, userID, scope); err != nil {
		logger.Error().Err(err).Msg("cache invalidation after grant change failed")
		return
	}

	resolved, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			logger.Warn().Err(err).Msg("role resolution after grant change failed")
		}
		return
	}

	roles := resolved.GlobalRoles
	if tid := scope.TenantID(); tid != nil {
		roles = resolved.TenantRoles[*tid]
	}
	if err := s.cache.CacheRoles(ctx, userID, scope, roles); err != nil {
		logger.Error().Err(err).Msg("cache repopulation after grant change failed")
	}
}
