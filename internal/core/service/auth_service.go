package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/99minutos/access-control/internal/core/domain"
	"github.com/99minutos/access-control/internal/core/ports"
)

const defaultCacheWriteTimeout = 2 * time.Second

// AuthService implements sign-in, token refresh and logout.
type AuthService struct {
	credentials  *CredentialVerifier
	tokens       *TokenService
	resolver     *RoleResolver
	cache        ports.RoleCache
	cacheTimeout time.Duration
	log          zerolog.Logger
}

func NewAuthService(
	credentials *CredentialVerifier,
	tokens *TokenService,
	resolver *RoleResolver,
	cache ports.RoleCache,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		credentials:  credentials,
		tokens:       tokens,
		resolver:     resolver,
		cache:        cache,
		cacheTimeout: defaultCacheWriteTimeout,
		log:          log.With().Str("component", "auth_service").Logger(),
	}
}

// SignIn verifies credentials, issues a token pair and warms the role cache.
// Cache population is best-effort: its failure never fails the sign-in.
func (s *AuthService) SignIn(ctx context.Context, email, password string, tenantID *int64) (*domain.TokenPair, error) {
	user, err := s.credentials.Verify(ctx, email, password)
	if err != nil {
		return nil, err
	}

	pair, err := s.tokens.IssuePair(user.ID, user.Email, tenantID)
	if err != nil {
		return nil, err
	}

	resolved, err := s.resolver.Resolve(ctx, user.ID)
	if err != nil {
		s.log.Warn().Err(err).Int64("user_id", user.ID).Msg("role resolution failed, skipping cache population")
		return pair, nil
	}
	s.populate(ctx, resolved)

	return pair, nil
}

// RefreshTokens issues a brand-new pair. The caller has already verified the
// refresh token. A user deleted since the token was minted is rejected.
func (s *AuthService) RefreshTokens(ctx context.Context, userID int64, email string, tenantID *int64) (*domain.TokenPair, error) {
	resolved, err := s.resolver.Resolve(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		return nil, domain.ErrUserNotFound
	case err != nil:
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("role resolution failed, skipping cache population")
	}

	pair, err := s.tokens.IssuePair(userID, email, tenantID)
	if err != nil {
		return nil, err
	}

	if resolved != nil {
		s.populate(ctx, resolved)
	}
	return pair, nil
}

func (s *AuthService) VerifyRefreshToken(token string) (*domain.Claims, error) {
	return s.tokens.VerifyRefreshToken(token)
}

// Logout drops the user's cached global roles. Tokens themselves are not
// tracked server-side and simply expire.
func (s *AuthService) Logout(ctx context.Context, userID int64) error {
	return s.cache.InvalidateUser(ctx, userID, domain.GlobalScope)
}

// populate writes every scope of the resolved set concurrently. Scopes are
// independent so their ordering does not matter.
func (s *AuthService) populate(ctx context.Context, resolved *domain.ResolvedRoles) {
	ctx, cancel := context.WithTimeout(ctx, s.cacheTimeout)
	defer cancel()

	// A plain group: one failed scope must not cancel the others.
	var g errgroup.Group
	write := func(scope domain.ScopeKey, roles []string) {
		g.Go(func() error {
			if err := s.cache.CacheRoles(ctx, resolved.UserID, scope, roles); err != nil {
				s.log.Error().Err(err).
					Int64("user_id", resolved.UserID).
					Str("scope", string(scope)).
					Msg("role cache population failed")
				return err
			}
			return nil
		})
	}

	if len(resolved.GlobalRoles) > 0 {
		write(domain.GlobalScope, resolved.GlobalRoles)
	}
	for tenantID, roles := range resolved.TenantRoles {
		if len(roles) > 0 {
			write(domain.TenantScope(tenantID), roles)
		}
	}
	_ = g.Wait()
}
