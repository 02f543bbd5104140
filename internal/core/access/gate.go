// Package access holds the two authorization gates that sit in front of every
// protected route.
//
// A GlobalGate authenticates the bearer token and checks application-wide
// roles; a TenantGate checks roles inside the tenant resolved for the request.
// Both are built from a Gates value that closes over the token verifier and
// the role cache, so a route declares its requirement with a single call:
//
//	gates.RequireGlobalRole(domain.RoleAdmin)
//	gates.RequireTenantRole(domain.RoleAdmin, domain.RoleSupport)
//
// An empty role list means "authenticated only". The TenantGate depends on the
// principal produced by the GlobalGate and must run after it.
package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/99minutos/access-control/internal/core/domain"
)

const bearerPrefix = "Bearer "

// TokenVerifier validates access tokens.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*domain.Claims, error)
}

// RoleReader is the read side of the role cache.
type RoleReader interface {
	GetRoles(ctx context.Context, userID int64, scope domain.ScopeKey) ([]string, bool, error)
}

// RoleSource resolves roles from the system of record. Gates consult it only
// when the cache itself is unreachable.
type RoleSource interface {
	Resolve(ctx context.Context, userID int64) (*domain.ResolvedRoles, error)
}

// Decision labels the outcome of a gate check, mainly for metrics.
type Decision string

const (
	Allowed      Decision = "allowed"
	Unauthorized Decision = "unauthorized"
	Forbidden    Decision = "forbidden"
	BadRequest   Decision = "bad_request"
)

// DecisionOf maps a gate error to its Decision.
func DecisionOf(err error) Decision {
	switch {
	case err == nil:
		return Allowed
	case domain.IsUnauthorized(err):
		return Unauthorized
	case errors.Is(err, domain.ErrForbidden):
		return Forbidden
	default:
		return BadRequest
	}
}

// Gates builds gate instances sharing the same dependencies.
type Gates struct {
	verifier TokenVerifier
	cache    RoleReader
	fallback RoleSource
	log      zerolog.Logger
}

// Option customises Gates.
type Option func(*Gates)

// WithFallback re-resolves roles from source when a cache read errors out.
func WithFallback(source RoleSource) Option {
	return func(g *Gates) { g.fallback = source }
}

func NewGates(verifier TokenVerifier, cache RoleReader, log zerolog.Logger, opts ...Option) *Gates {
	g := &Gates{
		verifier: verifier,
		cache:    cache,
		log:      log.With().Str("component", "access").Logger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RequireGlobalRole returns a gate that admits callers holding any of roles.
func (g *Gates) RequireGlobalRole(roles ...string) *GlobalGate {
	return &GlobalGate{gates: g, required: roles}
}

// RequireTenantRole returns a gate that admits callers holding any of roles in
// the request's tenant.
func (g *Gates) RequireTenantRole(roles ...string) *TenantGate {
	return &TenantGate{gates: g, required: roles}
}

// GlobalGate authenticates the access token and checks global roles.
type GlobalGate struct {
	gates    *Gates
	required []string
}

// Check runs NoToken → TokenInvalid → TokenValid and returns the principal.
// A cache miss means "no roles": the gate never repopulates the cache.
func (gg *GlobalGate) Check(ctx context.Context, authorization string) (*domain.Principal, error) {
	token, ok := bearerToken(authorization)
	if !ok {
		return nil, domain.ErrNoToken
	}

	claims, err := gg.gates.verifier.VerifyAccessToken(token)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	principal := &domain.Principal{
		UserID:   userID,
		Email:    claims.Email,
		TenantID: claims.TenantID,
		Roles:    gg.gates.roles(ctx, userID, domain.GlobalScope),
	}
	if principal.Roles == nil {
		principal.Roles = []string{}
	}

	if len(gg.required) == 0 {
		return principal, nil
	}
	if !domain.Intersects(principal.Roles, gg.required) {
		return principal, fmt.Errorf("%w: you don't have app level required access level: %s",
			domain.ErrForbidden, strings.Join(gg.required, ", "))
	}
	return principal, nil
}

// TenantGate checks tenant-scoped roles for an already authenticated principal.
type TenantGate struct {
	gates    *Gates
	required []string
}

// Check returns the principal's roles in tenantID. Without required roles it
// succeeds trivially and returns nil roles.
func (tg *TenantGate) Check(ctx context.Context, principal *domain.Principal, tenantID *int64) ([]string, error) {
	if len(tg.required) == 0 {
		return nil, nil
	}
	if principal == nil {
		return nil, domain.ErrNotAuthenticated
	}
	if tenantID == nil {
		return nil, domain.ErrTenantRequired
	}

	roles := tg.gates.roles(ctx, principal.UserID, domain.TenantScope(*tenantID))
	if len(roles) == 0 {
		return nil, domain.ErrNoTenantRoles
	}
	if !domain.Intersects(roles, tg.required) {
		return roles, fmt.Errorf("%w: you don't have tenant level required access level: %s",
			domain.ErrForbidden, strings.Join(tg.required, ", "))
	}
	return roles, nil
}

// roles reads the cache. A read error is a miss, optionally backed by the
// system of record; it never turns into a Forbidden on its own.
func (g *Gates) roles(ctx context.Context, userID int64, scope domain.ScopeKey) []string {
	roles, ok, err := g.cache.GetRoles(ctx, userID, scope)
	if err == nil {
		if !ok {
			return nil
		}
		return roles
	}

	g.log.Warn().Err(err).Int64("user_id", userID).Str("scope", string(scope)).
		Msg("role cache read failed, treating as miss")
	if g.fallback == nil {
		return nil
	}

	resolved, rerr := g.fallback.Resolve(ctx, userID)
	if rerr != nil {
		g.log.Warn().Err(rerr).Int64("user_id", userID).Msg("fallback role resolution failed")
		return nil
	}
	if tid := scope.TenantID(); tid != nil {
		return resolved.TenantRoles[*tid]
	}
	return resolved.GlobalRoles
}

func bearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", false
	}
	return token, true
}
