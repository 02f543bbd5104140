package ports

import (
	"context"

	"github.com/99minutos/access-control/internal/core/domain"
)

// AuthService is the token-issuance surface exposed to the HTTP layer.
type AuthService interface {
	SignIn(ctx context.Context, email, password string, tenantID *int64) (*domain.TokenPair, error)
	RefreshTokens(ctx context.Context, userID int64, email string, tenantID *int64) (*domain.TokenPair, error)
	VerifyRefreshToken(token string) (*domain.Claims, error)
	Logout(ctx context.Context, userID int64) error
}

// GrantService manages role grants and keeps the role cache consistent.
type GrantService interface {
	Grant(ctx context.Context, grant domain.RoleGrant) error
	Revoke(ctx context.Context, grant domain.RoleGrant) error
	InvalidateRole(ctx context.Context, role string, tenantID *int64) error
	ResolveRoles(ctx context.Context, userID int64) (*domain.ResolvedRoles, error)
}
