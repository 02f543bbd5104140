package ports

import (
	"context"

	"github.com/99minutos/access-control/internal/core/domain"
)

// UserRepository is the read side of the user store used by the auth core.
// Lookups return domain.ErrUserNotFound when no row matches.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	// FindWithRoleGrants loads the user and every grant it holds in a single
	// fetch. A user without grants yields an empty, non-nil Grants slice.
	FindWithRoleGrants(ctx context.Context, id int64) (*domain.UserWithGrants, error)
}

// GrantRepository mutates role grants.
type GrantRepository interface {
	FindRole(ctx context.Context, roleID string) (*domain.Role, error)
	CreateGrant(ctx context.Context, grant domain.RoleGrant) error
	DeleteGrant(ctx context.Context, grant domain.RoleGrant) error
}
