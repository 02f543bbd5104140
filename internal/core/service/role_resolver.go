package service

import (
	"context"
	"fmt"

	"github.com/99minutos/access-control/internal/core/domain"
	"github.com/99minutos/access-control/internal/core/ports"
)

// RoleResolver loads a user's grants from the system of record and partitions
// them into global roles and per-tenant roles.
type RoleResolver struct {
	users ports.UserRepository
}

func NewRoleResolver(users ports.UserRepository) *RoleResolver {
	return &RoleResolver{users: users}
}

// Resolve fails with domain.ErrUserNotFound when the user is gone. A user
// with no grants resolves to empty, non-nil collections.
func (r *RoleResolver) Resolve(ctx context.Context, userID int64) (*domain.ResolvedRoles, error) {
	user, err := r.users.FindWithRoleGrants(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve roles: %w", err)
	}
	return Partition(user.ID, user.Grants), nil
}

// Partition groups grants by scope, dropping duplicates and malformed tenant
// grants.
func Partition(userID int64, grants []domain.RoleGrant) *domain.ResolvedRoles {
	out := &domain.ResolvedRoles{
		UserID:      userID,
		GlobalRoles: []string{},
		TenantRoles: map[int64][]string{},
	}
	seenGlobal := map[string]struct{}{}
	seenTenant := map[int64]map[string]struct{}{}

	for _, g := range grants {
		switch g.Scope {
		case domain.ScopeGlobal:
			if _, dup := seenGlobal[g.RoleName]; dup {
				continue
			}
			seenGlobal[g.RoleName] = struct{}{}
			out.GlobalRoles = append(out.GlobalRoles, g.RoleName)
		case domain.ScopeTenant:
			if g.TenantID == nil {
				continue
			}
			tid := *g.TenantID
			if seenTenant[tid] == nil {
				seenTenant[tid] = map[string]struct{}{}
			}
			if _, dup := seenTenant[tid][g.RoleName]; dup {
				continue
			}
			seenTenant[tid][g.RoleName] = struct{}{}
			out.TenantRoles[tid] = append(out.TenantRoles[tid], g.RoleName)
		}
	}
	return out
}
