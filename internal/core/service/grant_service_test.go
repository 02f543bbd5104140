package service

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/99minutos/access-control/internal/core/domain"
)

func newGrantFixture() (*GrantService, *stubUserRepo, *stubCache) {
	repo := newStubUserRepo()
	repo.addUser(domain.User{ID: 1, Email: "alice@example.com"},
		domain.RoleGrant{RoleID: domain.RoleUser},
	)
	cache := newStubCache()
	return NewGrantService(repo, NewRoleResolver(repo), cache, zerolog.Nop()), repo, cache
}

func TestGrantService_GrantTenantRole(t *testing.T) {
	svc, repo, cache := newGrantFixture()

	err := svc.Grant(context.Background(), domain.RoleGrant{UserID: 1, RoleID: domain.RoleAdmin, TenantID: int64p(42)})
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}

	stored := repo.grants[1][len(repo.grants[1])-1]
	if stored.Scope != domain.ScopeTenant || stored.RoleName != domain.RoleAdmin {
		t.Fatalf("unexpected stored grant: %+v", stored)
	}
	if got := cache.roles(1, domain.TenantScope(42)); !reflect.DeepEqual(got, []string{domain.RoleAdmin}) {
		t.Fatalf("tenant cache not resynced: %v", got)
	}
}

func TestGrantService_GrantErrors(t *testing.T) {
	svc, _, _ := newGrantFixture()
	ctx := context.Background()

	if err := svc.Grant(ctx, domain.RoleGrant{UserID: 1, RoleID: domain.RoleUser}); !errors.Is(err, domain.ErrGrantExists) {
		t.Fatalf("expected ErrGrantExists, got %v", err)
	}
	if err := svc.Grant(ctx, domain.RoleGrant{UserID: 1, RoleID: "OWNER"}); !errors.Is(err, domain.ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound, got %v", err)
	}
	if err := svc.Grant(ctx, domain.RoleGrant{UserID: 0, RoleID: domain.RoleUser}); !errors.Is(err, domain.ErrInvalidGrant) {
		t.Fatalf("expected ErrInvalidGrant, got %v", err)
	}
}

func TestGrantService_RevokeGlobalRole(t *testing.T) {
	svc, repo, cache := newGrantFixture()
	ctx := context.Background()
	if err := cache.CacheRoles(ctx, 1, domain.GlobalScope, []string{domain.RoleUser}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	if err := svc.Revoke(ctx, domain.RoleGrant{UserID: 1, RoleID: domain.RoleUser}); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if len(repo.grants[1]) != 0 {
		t.Fatalf("grant not deleted: %v", repo.grants[1])
	}
	if got := cache.roles(1, domain.GlobalScope); len(got) != 0 {
		t.Fatalf("revoked role still cached: %v", got)
	}
	if err := svc.Revoke(ctx, domain.RoleGrant{UserID: 1, RoleID: domain.RoleUser}); !errors.Is(err, domain.ErrGrantNotFound) {
		t.Fatalf("expected ErrGrantNotFound, got %v", err)
	}
}

func TestGrantService_InvalidateRole(t *testing.T) {
	svc, _, cache := newGrantFixture()

	if err := svc.InvalidateRole(context.Background(), domain.RoleAdmin, int64p(42)); err != nil {
		t.Fatalf("InvalidateRole: %v", err)
	}
	if !reflect.DeepEqual(cache.roleInvals, []string{"ADMIN@42"}) {
		t.Fatalf("unexpected invalidations: %v", cache.roleInvals)
	}
	if err := svc.InvalidateRole(context.Background(), "", nil); !errors.Is(err, domain.ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound for empty role, got %v", err)
	}
}
