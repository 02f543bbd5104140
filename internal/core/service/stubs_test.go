package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/99minutos/access-control/internal/core/domain"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubUserRepo struct {
	users  map[int64]*domain.User
	grants map[int64][]domain.RoleGrant
	roles  map[string]*domain.Role
	err    error
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{
		users:  map[int64]*domain.User{},
		grants: map[int64][]domain.RoleGrant{},
		roles: map[string]*domain.Role{
			domain.RoleAdmin:   {ID: domain.RoleAdmin, Name: domain.RoleAdmin, Scope: domain.ScopeGlobal},
			domain.RoleSupport: {ID: domain.RoleSupport, Name: domain.RoleSupport, Scope: domain.ScopeGlobal},
			domain.RoleUser:    {ID: domain.RoleUser, Name: domain.RoleUser, Scope: domain.ScopeGlobal},
		},
	}
}

func (r *stubUserRepo) addUser(u domain.User, grants ...domain.RoleGrant) {
	r.users[u.ID] = &u
	for _, g := range grants {
		g.UserID = u.ID
		if g.RoleName == "" {
			g.RoleName = g.RoleID
		}
		if g.Scope == "" {
			g.Scope = domain.ScopeGlobal
			if g.TenantID != nil {
				g.Scope = domain.ScopeTenant
			}
		}
		r.grants[u.ID] = append(r.grants[u.ID], g)
	}
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByID(_ context.Context, id int64) (*domain.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *stubUserRepo) FindWithRoleGrants(ctx context.Context, id int64) (*domain.UserWithGrants, error) {
	u, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	grants := append([]domain.RoleGrant{}, r.grants[id]...)
	return &domain.UserWithGrants{User: *u, Grants: grants}, nil
}

func (r *stubUserRepo) FindRole(_ context.Context, roleID string) (*domain.Role, error) {
	role, ok := r.roles[roleID]
	if !ok {
		return nil, domain.ErrRoleNotFound
	}
	return role, nil
}

func (r *stubUserRepo) CreateGrant(_ context.Context, g domain.RoleGrant) error {
	for _, existing := range r.grants[g.UserID] {
		if sameGrant(existing, g) {
			return domain.ErrGrantExists
		}
	}
	r.grants[g.UserID] = append(r.grants[g.UserID], g)
	return nil
}

func (r *stubUserRepo) DeleteGrant(_ context.Context, g domain.RoleGrant) error {
	list := r.grants[g.UserID]
	for i, existing := range list {
		if sameGrant(existing, g) {
			r.grants[g.UserID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return domain.ErrGrantNotFound
}

func sameGrant(a, b domain.RoleGrant) bool {
	if a.RoleID != b.RoleID {
		return false
	}
	if a.TenantID == nil || b.TenantID == nil {
		return a.TenantID == nil && b.TenantID == nil
	}
	return *a.TenantID == *b.TenantID
}

type cacheKey struct {
	userID int64
	scope  domain.ScopeKey
}

// stubCache is a goroutine-safe RoleCache that records calls.
type stubCache struct {
	mu          sync.Mutex
	sets        map[cacheKey][]string
	writeErr    error
	invalidated []cacheKey
	roleInvals  []string
}

func newStubCache() *stubCache {
	return &stubCache{sets: map[cacheKey][]string{}}
}

func (c *stubCache) CacheRoles(_ context.Context, userID int64, scope domain.ScopeKey, roles []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	if len(roles) == 0 {
		return nil
	}
	k := cacheKey{userID, scope}
	c.sets[k] = append(c.sets[k], roles...)
	return nil
}

func (c *stubCache) GetRoles(_ context.Context, userID int64, scope domain.ScopeKey) ([]string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	roles, ok := c.sets[cacheKey{userID, scope}]
	return roles, ok, nil
}

func (c *stubCache) UsersWithRole(context.Context, string, domain.ScopeKey) ([]int64, error) {
	return nil, errors.New("not implemented")
}

func (c *stubCache) InvalidateUser(_ context.Context, userID int64, scope domain.ScopeKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := cacheKey{userID, scope}
	delete(c.sets, k)
	c.invalidated = append(c.invalidated, k)
	return nil
}

func (c *stubCache) InvalidateRole(_ context.Context, role string, scope domain.ScopeKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roleInvals = append(c.roleInvals, role+"@"+string(scope))
	return nil
}

func (c *stubCache) roles(userID int64, scope domain.ScopeKey) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]string(nil), c.sets[cacheKey{userID, scope}]...)
	sort.Strings(out)
	return out
}

func int64p(v int64) *int64 { return &v }
