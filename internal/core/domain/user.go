package domain

import "time"

// Built-in role identifiers. A role's identifier doubles as its name.
const (
	RoleAdmin   = "ADMIN"
	RoleSupport = "SUPPORT"
	RoleUser    = "USER"
)

// RoleScope tells whether a role applies account-wide or inside one tenant.
type RoleScope string

const (
	ScopeGlobal RoleScope = "GLOBAL"
	ScopeTenant RoleScope = "TENANT"
)

// Valid reports whether s is one of the known scopes.
func (s RoleScope) Valid() bool {
	return s == ScopeGlobal || s == ScopeTenant
}

// User models an authenticated actor in the system.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	TenantID     *int64    `json:"tenant_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Role is a named permission grant shared by every user holding it.
type Role struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Scope RoleScope `json:"type"`
}

// RoleGrant associates a user with a role, qualified by a tenant for
// tenant-scoped roles. References are ids only.
type RoleGrant struct {
	UserID   int64     `json:"user_id"`
	RoleID   string    `json:"role_id"`
	RoleName string    `json:"role_name"`
	Scope    RoleScope `json:"scope"`
	TenantID *int64    `json:"tenant_id,omitempty"`
}

// Validate enforces the scope/tenant pairing: TENANT grants carry a tenant id,
// GLOBAL grants never do.
func (g RoleGrant) Validate() error {
	switch g.Scope {
	case ScopeGlobal:
		if g.TenantID != nil {
			return ErrInvalidGrant
		}
	case ScopeTenant:
		if g.TenantID == nil {
			return ErrInvalidGrant
		}
	default:
		return ErrInvalidGrant
	}
	if g.UserID <= 0 || g.RoleID == "" {
		return ErrInvalidGrant
	}
	return nil
}

// ScopeKey returns the cache discriminator for the grant.
func (g RoleGrant) ScopeKey() ScopeKey {
	if g.Scope == ScopeTenant && g.TenantID != nil {
		return TenantScope(*g.TenantID)
	}
	return GlobalScope
}

// UserWithGrants is a user together with every role grant it holds.
type UserWithGrants struct {
	User
	Grants []RoleGrant `json:"grants"`
}

// Tenant is an isolation boundary.
type Tenant struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ResolvedRoles is a user's grant set partitioned by scope.
type ResolvedRoles struct {
	UserID      int64              `json:"user_id"`
	GlobalRoles []string           `json:"global_roles"`
	TenantRoles map[int64][]string `json:"tenant_roles"`
}
