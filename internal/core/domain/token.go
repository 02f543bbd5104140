package domain

import (
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// ScopeKey namespaces cached role sets: either a tenant id or GlobalScope.
type ScopeKey string

const GlobalScope ScopeKey = "global"

// TenantScope builds the scope key for a tenant.
func TenantScope(tenantID int64) ScopeKey {
	return ScopeKey(strconv.FormatInt(tenantID, 10))
}

// ScopeOf returns TenantScope for a non-nil tenant and GlobalScope otherwise.
func ScopeOf(tenantID *int64) ScopeKey {
	if tenantID == nil {
		return GlobalScope
	}
	return TenantScope(*tenantID)
}

// TenantID returns the tenant id encoded in the key, or nil for GlobalScope.
func (k ScopeKey) TenantID() *int64 {
	if k == GlobalScope || k == "" {
		return nil
	}
	id, err := strconv.ParseInt(string(k), 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

// Claims is the identity payload carried by both access and refresh tokens.
type Claims struct {
	Email    string `json:"email"`
	TenantID *int64 `json:"tenantId,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}

// TokenPair is what sign-in and refresh hand back to the caller.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"-"`
}

// Principal is the authenticated caller attached to a request by the gates.
type Principal struct {
	UserID      int64    `json:"sub"`
	Email       string   `json:"email"`
	TenantID    *int64   `json:"tenantId,omitempty"`
	Roles       []string `json:"roles"`
	TenantRoles []string `json:"tenantRoles,omitempty"`
}

// HasAnyRole reports whether the principal's global roles intersect roles.
func (p *Principal) HasAnyRole(roles ...string) bool {
	return Intersects(p.Roles, roles)
}

// Intersects reports whether any element of want appears in have.
func Intersects(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}
