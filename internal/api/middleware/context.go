package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/access-control/internal/core/domain"
)

// Context keys set by the middlewares in this package.
const (
	principalKey   = "principal"
	tenantIDKey    = "tenant_id"
	tenantRolesKey = "tenant_roles"
)

// RefreshCookieName is the cookie carrying the refresh token.
const RefreshCookieName = "refresh_token"

// PrincipalFrom returns the caller attached by GlobalGate, if any.
func PrincipalFrom(c echo.Context) (*domain.Principal, bool) {
	p, ok := c.Get(principalKey).(*domain.Principal)
	return p, ok && p != nil
}

// TenantIDFrom returns the tenant resolved by ResolveTenant, if any.
func TenantIDFrom(c echo.Context) (*int64, bool) {
	id, ok := c.Get(tenantIDKey).(int64)
	if !ok {
		return nil, false
	}
	return &id, true
}

// TenantRolesFrom returns the roles attached by TenantGate.
func TenantRolesFrom(c echo.Context) []string {
	roles, _ := c.Get(tenantRolesKey).([]string)
	return roles
}
