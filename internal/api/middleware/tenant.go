package middleware

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/access-control/internal/api/metrics"
	"github.com/99minutos/access-control/internal/core/access"
	"github.com/99minutos/access-control/internal/core/domain"
)

// TenantHeader carries the tenant the request operates on.
const TenantHeader = "x-tenant-id"

// ResolveTenant reads the tenant id from TenantHeader. A missing or
// non-numeric value is rejected with domain.ErrTenantRequired.
func ResolveTenant() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := strings.TrimSpace(c.Request().Header.Get(TenantHeader))
			id, err := strconv.ParseInt(raw, 10, 64)
			if raw == "" || err != nil || id <= 0 {
				return domain.ErrTenantRequired
			}
			c.Set(tenantIDKey, id)
			return next(c)
		}
	}
}

// TenantGate checks tenant roles for the principal set by GlobalGate in the
// tenant set by ResolveTenant, and attaches the resulting role set.
func TenantGate(gate *access.TenantGate) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, _ := PrincipalFrom(c)
			tenantID, _ := TenantIDFrom(c)

			roles, err := gate.Check(c.Request().Context(), principal, tenantID)
			metrics.GateDecisionsTotal.WithLabelValues("tenant", string(access.DecisionOf(err))).Inc()
			if err != nil {
				return err
			}
			if roles != nil {
				c.Set(tenantRolesKey, roles)
				principal.TenantRoles = roles
			}
			return next(c)
		}
	}
}
