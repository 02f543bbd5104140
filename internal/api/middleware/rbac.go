package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/access-control/internal/core/domain"
)

// SelfOrRoles admits the principal when the path parameter param names the
// principal's own user id, or when it holds any of roles globally. It must run
// after GlobalGate.
func SelfOrRoles(param string, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, ok := PrincipalFrom(c)
			if !ok {
				return domain.ErrNotAuthenticated
			}
			if principal.HasAnyRole(roles...) {
				return next(c)
			}
			id, err := strconv.ParseInt(c.Param(param), 10, 64)
			if err != nil || id != principal.UserID {
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}
