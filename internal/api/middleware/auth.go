package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/access-control/internal/api/metrics"
	"github.com/99minutos/access-control/internal/core/access"
	"github.com/99minutos/access-control/internal/core/domain"
)

// GlobalGate authenticates the bearer token, attaches the principal and checks
// the gate's global roles. Errors are left to the HTTP error handler.
func GlobalGate(gate *access.GlobalGate) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, err := gate.Check(c.Request().Context(), c.Request().Header.Get(echo.HeaderAuthorization))
			metrics.GateDecisionsTotal.WithLabelValues("global", string(access.DecisionOf(err))).Inc()
			if principal != nil {
				c.Set(principalKey, principal)
			}
			if err != nil {
				return err
			}
			return next(c)
		}
	}
}

// RequireRefreshCookie rejects requests without a refresh token cookie.
func RequireRefreshCookie() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(RefreshCookieName)
			if err != nil || cookie.Value == "" {
				return domain.ErrMissingRefreshToken
			}
			return next(c)
		}
	}
}

// TryGlobalGate attaches the principal when the bearer token is valid and
// otherwise lets the request through untouched.
func TryGlobalGate(gate *access.GlobalGate) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if principal, err := gate.Check(c.Request().Context(), c.Request().Header.Get(echo.HeaderAuthorization)); err == nil {
				c.Set(principalKey, principal)
			}
			return next(c)
		}
	}
}
