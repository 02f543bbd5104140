package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/99minutos/access-control/docs"
	"github.com/99minutos/access-control/internal/api/handler"
	"github.com/99minutos/access-control/internal/api/middleware"
	"github.com/99minutos/access-control/internal/core/access"
	"github.com/99minutos/access-control/internal/core/domain"
)

// RouterDeps are the collaborators the HTTP layer is assembled from.
type RouterDeps struct {
	Gates   *access.Gates
	Auth    *handler.AuthHandler
	Grants  *handler.GrantHandler
	Tenants *handler.TenantHandler
	Ready   *handler.HealthDependenciesHandler
	Log     zerolog.Logger

	// Registerer receives the HTTP metrics. Nil means the default registry.
	Registerer prometheus.Registerer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d RouterDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "access_control",
		Registerer: d.Registerer,
	}))

	// --- Health checks and tooling (no auth required) ---
	e.GET("/health", handler.NewHealthHandler().Liveness)
	e.GET("/health/ready", d.Ready.Readiness)
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	gates := d.Gates
	authenticated := middleware.GlobalGate(gates.RequireGlobalRole())
	admin := middleware.GlobalGate(gates.RequireGlobalRole(domain.RoleAdmin))

	// --- Auth routes ---
	auth := e.Group("/auth")
	auth.POST("/login", d.Auth.Login)
	auth.POST("/refresh", d.Auth.Refresh, middleware.RequireRefreshCookie())
	auth.POST("/logout", d.Auth.Logout, middleware.TryGlobalGate(gates.RequireGlobalRole()))
	auth.GET("/auth-test", d.Auth.AuthTest, middleware.GlobalGate(gates.RequireGlobalRole(domain.RoleUser)))

	// --- Role management ---
	v1 := e.Group("/v1")
	v1.GET("/users/:id/roles", d.Grants.UserRoles,
		authenticated, middleware.SelfOrRoles("id", domain.RoleAdmin, domain.RoleSupport))
	v1.POST("/users/:id/roles", d.Grants.GrantRole, admin)
	v1.DELETE("/users/:id/roles/:role", d.Grants.RevokeRole, admin)
	v1.POST("/roles/:role/invalidate", d.Grants.InvalidateRole, admin)

	// --- Tenant-scoped routes ---
	// The tenant header is checked before any gate, so a request without one is
	// a 400 whatever its credentials.
	tenant := v1.Group("/tenant", middleware.ResolveTenant(), authenticated)
	tenant.GET("/me", d.Tenants.Me,
		middleware.TenantGate(gates.RequireTenantRole(domain.RoleUser, domain.RoleSupport, domain.RoleAdmin)))

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
