package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/access-control/internal/api/metrics"
	"github.com/99minutos/access-control/internal/api/middleware"
	"github.com/99minutos/access-control/internal/core/domain"
	"github.com/99minutos/access-control/internal/core/ports"
)

type AuthHandler struct {
	authService  ports.AuthService
	refreshTTL   time.Duration
	secureCookie bool
	log          zerolog.Logger
}

func NewAuthHandler(authService ports.AuthService, refreshTTL time.Duration, secureCookie bool, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, refreshTTL: refreshTTL, secureCookie: secureCookie, log: log}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	TenantID *int64 `json:"tenantId,omitempty" validate:"omitempty,gt=0"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Login authenticates a user, sets the refresh cookie and returns an access token.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  tokenResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	pair, err := h.authService.SignIn(c.Request().Context(), req.Email, req.Password, req.TenantID)
	if err != nil {
		result := "error"
		if errors.Is(err, domain.ErrInvalidCredentials) {
			result = "invalid_credentials"
		}
		metrics.SignInsTotal.WithLabelValues(result).Inc()
		return err
	}
	metrics.SignInsTotal.WithLabelValues("success").Inc()

	c.SetCookie(h.refreshCookie(pair.RefreshToken, int(h.refreshTTL.Seconds())))
	return c.JSON(http.StatusOK, tokenResponse{AccessToken: pair.AccessToken})
}

// Refresh rotates the token pair using the refresh cookie.
//
// @Summary      Refresh access token
// @Tags         auth
// @Produce      json
// @Success      200  {object}  tokenResponse
// @Failure      401  {object}  map[string]string
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	cookie, err := c.Cookie(middleware.RefreshCookieName)
	if err != nil || cookie.Value == "" {
		metrics.TokenRefreshesTotal.WithLabelValues("invalid_token").Inc()
		return domain.ErrMissingRefreshToken
	}

	claims, err := h.authService.VerifyRefreshToken(cookie.Value)
	if err != nil {
		metrics.TokenRefreshesTotal.WithLabelValues("invalid_token").Inc()
		return err
	}
	userID, err := claims.UserID()
	if err != nil {
		metrics.TokenRefreshesTotal.WithLabelValues("invalid_token").Inc()
		return err
	}

	pair, err := h.authService.RefreshTokens(c.Request().Context(), userID, claims.Email, claims.TenantID)
	if err != nil {
		metrics.TokenRefreshesTotal.WithLabelValues("error").Inc()
		return err
	}
	metrics.TokenRefreshesTotal.WithLabelValues("success").Inc()

	c.SetCookie(h.refreshCookie(pair.RefreshToken, int(h.refreshTTL.Seconds())))
	return c.JSON(http.StatusOK, tokenResponse{AccessToken: pair.AccessToken})
}

// Logout clears the refresh cookie. With a valid access token it also drops
// the caller's cached global roles.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  messageResponse
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	if p, ok := middleware.PrincipalFrom(c); ok {
		if err := h.authService.Logout(c.Request().Context(), p.UserID); err != nil {
			h.log.Warn().Err(err).Int64("user_id", p.UserID).Msg("logout: invalidating cached roles failed")
		}
	}
	c.SetCookie(h.refreshCookie("", -1))
	return c.JSON(http.StatusOK, messageResponse{Message: "logged out"})
}

// AuthTest succeeds when the caller holds the global USER role.
//
// @Summary      Auth check
// @Tags         auth
// @Security     BearerAuth
// @Success      200
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /auth/auth-test [get]
func (h *AuthHandler) AuthTest(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// refreshCookie builds the refresh cookie. A negative maxAge emits Max-Age=0,
// which tells the browser to drop it.
func (h *AuthHandler) refreshCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.RefreshCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	}
}
