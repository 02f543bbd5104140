package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/access-control/internal/core/domain"
	"github.com/99minutos/access-control/internal/core/ports"
)

type GrantHandler struct {
	grants ports.GrantService
}

func NewGrantHandler(grants ports.GrantService) *GrantHandler {
	return &GrantHandler{grants: grants}
}

type grantRequest struct {
	RoleID   string `json:"role_id" validate:"required,oneof=ADMIN SUPPORT USER"`
	TenantID *int64 `json:"tenant_id,omitempty" validate:"omitempty,gt=0"`
}

// GrantRole assigns a role to a user, globally or inside one tenant.
//
// @Summary      Grant a role
// @Tags         roles
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id    path      int           true  "User ID"
// @Param        body  body      grantRequest  true  "Role and optional tenant"
// @Success      201   {object}  domain.RoleGrant
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /v1/users/{id}/roles [post]
func (h *GrantHandler) GrantRole(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	var req grantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	grant := domain.RoleGrant{UserID: userID, RoleID: req.RoleID, TenantID: req.TenantID}
	if err := h.grants.Grant(c.Request().Context(), grant); err != nil {
		return err
	}
	grant.RoleName = req.RoleID
	grant.Scope = domain.ScopeGlobal
	if grant.TenantID != nil {
		grant.Scope = domain.ScopeTenant
	}
	return c.JSON(http.StatusCreated, grant)
}

// RevokeRole removes a role from a user. tenant_id selects a tenant grant.
//
// @Summary      Revoke a role
// @Tags         roles
// @Security     BearerAuth
// @Param        id         path   int     true   "User ID"
// @Param        role       path   string  true   "Role ID"
// @Param        tenant_id  query  int     false  "Tenant ID"
// @Success      204
// @Failure      404  {object}  map[string]string
// @Router       /v1/users/{id}/roles/{role} [delete]
func (h *GrantHandler) RevokeRole(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	tenantID, err := tenantQuery(c)
	if err != nil {
		return err
	}

	grant := domain.RoleGrant{UserID: userID, RoleID: strings.ToUpper(c.Param("role")), TenantID: tenantID}
	if err := h.grants.Revoke(c.Request().Context(), grant); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// InvalidateRole queues a cache invalidation for every holder of a role.
//
// @Summary      Invalidate a role
// @Tags         roles
// @Security     BearerAuth
// @Param        role       path   string  true   "Role ID"
// @Param        tenant_id  query  int     false  "Tenant ID"
// @Success      202  {object}  messageResponse
// @Router       /v1/roles/{role}/invalidate [post]
func (h *GrantHandler) InvalidateRole(c echo.Context) error {
	tenantID, err := tenantQuery(c)
	if err != nil {
		return err
	}
	if err := h.grants.InvalidateRole(c.Request().Context(), strings.ToUpper(c.Param("role")), tenantID); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, messageResponse{Message: "invalidation queued"})
}

// UserRoles returns a user's roles resolved from the system of record.
//
// @Summary      List a user's roles
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  domain.ResolvedRoles
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /v1/users/{id}/roles [get]
func (h *GrantHandler) UserRoles(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	resolved, err := h.grants.ResolveRoles(c.Request().Context(), userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resolved)
}

func tenantQuery(c echo.Context) (*int64, error) {
	raw := c.QueryParam("tenant_id")
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid tenant_id")
	}
	return &id, nil
}
