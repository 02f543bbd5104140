package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/access-control/internal/api/middleware"
)

type TenantHandler struct{}

func NewTenantHandler() *TenantHandler {
	return &TenantHandler{}
}

type tenantMeResponse struct {
	UserID      int64    `json:"sub"`
	Email       string   `json:"email"`
	TenantID    int64    `json:"tenantId"`
	Roles       []string `json:"roles"`
	TenantRoles []string `json:"tenantRoles"`
}

// Me returns the caller's identity and roles in the requested tenant.
//
// @Summary      Current tenant membership
// @Tags         tenant
// @Security     BearerAuth
// @Produce      json
// @Param        x-tenant-id  header    int  true  "Tenant ID"
// @Success      200          {object}  tenantMeResponse
// @Failure      400          {object}  map[string]string
// @Failure      401          {object}  map[string]string
// @Failure      403          {object}  map[string]string
// @Router       /v1/tenant/me [get]
func (h *TenantHandler) Me(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	tenantID, _ := middleware.TenantIDFrom(c)
	resp := tenantMeResponse{
		UserID:      p.UserID,
		Email:       p.Email,
		Roles:       p.Roles,
		TenantRoles: middleware.TenantRolesFrom(c),
	}
	if tenantID != nil {
		resp.TenantID = *tenantID
	}
	return c.JSON(http.StatusOK, resp)
}
