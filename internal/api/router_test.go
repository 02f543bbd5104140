package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/99minutos/access-control/internal/api/handler"
	"github.com/99minutos/access-control/internal/core/access"
	"github.com/99minutos/access-control/internal/core/domain"
)

type stubVerifier map[string]int64

func (v stubVerifier) VerifyAccessToken(token string) (*domain.Claims, error) {
	id, ok := v[token]
	if !ok {
		return nil, errors.New("bad signature")
	}
	return &domain.Claims{
		Email:            "alice@example.com",
		RegisteredClaims: jwt.RegisteredClaims{Subject: strconv.FormatInt(id, 10)},
	}, nil
}

// stubRoles gives user 1 USER globally and ADMIN in tenant 42.
type stubRoles struct{}

func (stubRoles) GetRoles(_ context.Context, userID int64, scope domain.ScopeKey) ([]string, bool, error) {
	if userID != 1 {
		return nil, false, nil
	}
	switch scope {
	case domain.GlobalScope:
		return []string{domain.RoleUser}, true, nil
	case domain.TenantScope(42):
		return []string{domain.RoleAdmin}, true, nil
	}
	return nil, false, nil
}

func newTestRouter() http.Handler {
	return NewRouter(RouterDeps{
		Gates:      access.NewGates(stubVerifier{"alice": 1}, stubRoles{}, zerolog.Nop()),
		Auth:       handler.NewAuthHandler(nil, time.Hour, false, zerolog.Nop()),
		Grants:     handler.NewGrantHandler(nil),
		Tenants:    handler.NewTenantHandler(),
		Ready:      handler.NewHealthDependenciesHandler(nil),
		Log:        zerolog.Nop(),
		Registerer: prometheus.NewRegistry(),
	})
}

func TestRouter_TenantMe(t *testing.T) {
	tests := []struct {
		name     string
		auth     string
		tenant   string
		wantCode int
		wantMsg  string
	}{
		{"no token and no tenant", "", "", http.StatusBadRequest, "Tenant ID is required"},
		{"valid token and no tenant", "Bearer alice", "", http.StatusBadRequest, "Tenant ID is required"},
		{"non-numeric tenant", "Bearer alice", "acme", http.StatusBadRequest, "Tenant ID is required"},
		{"tenant but no token", "", "42", http.StatusUnauthorized, "No token provided"},
		{"tenant without roles", "Bearer alice", "7", http.StatusUnauthorized, "User has no tenant roles"},
		{"member of tenant", "Bearer alice", "42", http.StatusOK, ""},
	}
	router := newTestRouter()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/tenant/me", nil)
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}
			if tc.tenant != "" {
				req.Header.Set("x-tenant-id", tc.tenant)
			}
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			if rec.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tc.wantCode, rec.Body.String())
			}
			if tc.wantMsg == "" {
				return
			}
			var body errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error != tc.wantMsg {
				t.Fatalf("message = %q, want %q", body.Error, tc.wantMsg)
			}
		})
	}
}

func TestRouter_AdminRouteNeedsToken(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/roles/ADMIN/invalidate", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
