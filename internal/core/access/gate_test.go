package access

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/99minutos/access-control/internal/core/domain"
)

type stubVerifier map[string]*domain.Claims

func (v stubVerifier) VerifyAccessToken(token string) (*domain.Claims, error) {
	c, ok := v[token]
	if !ok {
		return nil, errors.New("bad signature")
	}
	return c, nil
}

type scopeKey struct {
	userID int64
	scope  domain.ScopeKey
}

type stubReader struct {
	sets map[scopeKey][]string
	err  error
}

func (r *stubReader) GetRoles(_ context.Context, userID int64, scope domain.ScopeKey) ([]string, bool, error) {
	if r.err != nil {
		return nil, false, r.err
	}
	roles, ok := r.sets[scopeKey{userID, scope}]
	return roles, ok, nil
}

type stubSource struct {
	resolved *domain.ResolvedRoles
	calls    int
}

func (s *stubSource) Resolve(context.Context, int64) (*domain.ResolvedRoles, error) {
	s.calls++
	return s.resolved, nil
}

// alice (id 1) holds USER globally and ADMIN in tenant 42.
func newFixture() (stubVerifier, *stubReader) {
	verifier := stubVerifier{
		"alice": {Email: "alice@example.com", RegisteredClaims: jwt.RegisteredClaims{Subject: "1"}},
		"nosub": {Email: "ghost@example.com"},
		"bob":   {Email: "bob@example.com", RegisteredClaims: jwt.RegisteredClaims{Subject: "2"}},
	}
	reader := &stubReader{sets: map[scopeKey][]string{
		{1, domain.GlobalScope}:     {domain.RoleUser},
		{1, domain.TenantScope(42)}: {domain.RoleAdmin},
	}}
	return verifier, reader
}

func TestGlobalGate(t *testing.T) {
	verifier, reader := newFixture()
	gates := NewGates(verifier, reader, zerolog.Nop())

	tests := []struct {
		name      string
		required  []string
		header    string
		wantErr   error
		wantRoles []string
	}{
		{"no header", []string{domain.RoleUser}, "", domain.ErrNoToken, nil},
		{"wrong scheme", []string{domain.RoleUser}, "Basic alice", domain.ErrNoToken, nil},
		{"lowercase scheme", []string{domain.RoleUser}, "bearer alice", domain.ErrNoToken, nil},
		{"empty token", []string{domain.RoleUser}, "Bearer ", domain.ErrNoToken, nil},
		{"bad signature", []string{domain.RoleUser}, "Bearer forged", domain.ErrInvalidToken, nil},
		{"missing subject", []string{domain.RoleUser}, "Bearer nosub", domain.ErrInvalidToken, nil},
		{"holds role", []string{domain.RoleUser}, "Bearer alice", nil, []string{domain.RoleUser}},
		{"any of", []string{domain.RoleAdmin, domain.RoleUser}, "Bearer alice", nil, []string{domain.RoleUser}},
		{"authenticated only", nil, "Bearer bob", nil, []string{}},
		{"lacks role", []string{domain.RoleAdmin}, "Bearer alice", domain.ErrForbidden, []string{domain.RoleUser}},
		{"cache miss is no roles", []string{domain.RoleUser}, "Bearer bob", domain.ErrForbidden, []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := gates.RequireGlobalRole(tc.required...).Check(context.Background(), tc.header)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if tc.wantRoles == nil {
				if p != nil {
					t.Fatalf("expected no principal, got %+v", p)
				}
				return
			}
			if p == nil {
				t.Fatalf("expected a principal")
			}
			if !reflect.DeepEqual(p.Roles, tc.wantRoles) {
				t.Fatalf("roles = %v, want %v", p.Roles, tc.wantRoles)
			}
		})
	}
}

func TestGlobalGate_ForbiddenMessage(t *testing.T) {
	verifier, reader := newFixture()
	gates := NewGates(verifier, reader, zerolog.Nop())

	_, err := gates.RequireGlobalRole(domain.RoleAdmin, domain.RoleSupport).Check(context.Background(), "Bearer alice")
	want := "access forbidden: you don't have app level required access level: ADMIN, SUPPORT"
	if err == nil || err.Error() != want {
		t.Fatalf("message = %v, want %q", err, want)
	}
}

func TestTenantGate(t *testing.T) {
	verifier, reader := newFixture()
	gates := NewGates(verifier, reader, zerolog.Nop())
	alice := &domain.Principal{UserID: 1, Roles: []string{domain.RoleUser}}
	tenant := func(id int64) *int64 { return &id }

	tests := []struct {
		name      string
		required  []string
		principal *domain.Principal
		tenantID  *int64
		wantErr   error
		wantRoles []string
	}{
		{"holds tenant role", []string{domain.RoleAdmin}, alice, tenant(42), nil, []string{domain.RoleAdmin}},
		{"other tenant", []string{domain.RoleAdmin}, alice, tenant(7), domain.ErrNoTenantRoles, nil},
		{"lacks tenant role", []string{domain.RoleSupport}, alice, tenant(42), domain.ErrForbidden, []string{domain.RoleAdmin}},
		{"no principal", []string{domain.RoleAdmin}, nil, tenant(42), domain.ErrNotAuthenticated, nil},
		{"no tenant", []string{domain.RoleAdmin}, alice, nil, domain.ErrTenantRequired, nil},
		{"no requirement", nil, nil, nil, nil, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			roles, err := gates.RequireTenantRole(tc.required...).Check(context.Background(), tc.principal, tc.tenantID)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if !reflect.DeepEqual(roles, tc.wantRoles) {
				t.Fatalf("roles = %v, want %v", roles, tc.wantRoles)
			}
		})
	}
}

func TestGates_CacheErrorFallsBack(t *testing.T) {
	verifier, reader := newFixture()
	reader.err = errors.New("redis: connection refused")
	source := &stubSource{resolved: &domain.ResolvedRoles{
		UserID:      1,
		GlobalRoles: []string{domain.RoleUser},
		TenantRoles: map[int64][]string{42: {domain.RoleAdmin}},
	}}
	gates := NewGates(verifier, reader, zerolog.Nop(), WithFallback(source))

	p, err := gates.RequireGlobalRole(domain.RoleUser).Check(context.Background(), "Bearer alice")
	if err != nil {
		t.Fatalf("global check: %v", err)
	}
	_, err = gates.RequireTenantRole(domain.RoleAdmin).Check(context.Background(), p, p.TenantID)
	if !errors.Is(err, domain.ErrTenantRequired) {
		t.Fatalf("expected ErrTenantRequired without tenant, got %v", err)
	}
	tid := int64(42)
	roles, err := gates.RequireTenantRole(domain.RoleAdmin).Check(context.Background(), p, &tid)
	if err != nil || !reflect.DeepEqual(roles, []string{domain.RoleAdmin}) {
		t.Fatalf("tenant check = %v, %v", roles, err)
	}
	if source.calls != 2 {
		t.Fatalf("fallback calls = %d, want 2", source.calls)
	}
}

func TestGates_CacheErrorWithoutFallback(t *testing.T) {
	verifier, reader := newFixture()
	reader.err = errors.New("redis: connection refused")
	gates := NewGates(verifier, reader, zerolog.Nop())

	p, err := gates.RequireGlobalRole(domain.RoleUser).Check(context.Background(), "Bearer alice")
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if p == nil || len(p.Roles) != 0 {
		t.Fatalf("expected principal with no roles, got %+v", p)
	}
}

func TestDecisionOf(t *testing.T) {
	cases := map[error]Decision{
		nil:                      Allowed,
		domain.ErrInvalidToken:   Unauthorized,
		domain.ErrNoTenantRoles:  Unauthorized,
		domain.ErrForbidden:      Forbidden,
		domain.ErrTenantRequired: BadRequest,
	}
	for err, want := range cases {
		if got := DecisionOf(err); got != want {
			t.Errorf("DecisionOf(%v) = %s, want %s", err, got, want)
		}
	}
}
