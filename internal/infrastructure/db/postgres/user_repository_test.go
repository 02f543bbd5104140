package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/99minutos/access-control/internal/core/domain"
)

var grantColumns = []string{
	"id", "email", "name", "password", "tenant_id", "created_at", "updated_at",
	"role_id", "name", "tenant_id",
}

func newMockRepo(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewUserRepository(db, time.Second), mock
}

func TestFindWithRoleGrantsPartitionsByTenant(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery("select .* from users u\\s+left join tenant_roles").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(grantColumns).
			AddRow(int64(1), "alice@example.com", "Alice", "hash", nil, now, now, "USER", "USER", nil).
			AddRow(int64(1), "alice@example.com", "Alice", "hash", nil, now, now, "ADMIN", "ADMIN", int64(42)))

	got, err := repo.FindWithRoleGrants(context.Background(), 1)
	if err != nil {
		t.Fatalf("FindWithRoleGrants: %v", err)
	}
	if got.Email != "alice@example.com" {
		t.Fatalf("unexpected email: %s", got.Email)
	}
	if len(got.Grants) != 2 {
		t.Fatalf("expected 2 grants, got %d", len(got.Grants))
	}
	if got.Grants[0].Scope != domain.ScopeGlobal || got.Grants[0].TenantID != nil {
		t.Fatalf("first grant should be global: %+v", got.Grants[0])
	}
	if got.Grants[1].Scope != domain.ScopeTenant || got.Grants[1].TenantID == nil || *got.Grants[1].TenantID != 42 {
		t.Fatalf("second grant should be tenant 42: %+v", got.Grants[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindWithRoleGrantsNoGrants(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery("select .* from users u").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows(grantColumns).
			AddRow(int64(2), "bob@example.com", "Bob", "hash", int64(7), now, now, nil, nil, nil))

	got, err := repo.FindWithRoleGrants(context.Background(), 2)
	if err != nil {
		t.Fatalf("FindWithRoleGrants: %v", err)
	}
	if got.Grants == nil || len(got.Grants) != 0 {
		t.Fatalf("expected empty non-nil grants, got %#v", got.Grants)
	}
	if got.TenantID == nil || *got.TenantID != 7 {
		t.Fatalf("expected home tenant 7, got %v", got.TenantID)
	}
}

func TestFindWithRoleGrantsUnknownUser(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("select .* from users u").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows(grantColumns))

	_, err := repo.FindWithRoleGrants(context.Background(), 99)
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestFindByEmailNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("select .* from users u where u.email").
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "ghost@example.com")
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestFindRoleNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("select id, name, type from roles").
		WithArgs("OWNER").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindRole(context.Background(), "OWNER")
	if !errors.Is(err, domain.ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound, got %v", err)
	}
}

func TestCreateGrantDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t)
	tenant := int64(42)

	mock.ExpectExec("insert into tenant_roles").
		WithArgs(sqlmock.AnyArg(), int64(1), "ADMIN").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	err := repo.CreateGrant(context.Background(), domain.RoleGrant{UserID: 1, RoleID: "ADMIN", TenantID: &tenant})
	if !errors.Is(err, domain.ErrGrantExists) {
		t.Fatalf("expected ErrGrantExists, got %v", err)
	}
}

func TestDeleteGrant(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("delete from tenant_roles").
		WithArgs(int64(1), "USER", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("delete from tenant_roles").
		WithArgs(int64(1), "USER", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	grant := domain.RoleGrant{UserID: 1, RoleID: "USER"}
	if err := repo.DeleteGrant(context.Background(), grant); err != nil {
		t.Fatalf("DeleteGrant: %v", err)
	}
	if err := repo.DeleteGrant(context.Background(), grant); !errors.Is(err, domain.ErrGrantNotFound) {
		t.Fatalf("expected ErrGrantNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
