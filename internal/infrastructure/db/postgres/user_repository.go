package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/99minutos/access-control/internal/core/domain"
	"github.com/99minutos/access-control/internal/core/ports"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// UserRepository implements ports.UserRepository and ports.GrantRepository
// over the users, roles and tenant_roles tables.
type UserRepository struct {
	db      *sql.DB
	timeout time.Duration
}

var (
	_ ports.UserRepository  = (*UserRepository)(nil)
	_ ports.GrantRepository = (*UserRepository)(nil)
)

func NewUserRepository(db *sql.DB, timeout time.Duration) *UserRepository {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &UserRepository{db: db, timeout: timeout}
}

const userColumns = `u.id, u.email, u.name, u.password, u.tenant_id, u.created_at, u.updated_at`

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `select `+userColumns+` from users u where u.email = $1`, email)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `select `+userColumns+` from users u where u.id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("find user %d: %w", id, err)
	}
	return user, nil
}

// FindWithRoleGrants loads the user and its grants with one left join. A user
// without grants comes back as a single row with null grant columns.
func (r *UserRepository) FindWithRoleGrants(ctx context.Context, id int64) (*domain.UserWithGrants, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		select `+userColumns+`, tr.role_id, ro.name, tr.tenant_id
		from users u
		left join tenant_roles tr on tr.user_id = u.id
		left join roles ro on ro.id = tr.role_id
		where u.id = $1
		order by tr.id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("find user %d with grants: %w", id, err)
	}
	defer rows.Close()

	var out *domain.UserWithGrants
	for rows.Next() {
		var (
			u        domain.User
			tenantID sql.NullInt64
			roleID   sql.NullString
			roleName sql.NullString
			grantTen sql.NullInt64
		)
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &tenantID, &u.CreatedAt, &u.UpdatedAt,
			&roleID, &roleName, &grantTen); err != nil {
			return nil, fmt.Errorf("find user %d with grants: scan: %w", id, err)
		}
		if out == nil {
			u.TenantID = int64Ptr(tenantID)
			out = &domain.UserWithGrants{User: u, Grants: []domain.RoleGrant{}}
		}
		if !roleID.Valid {
			continue
		}
		grant := domain.RoleGrant{
			UserID:   u.ID,
			RoleID:   roleID.String,
			RoleName: roleName.String,
			Scope:    domain.ScopeGlobal,
			TenantID: int64Ptr(grantTen),
		}
		if grant.RoleName == "" {
			grant.RoleName = grant.RoleID
		}
		if grant.TenantID != nil {
			grant.Scope = domain.ScopeTenant
		}
		out.Grants = append(out.Grants, grant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find user %d with grants: %w", id, err)
	}
	if out == nil {
		return nil, domain.ErrUserNotFound
	}
	return out, nil
}

func (r *UserRepository) FindRole(ctx context.Context, roleID string) (*domain.Role, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var role domain.Role
	err := r.db.QueryRowContext(ctx, `select id, name, type from roles where id = $1`, roleID).
		Scan(&role.ID, &role.Name, &role.Scope)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find role %s: %w", roleID, err)
	}
	return &role, nil
}

func (r *UserRepository) CreateGrant(ctx context.Context, grant domain.RoleGrant) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		insert into tenant_roles (tenant_id, user_id, role_id)
		values ($1, $2, $3)
	`, nullInt64(grant.TenantID), grant.UserID, grant.RoleID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return domain.ErrGrantExists
			case pgErrForeignKeyViolation:
				return fmt.Errorf("%w: unknown user or tenant", domain.ErrInvalidGrant)
			}
		}
		return fmt.Errorf("create grant: %w", err)
	}
	return nil
}

func (r *UserRepository) DeleteGrant(ctx context.Context, grant domain.RoleGrant) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		delete from tenant_roles
		where user_id = $1 and role_id = $2 and tenant_id is not distinct from $3
	`, grant.UserID, grant.RoleID, nullInt64(grant.TenantID))
	if err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}
	if n == 0 {
		return domain.ErrGrantNotFound
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *UserRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.db.PingContext(ctx)
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var (
		u        domain.User
		tenantID sql.NullInt64
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &tenantID, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	u.TenantID = int64Ptr(tenantID)
	return &u, nil
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
