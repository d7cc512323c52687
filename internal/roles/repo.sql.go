package roles

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lyceum-platform/lyceum/internal/platform/db"
	"github.com/lyceum-platform/lyceum/internal/shared"
)

// Repository provides PostgreSQL backed persistence for roles and their
// permission assignments.
type Repository interface {
	List(ctx context.Context, orgID uuid.UUID, page shared.Pagination) ([]Role, int, error)
	Find(ctx context.Context, id uuid.UUID) (Role, error)
	Create(ctx context.Context, orgID uuid.UUID, name string) (Role, error)
	Rename(ctx context.Context, id uuid.UUID, name string) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	SetPermissions(ctx context.Context, id uuid.UUID, assignments []Assignment) error
	ListPermissions(ctx context.Context, id uuid.UUID) ([]Assignment, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, orgID uuid.UUID, page shared.Pagination) ([]Role, int, error) {
	base := ` FROM roles WHERE organization_id = $1 AND status = 'active'`
	args := []any{orgID}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+base, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, organization_id, name, system_role, status, created_at, updated_at` + base + ` ORDER BY name`
	if page.PerPage > 0 {
		query += ` LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
		args = append(args, page.PerPage, page.Offset())
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.OrganizationID, &role.Name, &role.SystemRole, &role.Status, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, role)
	}
	return out, total, rows.Err()
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `
		SELECT id, organization_id, name, system_role, status, created_at, updated_at
		FROM roles WHERE id = $1 AND status = 'active'`, id).
		Scan(&role.ID, &role.OrganizationID, &role.Name, &role.SystemRole, &role.Status, &role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, shared.ErrNotFound
	}
	return role, err
}

func (r *repository) Create(ctx context.Context, orgID uuid.UUID, name string) (Role, error) {
	now := time.Now().UTC()
	role := Role{ID: uuid.New(), OrganizationID: orgID, Name: name, Status: StatusActive, CreatedAt: now, UpdatedAt: now}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO roles (id, organization_id, name, system_role, status, created_at, updated_at)
		VALUES ($1, $2, $3, FALSE, $4, $5, $6)`,
		role.ID, role.OrganizationID, role.Name, role.Status, role.CreatedAt, role.UpdatedAt)
	if err != nil {
		return Role{}, mapPgError(err)
	}
	return role, nil
}

func (r *repository) Rename(ctx context.Context, id uuid.UUID, name string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE roles SET name = $2, updated_at = now()
		WHERE id = $1 AND status = 'active' AND system_role = FALSE`, id, name)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE roles SET status = 'inactive', updated_at = now()
		WHERE id = $1 AND status = 'active' AND system_role = FALSE`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetPermissions replaces the role's assignment rows in one transaction.
func (r *repository) SetPermissions(ctx context.Context, id uuid.UUID, assignments []Assignment) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
			return err
		}
		for _, a := range assignments {
			if _, err := tx.Exec(ctx, `
				INSERT INTO role_permissions (role_id, permission_id, allow)
				VALUES ($1, $2, $3)`, id, string(a.Permission), a.Allow); err != nil {
				return mapPgError(err)
			}
		}
		return nil
	})
}

func (r *repository) ListPermissions(ctx context.Context, id uuid.UUID) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT permission_id, allow FROM role_permissions
		WHERE role_id = $1 ORDER BY permission_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.Permission, &a.Allow); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return shared.ErrDuplicate
		case "23503":
			return shared.ErrNotFound
		}
	}
	return err
}
