package schools

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lyceum-platform/lyceum/internal/authz"
	"github.com/lyceum-platform/lyceum/internal/authz/pgstore"
	"github.com/lyceum-platform/lyceum/internal/platform/db"
	"github.com/lyceum-platform/lyceum/internal/shared"
)

// Repository provides PostgreSQL backed persistence for schools.
type Repository interface {
	List(ctx context.Context, scope authz.Predicate, page shared.Pagination) ([]School, int, error)
	Get(ctx context.Context, scope authz.Predicate, id uuid.UUID) (School, error)
	Find(ctx context.Context, id uuid.UUID) (School, error)
	Create(ctx context.Context, orgID uuid.UUID, name string) (School, error)
	Rename(ctx context.Context, id uuid.UUID, name string) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	AddMember(ctx context.Context, schoolID, userID uuid.UUID, roleIDs []uuid.UUID) error
	RemoveMember(ctx context.Context, schoolID, userID uuid.UUID) error
	ListMembers(ctx context.Context, schoolID uuid.UUID) ([]Member, error)
	RolesBelongTo(ctx context.Context, orgID uuid.UUID, roleIDs []uuid.UUID) (bool, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, scope authz.Predicate, page shared.Pagination) ([]School, int, error) {
	where, args, err := pgstore.Translate(authz.KindSchool, scope, "s", nil)
	if err != nil {
		return nil, 0, err
	}
	base := ` FROM schools s WHERE s.status = 'active' AND ` + where

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+base, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT s.id, s.organization_id, s.name, s.status, s.created_at, s.updated_at` + base + ` ORDER BY s.name`
	if page.PerPage > 0 {
		query += ` LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
		args = append(args, page.PerPage, page.Offset())
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []School
	for rows.Next() {
		var s School
		if err := rows.Scan(&s.ID, &s.OrganizationID, &s.Name, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, scope authz.Predicate, id uuid.UUID) (School, error) {
	where, args, err := pgstore.Translate(authz.KindSchool, scope, "s", []any{id})
	if err != nil {
		return School{}, err
	}
	var s School
	err = r.pool.QueryRow(ctx, `
		SELECT s.id, s.organization_id, s.name, s.status, s.created_at, s.updated_at
		FROM schools s
		WHERE s.id = $1 AND s.status = 'active' AND `+where, args...).
		Scan(&s.ID, &s.OrganizationID, &s.Name, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return School{}, shared.ErrNotFound
	}
	return s, err
}

// Find loads an active school by id without scope filtering. Services use it
// to learn the owning organization before running permission checks.
func (r *repository) Find(ctx context.Context, id uuid.UUID) (School, error) {
	var s School
	err := r.pool.QueryRow(ctx, `
		SELECT id, organization_id, name, status, created_at, updated_at
		FROM schools WHERE id = $1 AND status = 'active'`, id).
		Scan(&s.ID, &s.OrganizationID, &s.Name, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return School{}, shared.ErrNotFound
	}
	return s, err
}

func (r *repository) Create(ctx context.Context, orgID uuid.UUID, name string) (School, error) {
	now := time.Now().UTC()
	s := School{ID: uuid.New(), OrganizationID: orgID, Name: name, Status: StatusActive, CreatedAt: now, UpdatedAt: now}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO schools (id, organization_id, name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.OrganizationID, s.Name, s.Status, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return School{}, mapPgError(err)
	}
	return s, nil
}

func (r *repository) Rename(ctx context.Context, id uuid.UUID, name string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE schools SET name = $2, updated_at = now()
		WHERE id = $1 AND status = 'active'`, id, name)
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
		UPDATE schools SET status = 'inactive', updated_at = now()
		WHERE id = $1 AND status = 'active'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) AddMember(ctx context.Context, schoolID, userID uuid.UUID, roleIDs []uuid.UUID) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO school_memberships (user_id, school_id, status, joined_at)
			VALUES ($1, $2, 'active', now())
			ON CONFLICT (user_id, school_id)
			DO UPDATE SET status = 'active'`, userID, schoolID); err != nil {
			return mapPgError(err)
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM school_membership_roles
			WHERE user_id = $1 AND school_id = $2`, userID, schoolID); err != nil {
			return err
		}
		for _, roleID := range roleIDs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO school_membership_roles (user_id, school_id, role_id)
				VALUES ($1, $2, $3)`, userID, schoolID, roleID); err != nil {
				return mapPgError(err)
			}
		}
		return nil
	})
}

func (r *repository) RemoveMember(ctx context.Context, schoolID, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE school_memberships SET status = 'inactive'
		WHERE user_id = $1 AND school_id = $2 AND status = 'active'`, userID, schoolID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) ListMembers(ctx context.Context, schoolID uuid.UUID) ([]Member, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT m.user_id, m.school_id, m.joined_at,
		       COALESCE(array_agg(mr.role_id) FILTER (WHERE mr.role_id IS NOT NULL), '{}')
		FROM school_memberships m
		LEFT JOIN school_membership_roles mr
		       ON mr.user_id = m.user_id AND mr.school_id = m.school_id
		WHERE m.school_id = $1 AND m.status = 'active'
		GROUP BY m.user_id, m.school_id, m.joined_at
		ORDER BY m.joined_at`, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.UserID, &m.SchoolID, &m.JoinedAt, &m.RoleIDs); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// RolesBelongTo reports whether every role is an active role owned by orgID.
func (r *repository) RolesBelongTo(ctx context.Context, orgID uuid.UUID, roleIDs []uuid.UUID) (bool, error) {
	if len(roleIDs) == 0 {
		return true, nil
	}
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT id) FROM roles
		WHERE id = ANY($1) AND organization_id = $2 AND status = 'active'`,
		roleIDs, orgID).Scan(&count)
	if err != nil {
		return false, err
	}
	seen := make(map[uuid.UUID]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		seen[id] = struct{}{}
	}
	return count == len(seen), nil
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
