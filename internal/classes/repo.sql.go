package classes

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
	"github.com/lyceum-platform/lyceum/internal/shared"
)

// Repository provides PostgreSQL backed persistence for classes.
type Repository interface {
	List(ctx context.Context, scope authz.Predicate, page shared.Pagination) ([]Class, int, error)
	Get(ctx context.Context, scope authz.Predicate, id uuid.UUID) (Class, error)
	Find(ctx context.Context, id uuid.UUID) (Class, error)
	Create(ctx context.Context, orgID uuid.UUID, name string) (Class, error)
	Rename(ctx context.Context, id uuid.UUID, name string) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	LinkSchool(ctx context.Context, classID, schoolID uuid.UUID) error
	UnlinkSchool(ctx context.Context, classID, schoolID uuid.UUID) error
	SchoolInSameOrg(ctx context.Context, classID, schoolID uuid.UUID) (bool, error)
	AddTeacher(ctx context.Context, classID, userID uuid.UUID) error
	RemoveTeacher(ctx context.Context, classID, userID uuid.UUID) error
	AddStudent(ctx context.Context, classID, userID uuid.UUID) error
	RemoveStudent(ctx context.Context, classID, userID uuid.UUID) error
	GetRoster(ctx context.Context, classID uuid.UUID) (Roster, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const classColumns = `c.id, c.organization_id, c.name, c.status, c.created_at, c.updated_at,
       COALESCE((SELECT array_agg(sc.school_id) FROM school_classes sc WHERE sc.class_id = c.id), '{}')`

func (r *repository) List(ctx context.Context, scope authz.Predicate, page shared.Pagination) ([]Class, int, error) {
	where, args, err := pgstore.Translate(authz.KindClass, scope, "c", nil)
	if err != nil {
		return nil, 0, err
	}
	base := ` FROM classes c WHERE c.status = 'active' AND ` + where

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+base, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + classColumns + base + ` ORDER BY c.name`
	if page.PerPage > 0 {
		query += ` LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
		args = append(args, page.PerPage, page.Offset())
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Class
	for rows.Next() {
		var c Class
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Status, &c.CreatedAt, &c.UpdatedAt, &c.SchoolIDs); err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, scope authz.Predicate, id uuid.UUID) (Class, error) {
	where, args, err := pgstore.Translate(authz.KindClass, scope, "c", []any{id})
	if err != nil {
		return Class{}, err
	}
	var c Class
	err = r.pool.QueryRow(ctx, `
		SELECT `+classColumns+`
		FROM classes c
		WHERE c.id = $1 AND c.status = 'active' AND `+where, args...).
		Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Status, &c.CreatedAt, &c.UpdatedAt, &c.SchoolIDs)
	if errors.Is(err, pgx.ErrNoRows) {
		return Class{}, shared.ErrNotFound
	}
	return c, err
}

// Find loads an active class by id without scope filtering.
func (r *repository) Find(ctx context.Context, id uuid.UUID) (Class, error) {
	var c Class
	err := r.pool.QueryRow(ctx, `
		SELECT `+classColumns+`
		FROM classes c
		WHERE c.id = $1 AND c.status = 'active'`, id).
		Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Status, &c.CreatedAt, &c.UpdatedAt, &c.SchoolIDs)
	if errors.Is(err, pgx.ErrNoRows) {
		return Class{}, shared.ErrNotFound
	}
	return c, err
}

func (r *repository) Create(ctx context.Context, orgID uuid.UUID, name string) (Class, error) {
	now := time.Now().UTC()
	c := Class{ID: uuid.New(), OrganizationID: orgID, Name: name, Status: StatusActive, SchoolIDs: []uuid.UUID{}, CreatedAt: now, UpdatedAt: now}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO classes (id, organization_id, name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.OrganizationID, c.Name, c.Status, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return Class{}, mapPgError(err)
	}
	return c, nil
}

func (r *repository) Rename(ctx context.Context, id uuid.UUID, name string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE classes SET name = $2, updated_at = now()
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
		UPDATE classes SET status = 'inactive', updated_at = now()
		WHERE id = $1 AND status = 'active'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) LinkSchool(ctx context.Context, classID, schoolID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO school_classes (class_id, school_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, classID, schoolID)
	return mapPgError(err)
}

func (r *repository) UnlinkSchool(ctx context.Context, classID, schoolID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM school_classes WHERE class_id = $1 AND school_id = $2`, classID, schoolID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SchoolInSameOrg reports whether schoolID is an active school of the class's
// owning organization.
func (r *repository) SchoolInSameOrg(ctx context.Context, classID, schoolID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM schools s
			JOIN classes c ON c.organization_id = s.organization_id
			WHERE s.id = $2 AND s.status = 'active' AND c.id = $1
		)`, classID, schoolID).Scan(&ok)
	return ok, err
}

func (r *repository) AddTeacher(ctx context.Context, classID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO class_teachers (class_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, classID, userID)
	return mapPgError(err)
}

func (r *repository) RemoveTeacher(ctx context.Context, classID, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM class_teachers WHERE class_id = $1 AND user_id = $2`, classID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) AddStudent(ctx context.Context, classID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO class_students (class_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, classID, userID)
	return mapPgError(err)
}

func (r *repository) RemoveStudent(ctx context.Context, classID, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM class_students WHERE class_id = $1 AND user_id = $2`, classID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) GetRoster(ctx context.Context, classID uuid.UUID) (Roster, error) {
	roster := Roster{TeacherIDs: []uuid.UUID{}, StudentIDs: []uuid.UUID{}}
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE((SELECT array_agg(user_id) FROM class_teachers WHERE class_id = $1), '{}'),
		       COALESCE((SELECT array_agg(user_id) FROM class_students WHERE class_id = $1), '{}')`,
		classID).Scan(&roster.TeacherIDs, &roster.StudentIDs)
	return roster, err
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
