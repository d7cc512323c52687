package taxonomy

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

// Repository provides PostgreSQL backed persistence for all six taxonomy
// tables. Table names come from the fixed kind registry, never from input.
type Repository interface {
	List(ctx context.Context, kind authz.EntityKind, scope authz.Predicate, page shared.Pagination) ([]Entity, int, error)
	Get(ctx context.Context, kind authz.EntityKind, scope authz.Predicate, id uuid.UUID) (Entity, error)
	Find(ctx context.Context, kind authz.EntityKind, id uuid.UUID) (Entity, error)
	Create(ctx context.Context, kind authz.EntityKind, orgID uuid.UUID, name string) (Entity, error)
	Rename(ctx context.Context, kind authz.EntityKind, id uuid.UUID, name string) error
	SoftDelete(ctx context.Context, kind authz.EntityKind, id uuid.UUID) error
	Share(ctx context.Context, kind authz.EntityKind, entityID, orgID uuid.UUID) error
	Unshare(ctx context.Context, kind authz.EntityKind, entityID, orgID uuid.UUID) error
	SharedWith(ctx context.Context, kind authz.EntityKind, entityID uuid.UUID) ([]uuid.UUID, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func tableOf(kind authz.EntityKind) (string, error) {
	spec, ok := kinds[kind]
	if !ok {
		return "", shared.ErrNotFound
	}
	return spec.table, nil
}

func (r *repository) List(ctx context.Context, kind authz.EntityKind, scope authz.Predicate, page shared.Pagination) ([]Entity, int, error) {
	table, err := tableOf(kind)
	if err != nil {
		return nil, 0, err
	}
	where, args, err := pgstore.Translate(kind, scope, "t", nil)
	if err != nil {
		return nil, 0, err
	}
	base := ` FROM ` + table + ` t WHERE t.status = 'active' AND ` + where

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+base, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT t.id, t.organization_id, t.name, t.system, t.created_at, t.updated_at, t.status` + base + ` ORDER BY t.name`
	if page.PerPage > 0 {
		query += ` LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
		args = append(args, page.PerPage, page.Offset())
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.Name, &e.System, &e.CreatedAt, &e.UpdatedAt, &e.Status); err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, kind authz.EntityKind, scope authz.Predicate, id uuid.UUID) (Entity, error) {
	table, err := tableOf(kind)
	if err != nil {
		return Entity{}, err
	}
	where, args, err := pgstore.Translate(kind, scope, "t", []any{id})
	if err != nil {
		return Entity{}, err
	}
	var e Entity
	err = r.pool.QueryRow(ctx, `
		SELECT t.id, t.organization_id, t.name, t.system, t.created_at, t.updated_at, t.status
		FROM `+table+` t
		WHERE t.id = $1 AND t.status = 'active' AND `+where, args...).
		Scan(&e.ID, &e.OrganizationID, &e.Name, &e.System, &e.CreatedAt, &e.UpdatedAt, &e.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entity{}, shared.ErrNotFound
	}
	return e, err
}

// Find loads an active entity by id without scope filtering.
func (r *repository) Find(ctx context.Context, kind authz.EntityKind, id uuid.UUID) (Entity, error) {
	table, err := tableOf(kind)
	if err != nil {
		return Entity{}, err
	}
	var e Entity
	err = r.pool.QueryRow(ctx, `
		SELECT id, organization_id, name, system, created_at, updated_at, status
		FROM `+table+` WHERE id = $1 AND status = 'active'`, id).
		Scan(&e.ID, &e.OrganizationID, &e.Name, &e.System, &e.CreatedAt, &e.UpdatedAt, &e.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entity{}, shared.ErrNotFound
	}
	return e, err
}

func (r *repository) Create(ctx context.Context, kind authz.EntityKind, orgID uuid.UUID, name string) (Entity, error) {
	table, err := tableOf(kind)
	if err != nil {
		return Entity{}, err
	}
	now := time.Now().UTC()
	e := Entity{ID: uuid.New(), OrganizationID: &orgID, Name: name, Status: StatusActive, CreatedAt: now, UpdatedAt: now}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO `+table+` (id, organization_id, name, system, status, created_at, updated_at)
		VALUES ($1, $2, $3, FALSE, $4, $5, $6)`,
		e.ID, orgID, e.Name, e.Status, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return Entity{}, mapPgError(err)
	}
	return e, nil
}

func (r *repository) Rename(ctx context.Context, kind authz.EntityKind, id uuid.UUID, name string) error {
	table, err := tableOf(kind)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE `+table+` SET name = $2, updated_at = now()
		WHERE id = $1 AND status = 'active' AND system = FALSE`, id, name)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) SoftDelete(ctx context.Context, kind authz.EntityKind, id uuid.UUID) error {
	table, err := tableOf(kind)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE `+table+` SET status = 'inactive', updated_at = now()
		WHERE id = $1 AND status = 'active' AND system = FALSE`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Share(ctx context.Context, kind authz.EntityKind, entityID, orgID uuid.UUID) error {
	if _, err := tableOf(kind); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO taxonomy_shares (kind, entity_id, organization_id)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`, string(kind), entityID, orgID)
	return mapPgError(err)
}

func (r *repository) Unshare(ctx context.Context, kind authz.EntityKind, entityID, orgID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM taxonomy_shares
		WHERE kind = $1 AND entity_id = $2 AND organization_id = $3`,
		string(kind), entityID, orgID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) SharedWith(ctx context.Context, kind authz.EntityKind, entityID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT organization_id FROM taxonomy_shares
		WHERE kind = $1 AND entity_id = $2 ORDER BY organization_id`,
		string(kind), entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
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
