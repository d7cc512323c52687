package orgs

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

// Repository provides PostgreSQL backed persistence for organizations.
type Repository interface {
	List(ctx context.Context, scope authz.Predicate, page shared.Pagination) ([]Organization, int, error)
	Get(ctx context.Context, scope authz.Predicate, id uuid.UUID) (Organization, error)
	CreateWithAdmin(ctx context.Context, name string, ownerID uuid.UUID, adminPerms []authz.Permission) (Organization, error)
	Rename(ctx context.Context, id uuid.UUID, name string) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	AddMember(ctx context.Context, orgID, userID uuid.UUID, roleIDs []uuid.UUID) error
	RemoveMember(ctx context.Context, orgID, userID uuid.UUID) error
	ListMembers(ctx context.Context, orgID uuid.UUID) ([]Member, error)
	RolesBelongTo(ctx context.Context, orgID uuid.UUID, roleIDs []uuid.UUID) (bool, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, scope authz.Predicate, page shared.Pagination) ([]Organization, int, error) {
	where, args, err := pgstore.Translate(authz.KindOrganization, scope, "o", nil)
	if err != nil {
		return nil, 0, err
	}
	base := ` FROM organizations o WHERE o.status = 'active' AND ` + where

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+base, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT o.id, o.name, o.status, o.created_at, o.updated_at` + base + ` ORDER BY o.name`
	if page.PerPage > 0 {
		query += ` LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
		args = append(args, page.PerPage, page.Offset())
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Organization
	for rows.Next() {
		var o Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, scope authz.Predicate, id uuid.UUID) (Organization, error) {
	where, args, err := pgstore.Translate(authz.KindOrganization, scope, "o", []any{id})
	if err != nil {
		return Organization{}, err
	}
	var o Organization
	err = r.pool.QueryRow(ctx, `
		SELECT o.id, o.name, o.status, o.created_at, o.updated_at
		FROM organizations o
		WHERE o.id = $1 AND o.status = 'active' AND `+where, args...).
		Scan(&o.ID, &o.Name, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Organization{}, shared.ErrNotFound
	}
	return o, err
}

// CreateWithAdmin creates the organization, an organization-admin role
// granting adminPerms, and the owner's membership holding that role, in one
// transaction.
func (r *repository) CreateWithAdmin(ctx context.Context, name string, ownerID uuid.UUID, adminPerms []authz.Permission) (Organization, error) {
	now := time.Now().UTC()
	org := Organization{ID: uuid.New(), Name: name, Status: StatusActive, CreatedAt: now, UpdatedAt: now}

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO organizations (id, name, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)`,
			org.ID, org.Name, org.Status, org.CreatedAt, org.UpdatedAt); err != nil {
			return mapPgError(err)
		}

		roleID := uuid.New()
		if _, err := tx.Exec(ctx, `
			INSERT INTO roles (id, organization_id, name, system_role, status, created_at, updated_at)
			VALUES ($1, $2, 'Organization Admin', TRUE, 'active', $3, $3)`,
			roleID, org.ID, now); err != nil {
			return mapPgError(err)
		}
		for _, perm := range adminPerms {
			if _, err := tx.Exec(ctx, `
				INSERT INTO role_permissions (role_id, permission_id, allow)
				VALUES ($1, $2, TRUE)`, roleID, string(perm)); err != nil {
				return mapPgError(err)
			}
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO organization_memberships (user_id, organization_id, status, joined_at)
			VALUES ($1, $2, 'active', $3)`, ownerID, org.ID, now); err != nil {
			return mapPgError(err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO organization_membership_roles (user_id, organization_id, role_id)
			VALUES ($1, $2, $3)`, ownerID, org.ID, roleID); err != nil {
			return mapPgError(err)
		}
		return nil
	})
	if err != nil {
		return Organization{}, err
	}
	return org, nil
}

func (r *repository) Rename(ctx context.Context, id uuid.UUID, name string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE organizations SET name = $2, updated_at = now()
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
		UPDATE organizations SET status = 'inactive', updated_at = now()
		WHERE id = $1 AND status = 'active'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) AddMember(ctx context.Context, orgID, userID uuid.UUID, roleIDs []uuid.UUID) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO organization_memberships (user_id, organization_id, status, joined_at)
			VALUES ($1, $2, 'active', now())
			ON CONFLICT (user_id, organization_id)
			DO UPDATE SET status = 'active'`, userID, orgID); err != nil {
			return mapPgError(err)
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM organization_membership_roles
			WHERE user_id = $1 AND organization_id = $2`, userID, orgID); err != nil {
			return err
		}
		for _, roleID := range roleIDs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO organization_membership_roles (user_id, organization_id, role_id)
				VALUES ($1, $2, $3)`, userID, orgID, roleID); err != nil {
				return mapPgError(err)
			}
		}
		return nil
	})
}

func (r *repository) RemoveMember(ctx context.Context, orgID, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE organization_memberships SET status = 'inactive'
		WHERE user_id = $1 AND organization_id = $2 AND status = 'active'`, userID, orgID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) ListMembers(ctx context.Context, orgID uuid.UUID) ([]Member, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT m.user_id, m.organization_id, m.joined_at,
		       COALESCE(array_agg(mr.role_id) FILTER (WHERE mr.role_id IS NOT NULL), '{}')
		FROM organization_memberships m
		LEFT JOIN organization_membership_roles mr
		       ON mr.user_id = m.user_id AND mr.organization_id = m.organization_id
		WHERE m.organization_id = $1 AND m.status = 'active'
		GROUP BY m.user_id, m.organization_id, m.joined_at
		ORDER BY m.joined_at`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.UserID, &m.OrganizationID, &m.JoinedAt, &m.RoleIDs); err != nil {
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
	return count == len(uniqueIDs(roleIDs)), nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrDuplicate
	}
	return err
}
