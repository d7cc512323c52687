package users

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lyceum-platform/lyceum/internal/authz"
	"github.com/lyceum-platform/lyceum/internal/authz/pgstore"
	"github.com/lyceum-platform/lyceum/internal/shared"
)

// Repository provides PostgreSQL backed read access to users.
type Repository interface {
	List(ctx context.Context, scope authz.Predicate, page shared.Pagination) ([]User, int, error)
	Get(ctx context.Context, scope authz.Predicate, id uuid.UUID) (User, error)
	Find(ctx context.Context, id uuid.UUID) (User, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, scope authz.Predicate, page shared.Pagination) ([]User, int, error) {
	where, args, err := pgstore.Translate(authz.KindUser, scope, "u", nil)
	if err != nil {
		return nil, 0, err
	}
	base := ` FROM users u WHERE u.status = 'active' AND ` + where

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+base, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT u.id, u.given_name, u.family_name, u.email, u.status, u.created_at, u.updated_at` +
		base + ` ORDER BY u.family_name, u.given_name`
	if page.PerPage > 0 {
		query += ` LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
		args = append(args, page.PerPage, page.Offset())
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.GivenName, &u.FamilyName, &u.Email, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, scope authz.Predicate, id uuid.UUID) (User, error) {
	where, args, err := pgstore.Translate(authz.KindUser, scope, "u", []any{id})
	if err != nil {
		return User{}, err
	}
	var u User
	err = r.pool.QueryRow(ctx, `
		SELECT u.id, u.given_name, u.family_name, u.email, u.status, u.created_at, u.updated_at
		FROM users u
		WHERE u.id = $1 AND u.status = 'active' AND `+where, args...).
		Scan(&u.ID, &u.GivenName, &u.FamilyName, &u.Email, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, shared.ErrNotFound
	}
	return u, err
}

// Find loads an active user by id without scope filtering. Used for the
// principal's own record.
func (r *repository) Find(ctx context.Context, id uuid.UUID) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `
		SELECT id, given_name, family_name, email, status, created_at, updated_at
		FROM users WHERE id = $1 AND status = 'active'`, id).
		Scan(&u.ID, &u.GivenName, &u.FamilyName, &u.Email, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, shared.ErrNotFound
	}
	return u, err
}
