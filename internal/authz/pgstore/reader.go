// Package pgstore backs the authorization core with PostgreSQL reads and
// translates scope predicates into SQL.
package pgstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lyceum-platform/lyceum/internal/authz"
)

// Reader implements authz.MembershipReader and authz.RoleReader over pgx.
// Soft-deleted memberships, roles and parent entities are filtered here so
// the core only ever sees active scope rows.
type Reader struct {
	pool *pgxpool.Pool
}

// NewReader constructs a Reader.
func NewReader(pool *pgxpool.Pool) *Reader {
	return &Reader{pool: pool}
}

// OrgMembershipsOf returns the principal's active organization memberships
// with the active roles held at each.
func (r *Reader) OrgMembershipsOf(ctx context.Context, userID uuid.UUID) ([]authz.OrgMembership, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT m.organization_id,
		       COALESCE(array_agg(mr.role_id) FILTER (WHERE ro.status = 'active'), '{}')
		FROM organization_memberships m
		JOIN organizations o ON o.id = m.organization_id AND o.status = 'active'
		LEFT JOIN organization_membership_roles mr
		       ON mr.user_id = m.user_id AND mr.organization_id = m.organization_id
		LEFT JOIN roles ro ON ro.id = mr.role_id
		WHERE m.user_id = $1 AND m.status = 'active'
		GROUP BY m.organization_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memberships []authz.OrgMembership
	for rows.Next() {
		var m authz.OrgMembership
		if err := rows.Scan(&m.OrganizationID, &m.RoleIDs); err != nil {
			return nil, err
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

// SchoolMembershipsOf returns the principal's active school memberships,
// each tagged with the school's owning organization.
func (r *Reader) SchoolMembershipsOf(ctx context.Context, userID uuid.UUID) ([]authz.SchoolMembership, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT m.school_id, s.organization_id,
		       COALESCE(array_agg(mr.role_id) FILTER (WHERE ro.status = 'active'), '{}')
		FROM school_memberships m
		JOIN schools s ON s.id = m.school_id AND s.status = 'active'
		JOIN organizations o ON o.id = s.organization_id AND o.status = 'active'
		LEFT JOIN school_membership_roles mr
		       ON mr.user_id = m.user_id AND mr.school_id = m.school_id
		LEFT JOIN roles ro ON ro.id = mr.role_id
		WHERE m.user_id = $1 AND m.status = 'active'
		GROUP BY m.school_id, s.organization_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memberships []authz.SchoolMembership
	for rows.Next() {
		var m authz.SchoolMembership
		if err := rows.Scan(&m.SchoolID, &m.OrganizationID, &m.RoleIDs); err != nil {
			return nil, err
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

// PermissionAssignments returns the explicit allow flags recorded for perm
// across the given active roles. The deny-overrides-grant reduction happens
// in memory in the core, never in SQL.
func (r *Reader) PermissionAssignments(ctx context.Context, roleIDs []uuid.UUID, perm authz.Permission) ([]bool, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rp.allow
		FROM role_permissions rp
		JOIN roles ro ON ro.id = rp.role_id AND ro.status = 'active'
		WHERE rp.role_id = ANY($1) AND rp.permission_id = $2`, roleIDs, string(perm))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []bool
	for rows.Next() {
		var allow bool
		if err := rows.Scan(&allow); err != nil {
			return nil, err
		}
		assignments = append(assignments, allow)
	}
	return assignments, rows.Err()
}
