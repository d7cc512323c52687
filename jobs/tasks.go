package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskMembershipCascade soft-removes the memberships of a deactivated
	// organization or school.
	TaskMembershipCascade = "memberships:cascade"
	// TaskRetentionPurge hard-deletes rows soft-deleted beyond retention.
	TaskRetentionPurge = "retention:purge"
)

// MembershipCascadePayload names the deactivated parent entity.
type MembershipCascadePayload struct {
	Kind string    `json:"kind"`
	ID   uuid.UUID `json:"id"`
}

// NewMembershipCascadeTask constructs the cascade task.
func NewMembershipCascadeTask(payload MembershipCascadePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMembershipCascade, data), nil
}

// NewRetentionPurgeTask constructs the purge task. The retention window is
// resolved by the handler, so the task carries no payload.
func NewRetentionPurgeTask() *asynq.Task {
	return asynq.NewTask(TaskRetentionPurge, nil)
}

// Invalidator drops a user's cached memberships.
type Invalidator interface {
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

// JobRecorder counts task outcomes.
type JobRecorder interface {
	RecordJob(task, outcome string)
}

// Tasks bundles the task handlers with their dependencies.
type Tasks struct {
	Pool        *pgxpool.Pool
	Invalidator Invalidator
	Retention   time.Duration
	Logger      *slog.Logger
	Metrics     JobRecorder
}

func (t *Tasks) record(task, outcome string) {
	if t.Metrics != nil {
		t.Metrics.RecordJob(task, outcome)
	}
}

// HandleMembershipCascade deactivates the memberships under the named parent
// and invalidates the affected users' cached memberships. Running it twice is
// harmless since only active rows transition.
func (t *Tasks) HandleMembershipCascade(ctx context.Context, task *asynq.Task) error {
	var payload MembershipCascadePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		t.record(TaskMembershipCascade, "malformed")
		return asynq.SkipRetry
	}

	var userIDs []uuid.UUID
	var err error
	switch payload.Kind {
	case "organization":
		userIDs, err = t.cascadeOrganization(ctx, payload.ID)
	case "school":
		userIDs, err = t.cascadeSchool(ctx, payload.ID)
	default:
		t.record(TaskMembershipCascade, "malformed")
		return asynq.SkipRetry
	}
	if err != nil {
		t.record(TaskMembershipCascade, "error")
		return err
	}

	for _, id := range userIDs {
		if err := t.Invalidator.Invalidate(ctx, id); err != nil {
			t.Logger.Warn("membership cache invalidation failed",
				slog.Any("error", err), slog.String("user_id", id.String()))
		}
	}
	t.record(TaskMembershipCascade, "ok")
	t.Logger.Info("membership cascade complete",
		slog.String("kind", payload.Kind),
		slog.String("id", payload.ID.String()),
		slog.Int("memberships", len(userIDs)))
	return nil
}

// cascadeOrganization deactivates the org's direct memberships and the
// memberships of its schools.
func (t *Tasks) cascadeOrganization(ctx context.Context, orgID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := t.Pool.Query(ctx, `
		UPDATE organization_memberships SET status = 'inactive'
		WHERE organization_id = $1 AND status = 'active'
		RETURNING user_id`, orgID)
	if err != nil {
		return nil, err
	}
	userIDs, err := collectIDs(rows)
	if err != nil {
		return nil, err
	}

	schoolRows, err := t.Pool.Query(ctx, `
		UPDATE school_memberships m SET status = 'inactive'
		FROM schools s
		WHERE s.id = m.school_id AND s.organization_id = $1 AND m.status = 'active'
		RETURNING m.user_id`, orgID)
	if err != nil {
		return nil, err
	}
	schoolUserIDs, err := collectIDs(schoolRows)
	if err != nil {
		return nil, err
	}
	return dedupe(append(userIDs, schoolUserIDs...)), nil
}

func (t *Tasks) cascadeSchool(ctx context.Context, schoolID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := t.Pool.Query(ctx, `
		UPDATE school_memberships SET status = 'inactive'
		WHERE school_id = $1 AND status = 'active'
		RETURNING user_id`, schoolID)
	if err != nil {
		return nil, err
	}
	ids, err := collectIDs(rows)
	if err != nil {
		return nil, err
	}
	return dedupe(ids), nil
}

// Subqueries naming the rows each purge run removes. A deactivated
// organization takes its whole subtree with it, so the child sets include
// rows whose owning organization is itself purgeable.
var (
	purgeableOrgs    = `SELECT id FROM organizations WHERE status = 'inactive' AND updated_at < $1`
	orgSubtree       = `(status = 'inactive' AND updated_at < $1) OR organization_id IN (` + purgeableOrgs + `)`
	purgeableSchools = `SELECT id FROM schools WHERE ` + orgSubtree
	purgeableClasses = `SELECT id FROM classes WHERE ` + orgSubtree
	purgeableRoles   = `SELECT id FROM roles WHERE ` + orgSubtree

	purgeableTaxonomy = `SELECT id FROM programs WHERE ` + orgSubtree +
		` UNION ALL SELECT id FROM subjects WHERE ` + orgSubtree +
		` UNION ALL SELECT id FROM grades WHERE ` + orgSubtree +
		` UNION ALL SELECT id FROM age_ranges WHERE ` + orgSubtree +
		` UNION ALL SELECT id FROM categories WHERE ` + orgSubtree +
		` UNION ALL SELECT id FROM subcategories WHERE ` + orgSubtree
)

// retentionTables lists purge targets in FK-safe order: junction and
// membership rows first, then the entities, organizations last. Within one
// run every child of a purgeable organization is removed before the
// organization row itself.
var retentionTables = []struct {
	table string
	where string
}{
	{"organization_membership_roles", `(user_id, organization_id) IN (SELECT user_id, organization_id FROM organization_memberships WHERE status = 'inactive' AND joined_at < $1) OR organization_id IN (` + purgeableOrgs + `) OR role_id IN (` + purgeableRoles + `)`},
	{"organization_memberships", `(status = 'inactive' AND joined_at < $1) OR organization_id IN (` + purgeableOrgs + `)`},
	{"school_membership_roles", `(user_id, school_id) IN (SELECT user_id, school_id FROM school_memberships WHERE status = 'inactive' AND joined_at < $1) OR school_id IN (` + purgeableSchools + `) OR role_id IN (` + purgeableRoles + `)`},
	{"school_memberships", `(status = 'inactive' AND joined_at < $1) OR school_id IN (` + purgeableSchools + `)`},
	{"role_permissions", `role_id IN (` + purgeableRoles + `)`},
	{"class_teachers", `class_id IN (` + purgeableClasses + `)`},
	{"class_students", `class_id IN (` + purgeableClasses + `)`},
	{"school_classes", `class_id IN (` + purgeableClasses + `) OR school_id IN (` + purgeableSchools + `)`},
	{"taxonomy_shares", `organization_id IN (` + purgeableOrgs + `) OR entity_id IN (` + purgeableTaxonomy + `)`},
	{"classes", orgSubtree},
	{"schools", orgSubtree},
	{"roles", orgSubtree},
	{"programs", orgSubtree},
	{"subjects", orgSubtree},
	{"grades", orgSubtree},
	{"age_ranges", orgSubtree},
	{"categories", orgSubtree},
	{"subcategories", orgSubtree},
	{"organizations", `status = 'inactive' AND updated_at < $1`},
}

// HandleRetentionPurge hard-deletes rows whose soft delete is older than the
// retention window.
func (t *Tasks) HandleRetentionPurge(ctx context.Context, _ *asynq.Task) error {
	cutoff := time.Now().UTC().Add(-t.Retention)
	var total int64
	for _, target := range retentionTables {
		tag, err := t.Pool.Exec(ctx, `DELETE FROM `+target.table+` WHERE `+target.where, cutoff)
		if err != nil {
			t.record(TaskRetentionPurge, "error")
			return err
		}
		total += tag.RowsAffected()
	}
	t.record(TaskRetentionPurge, "ok")
	t.Logger.Info("retention purge complete",
		slog.Time("cutoff", cutoff), slog.Int64("rows", total))
	return nil
}

func collectIDs(rows pgx.Rows) ([]uuid.UUID, error) {
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

func dedupe(ids []uuid.UUID) []uuid.UUID {
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
