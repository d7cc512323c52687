package taxonomy

import (
	"time"

	"github.com/google/uuid"

	"github.com/lyceum-platform/lyceum/internal/authz"
)

// Entity is one row of the academic taxonomy. The six taxonomy types share
// this shape: programs, subjects, grades, age ranges, categories and
// subcategories. System entities are platform-provided, have no owning
// organization and are visible to everyone.
type Entity struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	Name           string     `json:"name"`
	System         bool       `json:"system"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Share records that an entity was shared with an organization.
type Share struct {
	EntityID       uuid.UUID `json:"entity_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
}

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// kindSpec ties a taxonomy kind to its table and permissions. Categories and
// subcategories share the subject permissions, matching how roles are
// provisioned.
type kindSpec struct {
	kind   authz.EntityKind
	table  string
	view   authz.Permission
	create authz.Permission
	edit   authz.Permission
	delete authz.Permission
}

var kinds = map[authz.EntityKind]kindSpec{
	authz.KindProgram: {
		kind: authz.KindProgram, table: "programs",
		view: authz.PermViewPrograms, create: authz.PermCreatePrograms,
		edit: authz.PermEditPrograms, delete: authz.PermDeletePrograms,
	},
	authz.KindSubject: {
		kind: authz.KindSubject, table: "subjects",
		view: authz.PermViewSubjects, create: authz.PermCreateSubjects,
		edit: authz.PermEditSubjects, delete: authz.PermDeleteSubjects,
	},
	authz.KindGrade: {
		kind: authz.KindGrade, table: "grades",
		view: authz.PermViewGrades, create: authz.PermCreateGrades,
		edit: authz.PermEditGrades, delete: authz.PermDeleteGrades,
	},
	authz.KindAgeRange: {
		kind: authz.KindAgeRange, table: "age_ranges",
		view: authz.PermViewAgeRanges, create: authz.PermCreateAgeRanges,
		edit: authz.PermEditAgeRanges, delete: authz.PermDeleteAgeRanges,
	},
	authz.KindCategory: {
		kind: authz.KindCategory, table: "categories",
		view: authz.PermViewSubjects, create: authz.PermCreateSubjects,
		edit: authz.PermEditSubjects, delete: authz.PermDeleteSubjects,
	},
	authz.KindSubcategory: {
		kind: authz.KindSubcategory, table: "subcategories",
		view: authz.PermViewSubjects, create: authz.PermCreateSubjects,
		edit: authz.PermEditSubjects, delete: authz.PermDeleteSubjects,
	},
}

// KnownKind reports whether kind names a taxonomy entity type.
func KnownKind(kind authz.EntityKind) bool {
	_, ok := kinds[kind]
	return ok
}
