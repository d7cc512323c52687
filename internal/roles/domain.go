package roles

import (
	"time"

	"github.com/google/uuid"

	"github.com/lyceum-platform/lyceum/internal/authz"
)

// Role is owned by an organization. System roles are generated by the
// platform and cannot be edited or deleted.
type Role struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	SystemRole     bool      `json:"system_role"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Assignment is one explicit permission row of a role. Allow false is an
// explicit deny, which outranks any allow the user holds at the same scope.
type Assignment struct {
	Permission authz.Permission `json:"permission"`
	Allow      bool             `json:"allow"`
}

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)
