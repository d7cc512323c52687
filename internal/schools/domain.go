package schools

import (
	"time"

	"github.com/google/uuid"
)

// School belongs to exactly one organization.
type School struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Member is a user's membership in a school. Roles attached here are roles
// owned by the school's organization.
type Member struct {
	UserID   uuid.UUID   `json:"user_id"`
	SchoolID uuid.UUID   `json:"school_id"`
	RoleIDs  []uuid.UUID `json:"role_ids"`
	JoinedAt time.Time   `json:"joined_at"`
}

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)
