package orgs

import (
	"time"

	"github.com/google/uuid"
)

// Organization is the top-level tenant.
type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Member is one user's membership in an organization with the roles held
// there.
type Member struct {
	UserID         uuid.UUID   `json:"user_id"`
	OrganizationID uuid.UUID   `json:"organization_id"`
	RoleIDs        []uuid.UUID `json:"role_ids"`
	JoinedAt       time.Time   `json:"joined_at"`
}

// StatusActive and StatusInactive are the soft-delete states shared by all
// scoped entities.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)
