package classes

import (
	"time"

	"github.com/google/uuid"
)

// Class is owned by an organization and may be linked to any number of that
// organization's schools.
type Class struct {
	ID             uuid.UUID   `json:"id"`
	OrganizationID uuid.UUID   `json:"organization_id"`
	Name           string      `json:"name"`
	Status         string      `json:"status"`
	SchoolIDs      []uuid.UUID `json:"school_ids"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Roster holds the teacher and student user ids of a class.
type Roster struct {
	TeacherIDs []uuid.UUID `json:"teacher_ids"`
	StudentIDs []uuid.UUID `json:"student_ids"`
}

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)
