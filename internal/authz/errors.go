package authz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrUnauthenticated indicates that no principal accompanied the request.
var ErrUnauthenticated = errors.New("authz: unauthenticated")

// PermissionDeniedError is returned when an explicit point check fails. It
// carries the denied permission and the evaluated context for auditing.
// Storage failures are never converted into this error: a failed membership
// read propagates as-is so an outage cannot masquerade as a denial.
type PermissionDeniedError struct {
	Permission Permission
	Context    Context
}

func (e *PermissionDeniedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "authz: permission %q denied", e.Permission)
	if e.Context.OrganizationID != nil {
		fmt.Fprintf(&b, " in organization %s", e.Context.OrganizationID)
	}
	if len(e.Context.SchoolIDs) > 0 {
		fmt.Fprintf(&b, " for schools %s", joinIDs(e.Context.SchoolIDs))
	}
	return b.String()
}

// IsPermissionDenied reports whether err is a permission denial.
func IsPermissionDenied(err error) bool {
	var pd *PermissionDeniedError
	return errors.As(err, &pd)
}

func joinIDs(ids []uuid.UUID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ",")
}
