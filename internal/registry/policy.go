package registry

import (
	"github.com/google/uuid"

	"lostfound/internal/models"
)

// Actor identifies the user performing an operation.
type Actor struct {
	ID   uuid.UUID
	Role models.Role
}

// IsStaff reports whether the actor holds the staff role.
func (a Actor) IsStaff() bool {
	return a.Role == models.RoleStaff
}

// SubmissionPolicy holds the upload rules that changed between revisions
// of the registry.
type SubmissionPolicy struct {
	RequireDescription bool
	RequireImage       bool

	// MembersSetStatus lets non-staff uploaders pick a status from
	// StatusChoices. When false their status input is ignored and the
	// default applies.
	MembersSetStatus bool
}

// DefaultPolicy is the stock upload form: description and photo
// optional, members may say whether they already surrendered the item.
var DefaultPolicy = SubmissionPolicy{MembersSetStatus: true}

// StatusChoices returns the statuses a user with role may assign on upload.
func StatusChoices(role models.Role, p SubmissionPolicy) []models.ItemStatus {
	if role == models.RoleStaff {
		return models.AllStatuses
	}
	if !p.MembersSetStatus {
		return nil
	}
	return []models.ItemStatus{models.StatusNotAtRepository, models.StatusAtRepository}
}

func statusAllowed(s models.ItemStatus, choices []models.ItemStatus) bool {
	for _, c := range choices {
		if c == s {
			return true
		}
	}
	return false
}
