package registry

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when a referenced item, category or pending
	// category does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the acting user may not perform the
	// operation. No state is changed.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict is returned when an operation would break a referential
	// rule, such as deleting a category that is still in use.
	ErrConflict = errors.New("conflict")

	// ErrInvalidCredentials is returned by Authenticate for an unknown
	// username or a wrong password.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// ValidationError carries field-level messages for a rejected submission.
// Keys are form field names.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// FieldErrors is a set of field-level messages keyed by form field name.
type FieldErrors map[string]string

// Add records msg for field unless the field already has a message.
func (fe FieldErrors) Add(field, msg string) {
	if _, ok := fe[field]; !ok {
		fe[field] = msg
	}
}

// Err returns a *ValidationError when any field failed, nil otherwise.
func (fe FieldErrors) Err() error {
	if len(fe) == 0 {
		return nil
	}
	return &ValidationError{Fields: fe}
}

// FieldsOf extracts the field messages from a validation error, or nil
// when err is not one.
func FieldsOf(err error) map[string]string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}
