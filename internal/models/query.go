package models

import (
	"time"

	"github.com/google/uuid"
)

// SortKey selects the secondary ordering of an item listing. A leading
// "-" means descending.
type SortKey string

const (
	SortFoundDateDesc SortKey = "-found_date"
	SortFoundDateAsc  SortKey = "found_date"
	SortPubDateDesc   SortKey = "-pub_date"
	SortPubDateAsc    SortKey = "pub_date"
	SortNameAsc       SortKey = "name"
	SortNameDesc      SortKey = "-name"
	SortStatusAsc     SortKey = "status"
	SortStatusDesc    SortKey = "-status"
)

// DefaultSort is used when a listing does not request an ordering.
const DefaultSort = SortFoundDateDesc

// SortOption pairs a sort key with its form label.
type SortOption struct {
	Key   SortKey
	Label string
}

// SortOptions lists the recognized sort keys in form order.
var SortOptions = []SortOption{
	{SortFoundDateDesc, "Date Found (Newest First)"},
	{SortFoundDateAsc, "Date Found (Oldest First)"},
	{SortPubDateDesc, "Date Published (Newest First)"},
	{SortPubDateAsc, "Date Published (Oldest First)"},
	{SortNameAsc, "Name (A-Z)"},
	{SortNameDesc, "Name (Z-A)"},
	{SortStatusAsc, "Status (Not at Repository first)"},
	{SortStatusDesc, "Status (Retrieved first)"},
}

// Valid reports whether k is a recognized sort key.
func (k SortKey) Valid() bool {
	for _, o := range SortOptions {
		if o.Key == k {
			return true
		}
	}
	return false
}

// Descending reports whether the key sorts in reverse order.
func (k SortKey) Descending() bool {
	return len(k) > 0 && k[0] == '-'
}

// Field returns the key without its direction prefix.
func (k SortKey) Field() string {
	if k.Descending() {
		return string(k[1:])
	}
	return string(k)
}

// ItemQuery is a validated item listing request.
type ItemQuery struct {
	Text             string
	CategoryIDs      []uuid.UUID
	FoundDate        *time.Time
	Sort             SortKey
	IncludeRetrieved bool

	// ViewerID, when set, marks the items the viewer holds.
	ViewerID *uuid.UUID
	// HeldFirst orders the viewer's held items before all others.
	HeldFirst bool
}
