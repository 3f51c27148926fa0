// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// ItemStatus is the lifecycle stage of a found item.
type ItemStatus string

const (
	StatusNotAtRepository ItemStatus = "not_at_repository"
	StatusAtRepository    ItemStatus = "at_repository"
	StatusRetrieved       ItemStatus = "retrieved"
)

// DefaultStatus is applied when a submission does not choose a status.
const DefaultStatus = StatusNotAtRepository

// AllStatuses lists every status in display order.
var AllStatuses = []ItemStatus{StatusNotAtRepository, StatusAtRepository, StatusRetrieved}

// Valid reports whether s is one of the known statuses.
func (s ItemStatus) Valid() bool {
	switch s {
	case StatusNotAtRepository, StatusAtRepository, StatusRetrieved:
		return true
	}
	return false
}

// Label returns the human-readable status name.
func (s ItemStatus) Label() string {
	switch s {
	case StatusNotAtRepository:
		return "Not at Repository"
	case StatusAtRepository:
		return "At Repository"
	case StatusRetrieved:
		return "Retrieved"
	default:
		return string(s)
	}
}

// Item is a found item uploaded to the registry. Exactly one of CategoryID
// and PendingCategoryName is set while the item is live.
type Item struct {
	ID                  uuid.UUID  `json:"id"`
	Name                string     `json:"name"`
	CategoryID          *uuid.UUID `json:"category_id,omitempty"`
	PendingCategoryName *string    `json:"pending_category_name,omitempty"`
	Description         string     `json:"description"`
	ImageKey            *string    `json:"image_key,omitempty"`
	ThumbKey            *string    `json:"thumb_key,omitempty"`
	FoundLocation       string     `json:"found_location"`
	FoundDate           time.Time  `json:"found_date"`
	PubDate             time.Time  `json:"pub_date"`
	UploadedBy          *uuid.UUID `json:"uploaded_by,omitempty"`
	Status              ItemStatus `json:"status"`
	RetrievedBy         *uuid.UUID `json:"retrieved_by,omitempty"`

	// Virtual fields populated by store methods.
	CategoryName string `json:"category_name,omitempty"`
	UploaderName string `json:"uploader_name,omitempty"`
	HeldByViewer bool   `json:"held_by_viewer"`
	HolderCount  int    `json:"holder_count"`
}

// IsRetrieved returns true once the owner has claimed the item.
func (i *Item) IsRetrieved() bool {
	return i.Status == StatusRetrieved
}

// IsUploadedBy reports whether userID created the item.
func (i *Item) IsUploadedBy(userID uuid.UUID) bool {
	return i.UploadedBy != nil && *i.UploadedBy == userID
}

// CanBeDeletedBy reports whether userID may delete the item: only the
// uploader, and only while the item has not been retrieved.
func (i *Item) CanBeDeletedBy(userID uuid.UUID) bool {
	return i.IsUploadedBy(userID) && !i.IsRetrieved()
}

// DisplayCategory returns the approved category name, or the pending name
// when the category is still awaiting approval.
func (i *Item) DisplayCategory() string {
	if i.CategoryName != "" {
		return i.CategoryName
	}
	if i.PendingCategoryName != nil {
		return *i.PendingCategoryName
	}
	return ""
}

// IsCategoryPending reports whether the item's category is unapproved.
func (i *Item) IsCategoryPending() bool {
	return i.CategoryID == nil && i.PendingCategoryName != nil
}

// WasPublishedRecently returns true if the item was uploaded within the
// day before now.
func (i *Item) WasPublishedRecently(now time.Time) bool {
	return !i.PubDate.Before(now.Add(-24*time.Hour)) && !i.PubDate.After(now)
}
