// Package models defines the data structures that map to database tables
// and provides the core types used throughout the application.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a user's permission level in the system.
type Role string

const (
	RoleMember Role = "member"
	RoleStaff  Role = "staff"
)

// User represents a registry account. Members upload and watch items;
// staff additionally moderate categories and item status.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never serialize the hash
	Role         Role      `json:"role"`
	TOTPSecret   *string   `json:"-"` // Nullable; set during 2FA setup
	TOTPEnabled  bool      `json:"totp_enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsStaff returns true if the user has the staff role.
func (u *User) IsStaff() bool {
	return u.Role == RoleStaff
}

// Needs2FASetup returns true if the user has not completed 2FA enrollment.
// Only staff accounts are required to enroll.
func (u *User) Needs2FASetup() bool {
	return u.IsStaff() && !u.TOTPEnabled
}
