// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"lostfound/internal/models"
)

func TestUserStoreCreate(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)

	if user.ID == uuid.Nil {
		t.Error("expected non-nil UUID")
	}
	if user.Role != models.RoleMember {
		t.Errorf("role: got %q, want %q", user.Role, models.RoleMember)
	}
	if user.TOTPEnabled {
		t.Error("expected totp_enabled=false for new user")
	}
	if user.PasswordHash == "" || user.PasswordHash == "password123" {
		t.Error("password hash must be set and not plaintext")
	}
}

func TestUserStoreFind(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)
	ctx := context.Background()
	created := testUser(t, db)

	byName, err := s.FindByUsername(ctx, created.Username)
	if err != nil || byName == nil || byName.ID != created.ID {
		t.Fatalf("FindByUsername: got %v, %v", byName, err)
	}

	byEmail, err := s.FindByEmail(ctx, strings.ToUpper(created.Email))
	if err != nil || byEmail == nil || byEmail.ID != created.ID {
		t.Fatalf("FindByEmail (upper case): got %v, %v", byEmail, err)
	}

	missing, err := s.FindByID(ctx, uuid.New())
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for non-existent user")
	}
}

func TestUserStoreCheckPassword(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)
	user := testUser(t, db)

	if !s.CheckPassword(user, "password123") {
		t.Error("expected correct password to pass")
	}
	if s.CheckPassword(user, "wrong") {
		t.Error("expected wrong password to fail")
	}
}

func TestUserStoreTOTP(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)
	ctx := context.Background()
	user := testUser(t, db)

	if err := s.SetTOTPSecret(ctx, user.ID, "JBSWY3DPEHPK3PXP"); err != nil {
		t.Fatalf("SetTOTPSecret: %v", err)
	}
	if err := s.EnableTOTP(ctx, user.ID); err != nil {
		t.Fatalf("EnableTOTP: %v", err)
	}

	got, err := s.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.TOTPSecret == nil || *got.TOTPSecret != "JBSWY3DPEHPK3PXP" {
		t.Errorf("totp secret: got %v", got.TOTPSecret)
	}
	if !got.TOTPEnabled {
		t.Error("expected totp_enabled=true")
	}
}
