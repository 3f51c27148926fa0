package database

import (
	"context"
	"testing"
)

func TestSeedIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := Connect(ctx, testDSN())
	if err != nil {
		t.Skipf("skipping: DB not available: %v", err)
	}
	defer db.Close()

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	// Seed only writes into an empty users table, so running it twice must
	// be safe even when other packages share the database.
	if err := Seed(ctx, db); err != nil {
		t.Fatalf("first Seed: %v", err)
	}
	if err := Seed(ctx, db); err != nil {
		t.Fatalf("second Seed: %v", err)
	}

	var staffCount int
	if err := db.QueryRow("SELECT COUNT(*) FROM users WHERE role = 'staff'").Scan(&staffCount); err != nil {
		t.Fatalf("count staff users: %v", err)
	}
	if staffCount < 1 {
		t.Errorf("expected at least 1 staff user, got %d", staffCount)
	}
}
