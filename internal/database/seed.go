package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// seedCategories is the starter taxonomy for a fresh install.
var seedCategories = []struct{ name, slug string }{
	{"Bags", "bags"},
	{"Electronics", "electronics"},
	{"IDs & Cards", "ids-cards"},
	{"Keys", "keys"},
	{"Clothing", "clothing"},
	{"Books & Notes", "books-notes"},
	{"Water Bottles", "water-bottles"},
}

// Seed populates the database with initial development data.
// It creates a default staff user and the starter categories if no users
// exist. The staff account must set up 2FA on first login.
func Seed(ctx context.Context, db *sql.DB) error {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return fmt.Errorf("seed check users: %w", err)
	}

	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("changeme123"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed bcrypt: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (username, email, password_hash, role, totp_enabled)
		VALUES ($1, $2, $3, 'staff', FALSE)
	`, "staff", "staff@usls.edu.ph", string(hash))
	if err != nil {
		return fmt.Errorf("seed insert staff: %w", err)
	}

	for _, c := range seedCategories {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO categories (name, slug) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, c.name, c.slug)
		if err != nil {
			return fmt.Errorf("seed category %s: %w", c.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed commit: %w", err)
	}

	slog.Info("database seeded with default staff user",
		"username", "staff",
		"password", "changeme123",
		"categories", len(seedCategories),
	)
	return nil
}
