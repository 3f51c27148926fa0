// Package main is the lnfadmin command: maintenance and moderation tasks
// run against the same database as the web server.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"lostfound/internal/config"
	"lostfound/internal/database"
	"lostfound/internal/registry"
	"lostfound/internal/store"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	a := &app{out: os.Stdout, connect: connectDB, migrate: migrateDB}
	if err := newRootCmd(a).Execute(); err != nil {
		os.Exit(1)
	}
}

func openDB(ctx context.Context) (*config.Config, *sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Connect(ctx, cfg.DSN())
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func migrateDB(ctx context.Context) error {
	_, db, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	return database.Migrate(db)
}

// connectDB builds the registry service the server would build. Photos are
// never touched from the CLI, so no media store is configured.
func connectDB(ctx context.Context) (*backend, error) {
	cfg, db, err := openDB(ctx)
	if err != nil {
		return nil, err
	}
	audit := store.NewAuditStore(db)
	svc := registry.New(store.NewRepos(db), store.NewTransactor(db), registry.Options{
		Policy: registry.SubmissionPolicy{
			RequireDescription: cfg.RequireDescription,
			RequireImage:       cfg.RequireImage,
			MembersSetStatus:   cfg.MembersSetStatus,
		},
		EmailDomain: cfg.AllowedEmailDomain,
		Audit:       audit,
	})
	return &backend{
		svc:   svc,
		audit: audit,
		close: func() {
			if err := db.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "close database: %v\n", err)
			}
		},
	}, nil
}
