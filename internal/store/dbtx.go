// Package store provides PostgreSQL implementations of the registry
// repositories. Every store takes a DBTX so the same methods run against
// the connection pool or inside a transaction.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"lostfound/internal/registry"
)

// DBTX is the subset of *sql.DB and *sql.Tx the stores need.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewRepos binds every repository to db.
func NewRepos(db DBTX) registry.Repos {
	return registry.Repos{
		Items:      NewItemStore(db),
		Categories: NewCategoryStore(db),
		Pending:    NewPendingCategoryStore(db),
		Users:      NewUserStore(db),
	}
}

// Transactor runs registry work inside a database transaction.
type Transactor struct {
	db *sql.DB
}

// NewTransactor returns a Transactor over the pool.
func NewTransactor(db *sql.DB) *Transactor {
	return &Transactor{db: db}
}

// InTx begins a transaction, hands fn repositories bound to it and commits
// when fn succeeds. Any error rolls the transaction back.
func (t *Transactor) InTx(ctx context.Context, fn func(registry.Repos) error) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(NewRepos(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}
