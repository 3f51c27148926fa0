// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"lostfound/internal/models"
	"lostfound/internal/slug"
)

// CategoryStore manages approved categories in the database.
type CategoryStore struct {
	db DBTX
}

// NewCategoryStore returns a new CategoryStore.
func NewCategoryStore(db DBTX) *CategoryStore {
	return &CategoryStore{db: db}
}

const categoryColumns = `id, name, slug, parent_id, created_at, updated_at`

// scanCategory scans a row into a Category struct.
func scanCategory(row scanner) (*models.Category, error) {
	var c models.Category
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.ParentID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns all categories ordered by name, with item counts.
func (s *CategoryStore) List(ctx context.Context) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.slug, c.parent_id, c.created_at, c.updated_at,
		       (SELECT COUNT(*) FROM items i WHERE i.category_id = c.id) AS item_count
		FROM categories c
		ORDER BY lower(c.name), c.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var items []models.Category
	for rows.Next() {
		var c models.Category
		err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.ParentID, &c.CreatedAt, &c.UpdatedAt, &c.ItemCount)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// Tree returns categories as a nested tree structure.
func (s *CategoryStore) Tree(ctx context.Context) ([]models.Category, error) {
	flat, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return buildTree(flat, nil, 0), nil
}

// buildTree recursively builds a tree from a flat list.
func buildTree(flat []models.Category, parentID *uuid.UUID, depth int) []models.Category {
	var result []models.Category
	for _, c := range flat {
		if ptrEqual(c.ParentID, parentID) {
			c.Depth = depth
			c.Children = buildTree(flat, &c.ID, depth+1)
			result = append(result, c)
		}
	}
	return result
}

func ptrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// FlatTree returns categories depth-first with Depth set, for <select>
// options and the staff category table.
func (s *CategoryStore) FlatTree(ctx context.Context) ([]models.Category, error) {
	tree, err := s.Tree(ctx)
	if err != nil {
		return nil, err
	}
	var result []models.Category
	flattenTree(tree, &result)
	return result, nil
}

func flattenTree(cats []models.Category, result *[]models.Category) {
	for _, c := range cats {
		children := c.Children
		c.Children = nil
		*result = append(*result, c)
		flattenTree(children, result)
	}
}

func (s *CategoryStore) findOne(ctx context.Context, where string, arg any) (*models.Category, error) {
	c, err := scanCategory(s.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// FindByID retrieves a category by ID. Returns nil if not found.
func (s *CategoryStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	c, err := s.findOne(ctx, "id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("find category by id: %w", err)
	}
	return c, nil
}

// FindByName retrieves a category by name, ignoring case. Returns nil if
// not found.
func (s *CategoryStore) FindByName(ctx context.Context, name string) (*models.Category, error) {
	c, err := s.findOne(ctx, "lower(name) = lower($1)", name)
	if err != nil {
		return nil, fmt.Errorf("find category by name: %w", err)
	}
	return c, nil
}

// Create inserts a new category and returns it.
func (s *CategoryStore) Create(ctx context.Context, c *models.Category) (*models.Category, error) {
	if c.Slug == "" {
		c.Slug = slug.Generate(c.Name)
	}
	result, err := scanCategory(s.db.QueryRowContext(ctx, `
		INSERT INTO categories (name, slug, parent_id)
		VALUES ($1, $2, $3)
		RETURNING `+categoryColumns,
		c.Name, c.Slug, c.ParentID,
	))
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return result, nil
}

// GetOrCreate returns the category matching name case-insensitively,
// inserting it when absent. The unique index on lower(name) makes the
// insert a no-op when another transaction got there first.
func (s *CategoryStore) GetOrCreate(ctx context.Context, name string) (*models.Category, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (name, slug) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, name, slug.Generate(name))
	if err != nil {
		return nil, fmt.Errorf("insert category: %w", err)
	}
	c, err := s.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("category %q missing after insert", name)
	}
	return c, nil
}

// CountChildren returns the number of direct subcategories.
func (s *CategoryStore) CountChildren(ctx context.Context, id uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE parent_id = $1`, id).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count subcategories: %w", err)
	}
	return n, nil
}

// Delete removes a category by ID. Subcategories block the delete
// (ON DELETE RESTRICT); items referencing it are set to NULL.
func (s *CategoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

// PendingCategoryStore manages user-suggested category names.
type PendingCategoryStore struct {
	db DBTX
}

// NewPendingCategoryStore returns a new PendingCategoryStore.
func NewPendingCategoryStore(db DBTX) *PendingCategoryStore {
	return &PendingCategoryStore{db: db}
}

// List returns pending categories oldest first, with the number of items
// staged under each name.
func (s *PendingCategoryStore) List(ctx context.Context) ([]models.PendingCategory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.created_at,
		       (SELECT COUNT(*) FROM items i
		        WHERE lower(i.pending_category_name) = lower(p.name)) AS item_count
		FROM pending_categories p
		ORDER BY p.created_at, p.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list pending categories: %w", err)
	}
	defer rows.Close()

	var list []models.PendingCategory
	for rows.Next() {
		var p models.PendingCategory
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.ItemCount); err != nil {
			return nil, fmt.Errorf("scan pending category: %w", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func (s *PendingCategoryStore) findOne(ctx context.Context, query string, arg any) (*models.PendingCategory, error) {
	var p models.PendingCategory
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindByID retrieves a pending category. Returns nil if not found.
func (s *PendingCategoryStore) FindByID(ctx context.Context, id uuid.UUID) (*models.PendingCategory, error) {
	p, err := s.findOne(ctx, `SELECT id, name, created_at FROM pending_categories WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("find pending category: %w", err)
	}
	return p, nil
}

// LockByID is FindByID with a row lock held until the transaction ends.
// A second caller blocks here and sees nil once the first has deleted
// the row.
func (s *PendingCategoryStore) LockByID(ctx context.Context, id uuid.UUID) (*models.PendingCategory, error) {
	p, err := s.findOne(ctx, `SELECT id, name, created_at FROM pending_categories WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, fmt.Errorf("lock pending category: %w", err)
	}
	return p, nil
}

// GetOrCreate returns the pending category matching name case-insensitively,
// inserting it when absent.
func (s *PendingCategoryStore) GetOrCreate(ctx context.Context, name string) (*models.PendingCategory, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_categories (name) VALUES ($1)
		ON CONFLICT DO NOTHING
	`, name)
	if err != nil {
		return nil, fmt.Errorf("insert pending category: %w", err)
	}
	p, err := s.findOne(ctx, `SELECT id, name, created_at FROM pending_categories WHERE lower(name) = lower($1)`, name)
	if err != nil {
		return nil, fmt.Errorf("find pending category by name: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("pending category %q missing after insert", name)
	}
	return p, nil
}

// Delete removes a pending category.
func (s *PendingCategoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete pending category: %w", err)
	}
	return nil
}
