// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"lostfound/internal/models"
	"lostfound/internal/registry"
)

func TestBuildTree(t *testing.T) {
	root := models.Category{ID: uuid.New(), Name: "Bags"}
	child := models.Category{ID: uuid.New(), Name: "Backpacks", ParentID: &root.ID}
	other := models.Category{ID: uuid.New(), Name: "Keys"}

	tree := buildTree([]models.Category{child, root, other}, nil, 0)
	if len(tree) != 2 {
		t.Fatalf("roots = %d, want 2", len(tree))
	}
	if len(tree[0].Children) != 1 || tree[0].Children[0].Depth != 1 {
		t.Errorf("child not nested under root: %+v", tree[0])
	}

	var flat []models.Category
	flattenTree(tree, &flat)
	if len(flat) != 3 || flat[1].ID != child.ID {
		t.Errorf("flat order wrong: %v", flat)
	}
}

func TestCategoryStoreGetOrCreateIgnoresCase(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	s := NewCategoryStore(db)
	c := testCategory(t, db, "Wallets")

	got, err := s.GetOrCreate(ctx, strings.ToUpper(c.Name))
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if got.ID != c.ID {
		t.Errorf("GetOrCreate created a duplicate: %s vs %s", got.ID, c.ID)
	}
}

func TestCategoryStoreDeleteRestrictsParents(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	s := NewCategoryStore(db)
	parent := testCategory(t, db, "Parent")

	child, err := s.Create(ctx, &models.Category{Name: "Child " + uuid.NewString()[:8], ParentID: &parent.ID})
	if err != nil {
		t.Fatalf("Create child: %v", err)
	}
	t.Cleanup(func() { db.Exec("DELETE FROM categories WHERE id = $1", child.ID) })

	n, err := s.CountChildren(ctx, parent.ID)
	if err != nil || n != 1 {
		t.Fatalf("CountChildren = %d, %v", n, err)
	}
	if err := s.Delete(ctx, parent.ID); err == nil {
		t.Error("expected foreign key error deleting a parent")
	}
}

func TestPendingCategoryStoreGetOrCreate(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	s := NewPendingCategoryStore(db)
	name := "Umbrellas " + uuid.NewString()[:8]
	t.Cleanup(func() { cleanPending(t, db, name) })

	first, err := s.GetOrCreate(ctx, name)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	second, err := s.GetOrCreate(ctx, strings.ToLower(name))
	if err != nil {
		t.Fatalf("GetOrCreate lower: %v", err)
	}
	if first.ID != second.ID || second.Name != name {
		t.Errorf("expected one pending row named %q, got %+v and %+v", name, first, second)
	}
}

func TestTransactorRollsBack(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	errSentinel := errors.New("abort")
	name := "Rollback " + uuid.NewString()[:8]
	t.Cleanup(func() { cleanPending(t, db, name) })

	tx := NewTransactor(db)
	err := tx.InTx(ctx, func(r registry.Repos) error {
		if _, err := r.Pending.GetOrCreate(ctx, name); err != nil {
			return err
		}
		return errSentinel
	})
	if !errors.Is(err, errSentinel) {
		t.Fatalf("InTx error = %v, want sentinel", err)
	}

	var n int
	db.QueryRow("SELECT COUNT(*) FROM pending_categories WHERE name = $1", name).Scan(&n)
	if n != 0 {
		t.Error("pending category survived rollback")
	}
}
