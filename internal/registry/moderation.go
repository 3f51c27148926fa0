package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"lostfound/internal/metrics"
	"lostfound/internal/models"
	"lostfound/internal/slug"
)

// Approval is the outcome of promoting one pending category.
type Approval struct {
	PendingID uuid.UUID
	Name      string
	Category  *models.Category
	Moved     int64
	Err       error
}

// ApprovePending promotes a pending category into the approved taxonomy
// and moves every item staged under its name (matched case-insensitively)
// onto the approved category. The pending row is locked, the category is
// fetched or created, items are reassigned and the pending row is deleted
// in one transaction. A concurrent second promotion of the same row waits
// for the lock and then reports ErrNotFound.
func (s *Service) ApprovePending(ctx context.Context, pendingID uuid.UUID, actor Actor) (*Approval, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}

	res := &Approval{PendingID: pendingID}
	err := s.tx.InTx(ctx, func(r Repos) error {
		p, err := r.Pending.LockByID(ctx, pendingID)
		if err != nil {
			return fmt.Errorf("lock pending category: %w", err)
		}
		if p == nil {
			return ErrNotFound
		}
		res.Name = p.Name

		cat, err := r.Categories.GetOrCreate(ctx, p.Name)
		if err != nil {
			return fmt.Errorf("get or create category: %w", err)
		}
		res.Category = cat

		moved, err := r.Items.AssignPending(ctx, p.Name, cat.ID)
		if err != nil {
			return fmt.Errorf("reassign items: %w", err)
		}
		res.Moved = moved

		if err := r.Pending.Delete(ctx, p.ID); err != nil {
			return fmt.Errorf("delete pending category: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.CategoriesPromoted.Inc()
	slog.Info("pending category approved",
		"name", res.Name,
		"category_id", res.Category.ID,
		"items_moved", res.Moved,
	)
	s.logAudit(ctx, "category", res.Category.ID, "approve", &actor.ID,
		fmt.Sprintf("%s (%d items)", res.Name, res.Moved))
	return res, nil
}

// ApprovePendingBatch approves each selected pending category in its own
// transaction. One failure does not stop the rest; per-id errors are
// reported in the results.
func (s *Service) ApprovePendingBatch(ctx context.Context, ids []uuid.UUID, actor Actor) ([]Approval, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	results := make([]Approval, 0, len(ids))
	for _, id := range ids {
		res, err := s.ApprovePending(ctx, id, actor)
		if err != nil {
			results = append(results, Approval{PendingID: id, Err: err})
			continue
		}
		results = append(results, *res)
	}
	return results, nil
}

// RejectPending discards a pending category. Items staged under its name
// lose the pending name and stay uncategorized.
func (s *Service) RejectPending(ctx context.Context, pendingID uuid.UUID, actor Actor) error {
	if !actor.IsStaff() {
		return ErrForbidden
	}

	var name string
	var cleared int64
	err := s.tx.InTx(ctx, func(r Repos) error {
		p, err := r.Pending.LockByID(ctx, pendingID)
		if err != nil {
			return fmt.Errorf("lock pending category: %w", err)
		}
		if p == nil {
			return ErrNotFound
		}
		name = p.Name

		cleared, err = r.Items.ClearPending(ctx, p.Name)
		if err != nil {
			return fmt.Errorf("clear pending name: %w", err)
		}
		return r.Pending.Delete(ctx, p.ID)
	})
	if err != nil {
		return err
	}

	slog.Info("pending category rejected", "name", name, "items_cleared", cleared)
	s.logAudit(ctx, "pending_category", pendingID, "reject", &actor.ID, name)
	return nil
}

// CategoryInput holds the staff category form.
type CategoryInput struct {
	Name     string `form:"name" validate:"required,max=100"`
	ParentID string `form:"parent_id" validate:"omitempty,uuid"`
}

// CreateCategory adds an approved category, optionally under a parent.
func (s *Service) CreateCategory(ctx context.Context, in CategoryInput, actor Actor) (*models.Category, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	in.Name = strings.TrimSpace(in.Name)
	in.ParentID = strings.TrimSpace(in.ParentID)

	fe := s.validateStruct(&in)
	if err := fe.Err(); err != nil {
		return nil, err
	}

	var created *models.Category
	err := s.tx.InTx(ctx, func(r Repos) error {
		existing, err := r.Categories.FindByName(ctx, in.Name)
		if err != nil {
			return fmt.Errorf("find category: %w", err)
		}
		if existing != nil {
			fe.Add("name", "Category with this Name already exists.")
		}

		c := &models.Category{Name: in.Name, Slug: slug.Generate(in.Name)}
		if in.ParentID != "" {
			pid := uuid.MustParse(in.ParentID)
			parent, err := r.Categories.FindByID(ctx, pid)
			if err != nil {
				return fmt.Errorf("find parent category: %w", err)
			}
			if parent == nil {
				fe.Add("parent_id", "Select a valid choice. That choice is not one of the available choices.")
			}
			c.ParentID = &pid
		}
		if err := fe.Err(); err != nil {
			return err
		}

		created, err = r.Categories.Create(ctx, c)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "category", created.ID, "create", &actor.ID, created.Name)
	return created, nil
}

// DeleteCategory removes an approved category. Deletion is restricted:
// a category that still has subcategories or items returns ErrConflict.
func (s *Service) DeleteCategory(ctx context.Context, id uuid.UUID, actor Actor) error {
	if !actor.IsStaff() {
		return ErrForbidden
	}

	var name string
	err := s.tx.InTx(ctx, func(r Repos) error {
		c, err := r.Categories.FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("find category: %w", err)
		}
		if c == nil {
			return ErrNotFound
		}
		name = c.Name

		children, err := r.Categories.CountChildren(ctx, id)
		if err != nil {
			return fmt.Errorf("count subcategories: %w", err)
		}
		if children > 0 {
			return fmt.Errorf("category %q has %d subcategories: %w", c.Name, children, ErrConflict)
		}

		items, err := r.Items.CountByCategory(ctx, id)
		if err != nil {
			return fmt.Errorf("count items: %w", err)
		}
		if items > 0 {
			return fmt.Errorf("category %q is used by %d items: %w", c.Name, items, ErrConflict)
		}

		return r.Categories.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logAudit(ctx, "category", id, "delete", &actor.ID, name)
	return nil
}
