package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"lostfound/internal/metrics"
	"lostfound/internal/models"
)

// ToggleHold flips whether userID holds itemID and returns the new state.
// Toggling twice restores the original state.
func (s *Service) ToggleHold(ctx context.Context, itemID, userID uuid.UUID) (bool, error) {
	var held bool
	err := s.tx.InTx(ctx, func(r Repos) error {
		item, err := r.Items.FindByID(ctx, itemID)
		if err != nil {
			return fmt.Errorf("find item: %w", err)
		}
		if item == nil {
			return ErrNotFound
		}
		held, err = r.Items.ToggleHold(ctx, itemID, userID)
		return err
	})
	if err != nil {
		return false, err
	}

	state := "released"
	if held {
		state = "held"
	}
	metrics.HoldsToggled.WithLabelValues(state).Inc()
	return held, nil
}

// DeleteItem removes an item on behalf of actor. Only the uploader may
// delete, and only while the item is not retrieved; otherwise ErrForbidden
// is returned and nothing changes. The row stays locked from the check to
// the delete so a concurrent status change cannot slip in between. Stored images are removed after the
// row is gone.
func (s *Service) DeleteItem(ctx context.Context, itemID uuid.UUID, actor Actor) error {
	var item *models.Item
	err := s.tx.InTx(ctx, func(r Repos) error {
		var err error
		item, err = r.Items.LockByID(ctx, itemID)
		if err != nil {
			return fmt.Errorf("find item: %w", err)
		}
		if item == nil {
			return ErrNotFound
		}
		if !item.CanBeDeletedBy(actor.ID) {
			return ErrForbidden
		}
		return r.Items.Delete(ctx, itemID)
	})
	if err != nil {
		return err
	}

	var keys []string
	if item.ImageKey != nil {
		keys = append(keys, *item.ImageKey)
	}
	if item.ThumbKey != nil {
		keys = append(keys, *item.ThumbKey)
	}
	s.removeImages(ctx, keys...)

	metrics.ItemsDeleted.Inc()
	slog.Info("item deleted", "item_id", itemID, "user_id", actor.ID)
	s.logAudit(ctx, "item", itemID, "delete", &actor.ID, item.Name)
	return nil
}

// StatusInput holds the staff status form.
type StatusInput struct {
	Status      string `form:"status" validate:"required"`
	RetrievedBy string `form:"retrieved_by" validate:"omitempty,uuid"`
}

// SetItemStatus changes an item's lifecycle status. Only staff may call it.
// RetrievedBy is kept only for the retrieved status.
func (s *Service) SetItemStatus(ctx context.Context, itemID uuid.UUID, in StatusInput, actor Actor) error {
	if !actor.IsStaff() {
		return ErrForbidden
	}

	fe := s.validateStruct(&in)
	status := models.ItemStatus(in.Status)
	if _, bad := fe["status"]; !bad && !status.Valid() {
		fe.Add("status", fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", in.Status))
	}

	var retrievedBy *uuid.UUID
	if _, bad := fe["retrieved_by"]; !bad && in.RetrievedBy != "" && status == models.StatusRetrieved {
		id := uuid.MustParse(in.RetrievedBy)
		retrievedBy = &id
	}
	if err := fe.Err(); err != nil {
		return err
	}

	err := s.tx.InTx(ctx, func(r Repos) error {
		item, err := r.Items.LockByID(ctx, itemID)
		if err != nil {
			return fmt.Errorf("lock item: %w", err)
		}
		if item == nil {
			return ErrNotFound
		}
		if retrievedBy != nil {
			u, err := r.Users.FindByID(ctx, *retrievedBy)
			if err != nil {
				return fmt.Errorf("find user: %w", err)
			}
			if u == nil {
				return (FieldErrors{"retrieved_by": "Select a valid choice. That choice is not one of the available choices."}).Err()
			}
		}
		return r.Items.SetStatus(ctx, itemID, status, retrievedBy)
	})
	if err != nil {
		return err
	}

	s.logAudit(ctx, "item", itemID, "status", &actor.ID, string(status))
	return nil
}
