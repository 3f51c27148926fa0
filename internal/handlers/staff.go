// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"lostfound/internal/middleware"
	"lostfound/internal/registry"
	"lostfound/internal/render"
)

// Staff groups the moderation handlers: pending category review, the
// category taxonomy and item status changes.
type Staff struct {
	renderer *render.Renderer
	svc      *registry.Service
	sessions Sessions
	cache    ListCache
}

// NewStaff creates a new Staff handler group. cache may be nil.
func NewStaff(renderer *render.Renderer, svc *registry.Service, sessions Sessions, cache ListCache) *Staff {
	return &Staff{
		renderer: renderer,
		svc:      svc,
		sessions: sessions,
		cache:    cache,
	}
}

// flash queues a message for the next page and logs when that fails.
func (h *Staff) flash(r *http.Request, msg string) {
	sess := middleware.SessionFromCtx(r.Context())
	if err := h.sessions.AddFlash(r.Context(), r, sess, msg); err != nil {
		slog.Warn("add flash failed", "error", err)
	}
}

// PendingPage lists the pending category names with their item counts.
func (h *Staff) PendingPage(w http.ResponseWriter, r *http.Request) {
	h.renderPending(w, r, nil)
}

func (h *Staff) renderPending(w http.ResponseWriter, r *http.Request, errs []string) {
	pending, err := h.svc.PendingCategories(r.Context())
	if err != nil {
		slog.Error("list pending categories failed", "error", err)
		errorPage(h.renderer, w, r, http.StatusInternalServerError, "Could not load pending categories.")
		return
	}

	h.renderer.Page(w, r, "staff_pending", &render.PageData{
		Title:   "Pending Categories",
		Section: "staff",
		Data: map[string]any{
			"Pending": pending,
			"Errors":  errs,
		},
	})
}

// ApprovePending promotes every selected pending category. Each one is
// approved on its own; failures are reported without undoing the rest.
func (h *Staff) ApprovePending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := middleware.SessionFromCtx(ctx)

	if err := r.ParseForm(); err != nil {
		h.renderPending(w, r, []string{"The form could not be read."})
		return
	}

	var ids []uuid.UUID
	for _, raw := range r.PostForm["ids"] {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.renderPending(w, r, []string{fmt.Sprintf("%q is not a valid selection.", raw)})
			return
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		h.renderPending(w, r, []string{"Select at least one pending category to approve."})
		return
	}

	results, err := h.svc.ApprovePendingBatch(ctx, ids, actorFrom(sess))
	if err != nil {
		slog.Error("approve pending failed", "error", err)
		errorPage(h.renderer, w, r, statusFor(err), "The selected categories could not be approved.")
		return
	}

	var approved int
	for _, res := range results {
		switch {
		case res.Err == nil:
			approved++
			h.flash(r, fmt.Sprintf("Approved %q; %d items moved.", res.Name, res.Moved))
		case errors.Is(res.Err, registry.ErrNotFound):
			h.flash(r, "A selected category was already handled by someone else.")
		default:
			slog.Error("approve pending category failed", "error", res.Err, "pending_id", res.PendingID)
			h.flash(r, "A selected category could not be approved.")
		}
	}
	if approved > 0 {
		invalidate(ctx, h.cache)
	}
	http.Redirect(w, r, "/staff/pending", http.StatusSeeOther)
}

// RejectPending discards one pending category.
func (h *Staff) RejectPending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := middleware.SessionFromCtx(ctx)

	id, ok := urlID(r, "id")
	if !ok {
		errorPage(h.renderer, w, r, http.StatusNotFound, "Pending category not found.")
		return
	}

	err := h.svc.RejectPending(ctx, id, actorFrom(sess))
	switch {
	case err == nil:
		invalidate(ctx, h.cache)
		h.flash(r, "Pending category rejected.")
	case errors.Is(err, registry.ErrNotFound):
		h.flash(r, "That category was already handled by someone else.")
	default:
		slog.Error("reject pending failed", "error", err, "pending_id", id)
		errorPage(h.renderer, w, r, statusFor(err), "The category could not be rejected.")
		return
	}
	http.Redirect(w, r, "/staff/pending", http.StatusSeeOther)
}

// CategoriesPage lists the approved taxonomy with the create form.
func (h *Staff) CategoriesPage(w http.ResponseWriter, r *http.Request) {
	h.renderCategories(w, r, &registry.CategoryInput{}, nil)
}

func (h *Staff) renderCategories(w http.ResponseWriter, r *http.Request, in *registry.CategoryInput, errs map[string]string) {
	cats, err := h.svc.Categories(r.Context())
	if err != nil {
		slog.Error("list categories failed", "error", err)
		errorPage(h.renderer, w, r, http.StatusInternalServerError, "Could not load categories.")
		return
	}

	h.renderer.Page(w, r, "staff_categories", &render.PageData{
		Title:   "Categories",
		Section: "staff",
		Data: map[string]any{
			"Categories": cats,
			"Input":      in,
			"Errors":     errs,
		},
	})
}

// CreateCategory adds an approved category.
func (h *Staff) CreateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := middleware.SessionFromCtx(ctx)

	in := &registry.CategoryInput{}
	decodeForm(r, in)

	c, err := h.svc.CreateCategory(ctx, *in, actorFrom(sess))
	if fields := registry.FieldsOf(err); fields != nil {
		h.renderCategories(w, r, in, fields)
		return
	}
	if err != nil {
		slog.Error("create category failed", "error", err)
		errorPage(h.renderer, w, r, statusFor(err), "The category could not be created.")
		return
	}

	invalidate(ctx, h.cache)
	h.flash(r, fmt.Sprintf("Category %q created.", c.Name))
	http.Redirect(w, r, "/staff/categories", http.StatusSeeOther)
}

// DeleteCategory removes an unused category.
func (h *Staff) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := middleware.SessionFromCtx(ctx)

	id, ok := urlID(r, "id")
	if !ok {
		errorPage(h.renderer, w, r, http.StatusNotFound, "Category not found.")
		return
	}

	err := h.svc.DeleteCategory(ctx, id, actorFrom(sess))
	switch {
	case err == nil:
		invalidate(ctx, h.cache)
		h.flash(r, "Category deleted.")
	case errors.Is(err, registry.ErrConflict):
		h.flash(r, "That category still has subcategories or items and cannot be deleted.")
	case errors.Is(err, registry.ErrNotFound):
		h.flash(r, "That category no longer exists.")
	default:
		slog.Error("delete category failed", "error", err, "category_id", id)
		errorPage(h.renderer, w, r, statusFor(err), "The category could not be deleted.")
		return
	}
	http.Redirect(w, r, "/staff/categories", http.StatusSeeOther)
}

// SetItemStatus changes an item's status from the list view.
func (h *Staff) SetItemStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := middleware.SessionFromCtx(ctx)

	id, ok := urlID(r, "id")
	if !ok {
		jsonError(w, http.StatusNotFound, "Item not found.")
		return
	}

	in := &registry.StatusInput{}
	decodeForm(r, in)

	err := h.svc.SetItemStatus(ctx, id, *in, actorFrom(sess))
	if fields := registry.FieldsOf(err); fields != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"status":  "error",
			"message": "The status could not be changed.",
			"errors":  fields,
		})
		return
	}
	switch {
	case err == nil:
		invalidate(ctx, h.cache)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "item_status": in.Status})
	case errors.Is(err, registry.ErrNotFound):
		jsonError(w, http.StatusNotFound, "Item not found.")
	case errors.Is(err, registry.ErrForbidden):
		jsonError(w, http.StatusForbidden, "Staff only.")
	default:
		slog.Error("set item status failed", "error", err, "item_id", id)
		jsonError(w, http.StatusInternalServerError, "Could not update the item.")
	}
}
