// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"time"

	"lostfound/internal/imaging"
	"lostfound/internal/middleware"
	"lostfound/internal/models"
	"lostfound/internal/registry"
	"lostfound/internal/render"
)

// surrenderMessage is flashed after a successful upload.
const surrenderMessage = "Thank you for your honesty. Please proceed to the Liceo Prefect Office to surrender the item."

// Items groups the handlers for logged-in members: uploading, watching,
// deleting and the profile page.
type Items struct {
	renderer *render.Renderer
	svc      *registry.Service
	sessions Sessions
	cache    ListCache
	now      func() time.Time
}

// NewItems creates a new Items handler group. cache may be nil.
func NewItems(renderer *render.Renderer, svc *registry.Service, sessions Sessions, cache ListCache) *Items {
	return &Items{
		renderer: renderer,
		svc:      svc,
		sessions: sessions,
		cache:    cache,
		now:      time.Now,
	}
}

// UploadPage renders the empty upload form.
func (h *Items) UploadPage(w http.ResponseWriter, r *http.Request) {
	h.renderUpload(w, r, &registry.SubmitInput{}, nil)
}

func (h *Items) renderUpload(w http.ResponseWriter, r *http.Request, in *registry.SubmitInput, errs map[string]string) {
	ctx := r.Context()
	sess := middleware.SessionFromCtx(ctx)

	cats, err := h.svc.Categories(ctx)
	if err != nil {
		slog.Error("list categories failed", "error", err)
		errorPage(h.renderer, w, r, http.StatusInternalServerError, "Could not load the upload form.")
		return
	}

	h.renderer.Page(w, r, "upload", &render.PageData{
		Title:   "Report a Found Item",
		Section: "upload",
		Data: map[string]any{
			"Input":         in,
			"Errors":        errs,
			"Categories":    cats,
			"Policy":        h.svc.Policy(),
			"StatusChoices": registry.StatusChoices(models.Role(sess.Role), h.svc.Policy()),
			"Today":         h.now().Format("2006-01-02"),
		},
	})
}

// UploadSubmit validates and stores a found item. On success the uploader
// is told where to surrender the item and sent back to the list.
func (h *Items) UploadSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := middleware.SessionFromCtx(ctx)

	// Allow the photo plus some room for the text fields.
	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(imaging.MaxUploadSize); err != nil {
		msg := "The upload could not be read. Please try again."
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			msg = "The photo is too large (max 10 MB)."
		}
		h.renderUpload(w, r, &registry.SubmitInput{}, map[string]string{"image": msg})
		return
	}

	in := &registry.SubmitInput{}
	decodeForm(r, in)

	file, header, err := r.FormFile("image")
	switch {
	case err == nil:
		data, readErr := io.ReadAll(file)
		file.Close()
		if readErr != nil {
			slog.Error("read upload failed", "error", readErr)
			h.renderUpload(w, r, in, map[string]string{"image": "The photo could not be read. Please try again."})
			return
		}
		in.Image = &registry.ImageUpload{Filename: header.Filename, Data: data}
	case !errors.Is(err, http.ErrMissingFile):
		slog.Warn("upload form file error", "error", err)
	}

	item, err := h.svc.Submit(ctx, *in, actorFrom(sess))
	if fields := registry.FieldsOf(err); fields != nil {
		in.Image = nil
		h.renderUpload(w, r, in, fields)
		return
	}
	if err != nil {
		slog.Error("submit item failed", "error", err)
		errorPage(h.renderer, w, r, http.StatusInternalServerError, "Your item could not be saved. Please try again.")
		return
	}

	invalidate(ctx, h.cache)
	if err := h.sessions.AddFlash(ctx, r, sess, surrenderMessage); err != nil {
		slog.Warn("add flash failed", "error", err, "item_id", item.ID)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ToggleWatch flips whether the current user holds an item.
func (h *Items) ToggleWatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := middleware.SessionFromCtx(ctx)

	id, ok := urlID(r, "id")
	if !ok {
		jsonError(w, http.StatusNotFound, "Item not found.")
		return
	}

	watched, err := h.svc.ToggleHold(ctx, id, sess.UserID)
	if errors.Is(err, registry.ErrNotFound) {
		jsonError(w, http.StatusNotFound, "Item not found.")
		return
	}
	if err != nil {
		slog.Error("toggle hold failed", "error", err, "item_id", id)
		jsonError(w, http.StatusInternalServerError, "Could not update the item.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "watched": watched})
}

// Delete removes an item the current user uploaded, unless it has been
// retrieved.
func (h *Items) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := middleware.SessionFromCtx(ctx)

	id, ok := urlID(r, "id")
	if !ok {
		jsonError(w, http.StatusNotFound, "Item not found.")
		return
	}

	err := h.svc.DeleteItem(ctx, id, actorFrom(sess))
	switch {
	case err == nil:
		invalidate(ctx, h.cache)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, registry.ErrNotFound):
		jsonError(w, http.StatusNotFound, "Item not found.")
	case errors.Is(err, registry.ErrForbidden):
		jsonError(w, http.StatusForbidden, "You do not have permission to delete this item.")
	default:
		slog.Error("delete item failed", "error", err, "item_id", id)
		jsonError(w, http.StatusInternalServerError, "Could not delete the item.")
	}
}

// Profile lists the items the current user uploaded and watches.
func (h *Items) Profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := middleware.SessionFromCtx(ctx)

	uploaded, held, err := h.svc.Profile(ctx, sess.UserID)
	if err != nil {
		slog.Error("load profile failed", "error", err, "user_id", sess.UserID)
		errorPage(h.renderer, w, r, http.StatusInternalServerError, "Could not load your profile.")
		return
	}

	now := h.now()
	data := map[string]any{}
	for key, items := range map[string][]models.Item{"UploadedHTML": uploaded, "HeldHTML": held} {
		out, err := h.renderer.Fragment(render.ItemListTemplate, render.ListData{
			Items: items, View: "list", Viewer: sess, Now: now,
		})
		if err != nil {
			slog.Error("render profile list failed", "error", err)
			errorPage(h.renderer, w, r, http.StatusInternalServerError, "Could not load your profile.")
			return
		}
		data[key] = template.HTML(out)
	}

	h.renderer.Page(w, r, "profile", &render.PageData{
		Title:   "My Profile",
		Section: "profile",
		Data:    data,
	})
}

// MyUploads is a shortcut to the profile page.
func (h *Items) MyUploads(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/profile", http.StatusFound)
}
