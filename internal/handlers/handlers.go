// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers contains the HTTP handlers of the lost-and-found site,
// grouped by audience: public browsing, member item actions, account
// flows and staff moderation.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"lostfound/internal/models"
	"lostfound/internal/registry"
	"lostfound/internal/render"
	"lostfound/internal/session"
)

// Sessions is the part of the session store the handlers write to.
type Sessions interface {
	Create(ctx context.Context, w http.ResponseWriter, data *session.Data) (string, error)
	Update(ctx context.Context, r *http.Request, data *session.Data) error
	AddFlash(ctx context.Context, r *http.Request, data *session.Data, msg string) error
	Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// ListCache holds rendered item lists for anonymous visitors, keyed by
// the canonical filter query.
type ListCache interface {
	Get(ctx context.Context, query string) ([]byte, bool)
	Set(ctx context.Context, query string, html []byte)
	InvalidateAll(ctx context.Context)
}

// MediaResolver turns a stored object key into a URL the browser can load.
type MediaResolver interface {
	Resolve(ctx context.Context, key string) (string, error)
}

// writeJSON encodes data as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("json encode failed", "error", err)
	}
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"status": "error", "message": msg})
}

// actorFrom builds the registry actor for a logged-in session.
func actorFrom(sess *session.Data) registry.Actor {
	return registry.Actor{ID: sess.UserID, Role: models.Role(sess.Role)}
}

// urlID parses a UUID path parameter.
func urlID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

// errorPage renders the shared error template.
func errorPage(rn *render.Renderer, w http.ResponseWriter, r *http.Request, status int, msg string) {
	rn.Page(w, r, "error", &render.PageData{
		Title:  http.StatusText(status),
		Status: status,
		Data:   map[string]any{"Message": msg},
	})
}

// statusFor maps registry errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, registry.ErrConflict):
		return http.StatusConflict
	case registry.IsValidation(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// decodeForm copies form values into the string fields of dst (a struct
// pointer) using their `form` tags. Fields tagged "-" are skipped.
func decodeForm(r *http.Request, dst any) {
	v := reflect.ValueOf(dst).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Tag.Get("form")
		if name == "" || name == "-" || f.Type.Kind() != reflect.String {
			continue
		}
		v.Field(i).SetString(r.FormValue(name))
	}
}

// invalidate drops cached item lists after a write. cache may be nil.
func invalidate(ctx context.Context, cache ListCache) {
	if cache != nil {
		cache.InvalidateAll(ctx)
	}
}
