// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"lostfound/internal/middleware"
	"lostfound/internal/models"
	"lostfound/internal/registry"
	"lostfound/internal/render"
	"lostfound/internal/session"
)

// Public groups the handlers anyone can reach: the filtered item list,
// its JSON variant, item images and the informational pages.
type Public struct {
	renderer *render.Renderer
	svc      *registry.Service
	cache    ListCache
	media    MediaResolver
	now      func() time.Time
}

// NewPublic creates a new Public handler group. cache and media may be nil.
func NewPublic(renderer *render.Renderer, svc *registry.Service, cache ListCache, media MediaResolver) *Public {
	return &Public{
		renderer: renderer,
		svc:      svc,
		cache:    cache,
		media:    media,
		now:      time.Now,
	}
}

// listing is a rendered item list together with the echoed filter form.
type listing struct {
	HTML   template.HTML
	Form   registry.FilterForm
	Errors registry.FieldErrors
}

// list renders the item list for the query in values. Anonymous requests
// with a clean query are served from and stored to the list cache; the
// fragment for a logged-in viewer carries per-user state and is never
// cached.
func (p *Public) list(ctx context.Context, values url.Values, viewer *session.Data) (*listing, error) {
	_, form, fe := registry.ParseQuery(values)
	cacheable := p.cache != nil && viewer == nil && len(fe) == 0
	key := form.Encode()

	if cacheable {
		if html, ok := p.cache.Get(ctx, key); ok {
			return &listing{HTML: template.HTML(html), Form: form, Errors: fe}, nil
		}
	}

	res, err := p.svc.Browse(ctx, values, middleware.ViewerID(ctx))
	if err != nil {
		return nil, err
	}

	out, err := p.renderer.Fragment(render.ItemListTemplate, render.ListData{
		Items:  res.Items,
		View:   res.Form.View,
		Viewer: viewer,
		Now:    p.now(),
	})
	if err != nil {
		return nil, err
	}

	if cacheable && len(res.Errors) == 0 {
		p.cache.Set(ctx, key, out)
	}
	return &listing{HTML: template.HTML(out), Form: res.Form, Errors: res.Errors}, nil
}

// Index renders the home page: filter form plus the matching items.
func (p *Public) Index(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := middleware.SessionFromCtx(ctx)

	l, err := p.list(ctx, r.URL.Query(), sess)
	if err != nil {
		slog.Error("browse items failed", "error", err)
		errorPage(p.renderer, w, r, http.StatusInternalServerError, "Could not load items.")
		return
	}

	cats, err := p.svc.Categories(ctx)
	if err != nil {
		slog.Error("list categories failed", "error", err)
		errorPage(p.renderer, w, r, http.StatusInternalServerError, "Could not load items.")
		return
	}

	p.renderer.Page(w, r, "index", &render.PageData{
		Title:   "Lost and Found",
		Section: "home",
		Data: map[string]any{
			"Form":        l.Form,
			"Errors":      map[string]string(l.Errors),
			"Categories":  cats,
			"SortOptions": models.SortOptions,
			"ListHTML":    l.HTML,
		},
	})
}

// ItemsAPI returns the rendered item list as {"html": "..."} for the
// in-page filter form. Field errors are reported alongside.
func (p *Public) ItemsAPI(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l, err := p.list(ctx, r.URL.Query(), middleware.SessionFromCtx(ctx))
	if err != nil {
		slog.Error("items api failed", "error", err)
		jsonError(w, http.StatusInternalServerError, "Could not load items.")
		return
	}

	resp := map[string]any{"html": string(l.HTML)}
	if len(l.Errors) > 0 {
		resp["errors"] = map[string]string(l.Errors)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Image redirects to the full-size photo of an item.
func (p *Public) Image(w http.ResponseWriter, r *http.Request) {
	p.serveMedia(w, r, func(item *models.Item) *string { return item.ImageKey })
}

// Thumb redirects to the thumbnail of an item.
func (p *Public) Thumb(w http.ResponseWriter, r *http.Request) {
	p.serveMedia(w, r, func(item *models.Item) *string { return item.ThumbKey })
}

func (p *Public) serveMedia(w http.ResponseWriter, r *http.Request, keyOf func(*models.Item) *string) {
	id, ok := urlID(r, "id")
	if !ok || p.media == nil {
		http.NotFound(w, r)
		return
	}

	item, err := p.svc.Item(r.Context(), id)
	if errors.Is(err, registry.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.Error("item lookup failed", "error", err, "id", id)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	key := keyOf(item)
	if key == nil || *key == "" {
		http.NotFound(w, r)
		return
	}

	target, err := p.media.Resolve(r.Context(), *key)
	if err != nil {
		slog.Error("resolve media failed", "error", err, "key", *key)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// Info returns a handler for one of the static informational pages.
func (p *Public) Info(name, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p.renderer.Page(w, r, name, &render.PageData{
			Title:   title,
			Section: name,
			Data:    map[string]any{"Domain": p.svc.EmailDomain()},
		})
	}
}

// NotFound renders the 404 page for unmatched routes.
func (p *Public) NotFound(w http.ResponseWriter, r *http.Request) {
	errorPage(p.renderer, w, r, http.StatusNotFound, "The page you are looking for does not exist.")
}
