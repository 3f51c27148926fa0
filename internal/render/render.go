// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package render provides HTML template rendering for the site. Pages are
// rendered inside the base layout; the item list is also available as a
// bare fragment for the JSON listing endpoint and the list cache.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"lostfound/internal/markdown"
	"lostfound/internal/middleware"
	"lostfound/internal/models"
	"lostfound/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// ItemListTemplate is the name of the item list fragment.
const ItemListTemplate = "item_list"

// PageData holds all data passed to page templates.
type PageData struct {
	Title     string         // Page title for <title> tag
	Section   string         // Active nav section (e.g., "home", "upload")
	Status    int            // Response status; 0 means 200
	Session   *session.Data  // Current user session (nil if anonymous)
	CSRFToken string         // CSRF token for forms and fetch() headers
	Data      map[string]any // Page-specific data
	Flashes   []Flash        // One-time notification messages
}

// Flash represents a one-time notification message displayed to the user.
type Flash struct {
	Type    string // "success", "error", "info"
	Message string
}

// ListData is the input of the item list fragment.
type ListData struct {
	Items  []models.Item
	View   string
	Viewer *session.Data
	Now    time.Time
}

// Renderer handles template parsing and execution.
type Renderer struct {
	templates map[string]*template.Template
	fragments *template.Template
	funcMap   template.FuncMap
}

// New parses all embedded templates. Every page is paired with the base
// layout and the shared partials (files starting with "_").
func New() (*Renderer, error) {
	r := &Renderer{
		templates: make(map[string]*template.Template),
		funcMap:   funcMap(),
	}

	entries, err := fs.ReadDir(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("read embedded templates: %w", err)
	}

	var partials, pages []string
	for _, e := range entries {
		name := e.Name()
		switch {
		case e.IsDir() || name == "base.html":
		case strings.HasPrefix(name, "_"):
			partials = append(partials, "templates/"+name)
		default:
			pages = append(pages, name)
		}
	}

	r.fragments, err = template.New("fragments").Funcs(r.funcMap).ParseFS(templateFS, partials...)
	if err != nil {
		return nil, fmt.Errorf("parse partials: %w", err)
	}

	for _, name := range pages {
		files := append([]string{"templates/base.html", "templates/" + name}, partials...)
		tmpl, err := template.New("base.html").Funcs(r.funcMap).ParseFS(templateFS, files...)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.templates[strings.TrimSuffix(name, ".html")] = tmpl
	}

	return r, nil
}

// Has reports whether a page template exists.
func (rn *Renderer) Has(name string) bool {
	_, ok := rn.templates[name]
	return ok
}

// Page renders a full page. Session, CSRF token and flashes are filled in
// from the request context. Output is buffered so a template error turns
// into a clean 500.
func (rn *Renderer) Page(w http.ResponseWriter, r *http.Request, name string, data *PageData) {
	tmpl, ok := rn.templates[name]
	if !ok {
		http.Error(w, fmt.Sprintf("template %q not found", name), http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	data.CSRFToken = middleware.CSRFTokenFromCtx(ctx)
	if data.Session == nil {
		data.Session = middleware.SessionFromCtx(ctx)
	}
	for _, msg := range middleware.FlashesFromCtx(ctx) {
		data.Flashes = append(data.Flashes, Flash{Type: "success", Message: msg})
	}
	if data.Data == nil {
		data.Data = map[string]any{}
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		slog.Error("template execute failed", "template", name, "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if data.Status != 0 {
		w.WriteHeader(data.Status)
	}
	w.Write(buf.Bytes())
}

// Fragment renders a partial template without the layout.
func (rn *Renderer) Fragment(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := rn.fragments.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("render fragment %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		// deref safely dereferences a string pointer for use in templates.
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		// catIndent returns a category name with non-breaking space
		// indentation based on depth, for hierarchical <select> lists.
		"catIndent": func(depth int, name string) string {
			if depth == 0 {
				return name
			}
			return strings.Repeat("\u00A0\u00A0\u00A0\u00A0", depth) + name
		},
		// uuidEq compares a *uuid.UUID pointer with a uuid.UUID value.
		"uuidEq": func(ptr *uuid.UUID, val uuid.UUID) bool {
			return ptr != nil && *ptr == val
		},
		"markdown": markdown.Render,
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("Jan 2, 2006")
		},
		"isoDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02")
		},
		"canDelete": func(item models.Item, viewer *session.Data) bool {
			return viewer != nil && item.CanBeDeletedBy(viewer.UserID)
		},
		"isNew": func(item models.Item, now time.Time) bool {
			return item.WasPublishedRecently(now)
		},
		"statusClass": func(s models.ItemStatus) string {
			return "status-" + strings.ReplaceAll(string(s), "_", "-")
		},
		"fieldError": func(errs map[string]string, field string) string {
			return errs[field]
		},
		"contains": func(list []string, s string) bool {
			for _, v := range list {
				if v == s {
					return true
				}
			}
			return false
		},
	}
}
