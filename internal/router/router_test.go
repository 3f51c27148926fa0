// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router tests verify the HTTP routing configuration, middleware
// chains, and the health endpoint.
package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lostfound/internal/handlers"
	"lostfound/internal/models"
	"lostfound/internal/registry"
	"lostfound/internal/registry/registrytest"
	"lostfound/internal/render"
	"lostfound/internal/session"
)

// cookieSessions resolves the session cookie value to a fixed session.
type cookieSessions struct {
	byID map[string]*session.Data
}

func (c *cookieSessions) Get(_ context.Context, r *http.Request) (*session.Data, error) {
	cookie, err := r.Cookie(session.CookieName)
	if err != nil {
		return nil, nil
	}
	return c.byID[cookie.Value], nil
}

func (c *cookieSessions) PopFlashes(_ context.Context, _ *http.Request, data *session.Data) ([]string, error) {
	msgs := data.Flashes
	data.Flashes = nil
	return msgs, nil
}

func (c *cookieSessions) Create(_ context.Context, _ http.ResponseWriter, _ *session.Data) (string, error) {
	return "new", nil
}

func (c *cookieSessions) Update(_ context.Context, _ *http.Request, _ *session.Data) error {
	return nil
}

func (c *cookieSessions) AddFlash(_ context.Context, _ *http.Request, data *session.Data, msg string) error {
	data.Flashes = append(data.Flashes, msg)
	return nil
}

func (c *cookieSessions) Destroy(_ context.Context, _ http.ResponseWriter, _ *http.Request) error {
	return nil
}

func newTestRouter(t *testing.T) (http.Handler, *cookieSessions) {
	t.Helper()

	renderer, err := render.New()
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}
	mem := registrytest.New()
	svc := registry.New(mem.Repos(), mem, registry.Options{Policy: registry.DefaultPolicy})

	member := mem.AddUser("alice", models.RoleMember)
	staff := mem.AddUser("guard", models.RoleStaff)
	sessions := &cookieSessions{byID: map[string]*session.Data{
		"member": {UserID: member.ID, Username: member.Username, Role: string(member.Role)},
		"staff":  {UserID: staff.ID, Username: staff.Username, Role: string(staff.Role)},
	}}

	r := New(Options{Sessions: sessions}, Handlers{
		Public: handlers.NewPublic(renderer, svc, nil, nil),
		Items:  handlers.NewItems(renderer, svc, sessions, nil),
		Auth:   handlers.NewAuth(renderer, svc, sessions),
		Staff:  handlers.NewStaff(renderer, svc, sessions, nil),
	})
	return r, sessions
}

func get(h http.Handler, target, sessionID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: sessionID})
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthHandler(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/health", nil)

	healthHandler(w, r)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}

	ct := resp.Header.Get("Content-Type")
	if ct != "application/json" {
		t.Errorf("content-type: got %q, want %q", ct, "application/json")
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field: got %q, want %q", body["status"], "ok")
	}
}

func TestPublicRoutes(t *testing.T) {
	h, _ := newTestRouter(t)

	tests := []struct {
		target string
		code   int
	}{
		{"/", http.StatusOK},
		{"/api/items", http.StatusOK},
		{"/about", http.StatusOK},
		{"/features", http.StatusOK},
		{"/contact", http.StatusOK},
		{"/info", http.StatusOK},
		{"/login", http.StatusOK},
		{"/signup", http.StatusOK},
		{"/health", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/static/app.css", http.StatusOK},
		{"/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := get(h, tt.target, "")
			if rec.Code != tt.code {
				t.Errorf("GET %s: got %d, want %d", tt.target, rec.Code, tt.code)
			}
		})
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := get(h, "/", "")
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Error("expected CSP header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected nosniff header")
	}
}

func TestMemberRoutesRequireLogin(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := get(h, "/upload", "")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("anonymous /upload: got %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login?next=%2Fupload" {
		t.Errorf("Location = %q", loc)
	}

	rec = get(h, "/upload", "member")
	if rec.Code != http.StatusOK {
		t.Errorf("member /upload: got %d, want 200", rec.Code)
	}
}

func TestStaffRoutes(t *testing.T) {
	h, _ := newTestRouter(t)

	if rec := get(h, "/staff/pending", "member"); rec.Code != http.StatusForbidden {
		t.Errorf("member /staff/pending: got %d, want 403", rec.Code)
	}

	// Staff without a completed second factor are sent to verify.
	rec := get(h, "/staff/pending", "staff")
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/2fa/verify" {
		t.Errorf("staff without 2FA: got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestStaffRoutesAfter2FA(t *testing.T) {
	h, sessions := newTestRouter(t)
	sessions.byID["staff"].TwoFADone = true

	for _, target := range []string{"/staff/pending", "/staff/categories"} {
		if rec := get(h, target, "staff"); rec.Code != http.StatusOK {
			t.Errorf("GET %s: got %d, want 200", target, rec.Code)
		}
	}
}

func TestPostWithoutCSRFRejected(t *testing.T) {
	h, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("username=alice&password=password123"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("POST /login without token: got %d, want 403", rec.Code)
	}
}

func TestFlashesShownOnce(t *testing.T) {
	h, sessions := newTestRouter(t)
	sessions.byID["member"].Flashes = []string{"Thank you for your honesty."}

	if body := get(h, "/", "member").Body.String(); !strings.Contains(body, "Thank you for your honesty.") {
		t.Error("expected flash on first page view")
	}
	if body := get(h, "/", "member").Body.String(); strings.Contains(body, "Thank you for your honesty.") {
		t.Error("flash must not repeat")
	}
}
