// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for the handler
// tests. The registry runs on the in-memory repositories, so these tests
// need neither PostgreSQL nor Valkey.
package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"lostfound/internal/middleware"
	"lostfound/internal/models"
	"lostfound/internal/registry"
	"lostfound/internal/registry/registrytest"
	"lostfound/internal/render"
	"lostfound/internal/session"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// fakeSessions records what the handlers do to sessions.
type fakeSessions struct {
	mu        sync.Mutex
	created   []*session.Data
	updated   []*session.Data
	flashes   []string
	destroyed int
}

func (f *fakeSessions) Create(_ context.Context, w http.ResponseWriter, data *session.Data) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, data)
	http.SetCookie(w, &http.Cookie{Name: session.CookieName, Value: "test-session"})
	return "test-session", nil
}

func (f *fakeSessions) Update(_ context.Context, _ *http.Request, data *session.Data) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, data)
	return nil
}

func (f *fakeSessions) AddFlash(_ context.Context, _ *http.Request, data *session.Data, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data.Flashes = append(data.Flashes, msg)
	f.flashes = append(f.flashes, msg)
	return nil
}

func (f *fakeSessions) Destroy(_ context.Context, _ http.ResponseWriter, _ *http.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed++
	return nil
}

// fakeCache is an in-memory ListCache.
type fakeCache struct {
	mu          sync.Mutex
	entries     map[string][]byte
	gets        int
	invalidated int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string][]byte{}}
}

func (c *fakeCache) Get(_ context.Context, query string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.entries[query]
	return v, ok
}

func (c *fakeCache) Set(_ context.Context, query string, html []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[query] = html
}

func (c *fakeCache) InvalidateAll(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string][]byte{}
	c.invalidated++
}

// fakeResolver maps keys onto a fixed media host.
type fakeResolver struct{}

func (fakeResolver) Resolve(_ context.Context, key string) (string, error) {
	return "https://media.example.com/" + key, nil
}

// testEnv holds all dependencies for handler tests.
type testEnv struct {
	Mem      *registrytest.Store
	Media    *registrytest.Media
	Svc      *registry.Service
	Renderer *render.Renderer
	Sessions *fakeSessions
	Cache    *fakeCache
	Public   *Public
	Items    *Items
	Auth     *Auth
	Staff    *Staff

	Member models.User
	Other  models.User
	Guard  models.User
}

// newTestEnv creates a complete test environment with all handler
// dependencies.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	renderer, err := render.New()
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}

	mem := registrytest.New()
	mem.Now = func() time.Time { return fixedNow }
	media := registrytest.NewMedia()
	svc := registry.New(mem.Repos(), mem, registry.Options{
		Policy: registry.DefaultPolicy,
		Media:  media,
		Now:    func() time.Time { return fixedNow },
	})

	sessions := &fakeSessions{}
	cache := newFakeCache()

	env := &testEnv{
		Mem:      mem,
		Media:    media,
		Svc:      svc,
		Renderer: renderer,
		Sessions: sessions,
		Cache:    cache,
		Public:   NewPublic(renderer, svc, cache, fakeResolver{}),
		Items:    NewItems(renderer, svc, sessions, cache),
		Auth:     NewAuth(renderer, svc, sessions),
		Staff:    NewStaff(renderer, svc, sessions, cache),
		Member:   mem.AddUser("alice", models.RoleMember),
		Other:    mem.AddUser("bob", models.RoleMember),
		Guard:    mem.AddUser("guard", models.RoleStaff),
	}
	env.Public.now = func() time.Time { return fixedNow }
	env.Items.now = func() time.Time { return fixedNow }
	return env
}

// sessionFor builds the session a logged-in user would carry.
func sessionFor(u models.User) *session.Data {
	return &session.Data{
		UserID:    u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      string(u.Role),
		TwoFADone: u.Role == models.RoleStaff,
	}
}

// ctxWithSession adds session data to a context using the middleware key.
func ctxWithSession(ctx context.Context, data *session.Data) context.Context {
	return context.WithValue(ctx, middleware.SessionKey, data)
}

// withChiURLParam adds a chi URL parameter to a request.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// postForm builds a urlencoded POST request.
func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// asUser attaches sess to req, and the id path parameter when id is set.
func asUser(req *http.Request, sess *session.Data, id uuid.UUID) *http.Request {
	if id != uuid.Nil {
		req = withChiURLParam(req, "id", id.String())
	}
	if sess != nil {
		req = req.WithContext(ctxWithSession(req.Context(), sess))
	}
	return req
}

// addItem stores an item uploaded by u.
func (e *testEnv) addItem(name string, u models.User, mutate ...func(*models.Item)) models.Item {
	item := models.Item{
		Name:          name,
		FoundLocation: "Library 2F",
		FoundDate:     time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		UploadedBy:    &u.ID,
	}
	for _, m := range mutate {
		m(&item)
	}
	return e.Mem.AddItem(item)
}
