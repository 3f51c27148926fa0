package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"

	"lostfound/internal/models"
	"lostfound/internal/registry"
)

// stage submits an item under a new category name so it becomes pending.
func (e *testEnv) stage(t *testing.T, name, category string) *models.Item {
	t.Helper()
	item, err := e.Svc.Submit(t.Context(), registry.SubmitInput{
		Name:          name,
		CategoryName:  category,
		FoundLocation: "Gym",
		FoundDate:     "2026-03-09",
	}, registry.Actor{ID: e.Member.ID, Role: e.Member.Role})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return item
}

func (e *testEnv) pendingID(t *testing.T, name string) uuid.UUID {
	t.Helper()
	pending, err := e.Svc.PendingCategories(t.Context())
	if err != nil {
		t.Fatalf("PendingCategories: %v", err)
	}
	for _, p := range pending {
		if p.Name == name {
			return p.ID
		}
	}
	t.Fatalf("pending category %q not found", name)
	return uuid.Nil
}

func TestPendingPage(t *testing.T) {
	env := newTestEnv(t)
	env.stage(t, "Blue Umbrella", "Umbrellas")

	req := asUser(httptest.NewRequest(http.MethodGet, "/staff/pending", nil), sessionFor(env.Guard), uuid.Nil)
	rec := httptest.NewRecorder()
	env.Staff.PendingPage(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Umbrellas") {
		t.Error("expected pending name in table")
	}
}

func TestApprovePending(t *testing.T) {
	env := newTestEnv(t)
	item := env.stage(t, "Blue Umbrella", "Umbrellas")
	env.stage(t, "Red Umbrella", "umbrellas")
	env.stage(t, "Yoga Mat", "Mats")
	id := env.pendingID(t, "Umbrellas")

	req := asUser(postForm("/staff/pending/approve", url.Values{"ids": {id.String()}}), sessionFor(env.Guard), uuid.Nil)
	rec := httptest.NewRecorder()
	env.Staff.ApprovePending(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/staff/pending" {
		t.Fatalf("got %d %q, want 303 /staff/pending", rec.Code, rec.Header().Get("Location"))
	}
	if names := env.Mem.PendingNames(); len(names) != 1 || names[0] != "Mats" {
		t.Errorf("pending names = %v, want [Mats]", names)
	}
	stored, _ := env.Mem.Item(item.ID)
	if stored.CategoryID == nil || stored.PendingCategoryName != nil {
		t.Errorf("item not moved onto the approved category: %+v", stored)
	}
	if len(env.Sessions.flashes) != 1 || !strings.Contains(env.Sessions.flashes[0], "2 items moved") {
		t.Errorf("flashes = %v", env.Sessions.flashes)
	}
	if env.Cache.invalidated != 1 {
		t.Errorf("cache invalidated %d times, want 1", env.Cache.invalidated)
	}
}

func TestApprovePendingAlreadyHandled(t *testing.T) {
	env := newTestEnv(t)

	req := asUser(postForm("/staff/pending/approve", url.Values{"ids": {uuid.NewString()}}), sessionFor(env.Guard), uuid.Nil)
	rec := httptest.NewRecorder()
	env.Staff.ApprovePending(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if len(env.Sessions.flashes) != 1 || !strings.Contains(env.Sessions.flashes[0], "already handled") {
		t.Errorf("flashes = %v", env.Sessions.flashes)
	}
	if env.Cache.invalidated != 0 {
		t.Error("nothing approved, nothing to invalidate")
	}
}

func TestApprovePendingNoSelection(t *testing.T) {
	env := newTestEnv(t)

	req := asUser(postForm("/staff/pending/approve", url.Values{}), sessionFor(env.Guard), uuid.Nil)
	rec := httptest.NewRecorder()
	env.Staff.ApprovePending(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Select at least one pending category") {
		t.Error("expected selection error")
	}
}

func TestRejectPending(t *testing.T) {
	env := newTestEnv(t)
	item := env.stage(t, "Blue Umbrella", "Umbrellas")
	id := env.pendingID(t, "Umbrellas")

	req := asUser(postForm("/staff/pending/x/reject", nil), sessionFor(env.Guard), id)
	rec := httptest.NewRecorder()
	env.Staff.RejectPending(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if len(env.Mem.PendingNames()) != 0 {
		t.Error("expected pending category removed")
	}
	stored, _ := env.Mem.Item(item.ID)
	if stored.PendingCategoryName != nil || stored.CategoryID != nil {
		t.Errorf("expected item left uncategorized: %+v", stored)
	}
}

func TestStaffActionsForbiddenForMembers(t *testing.T) {
	env := newTestEnv(t)
	env.stage(t, "Blue Umbrella", "Umbrellas")
	id := env.pendingID(t, "Umbrellas")

	req := asUser(postForm("/staff/pending/x/reject", nil), sessionFor(env.Member), id)
	rec := httptest.NewRecorder()
	env.Staff.RejectPending(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if len(env.Mem.PendingNames()) != 1 {
		t.Error("pending category must survive a forbidden reject")
	}
}

func TestCreateCategory(t *testing.T) {
	env := newTestEnv(t)
	parent := env.Mem.AddCategory("Electronics", nil)

	req := asUser(postForm("/staff/categories", url.Values{
		"name":      {"Calculators"},
		"parent_id": {parent.ID.String()},
	}), sessionFor(env.Guard), uuid.Nil)
	rec := httptest.NewRecorder()
	env.Staff.CreateCategory(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/staff/categories" {
		t.Fatalf("got %d %q, want 303 /staff/categories", rec.Code, rec.Header().Get("Location"))
	}
	names := env.Mem.CategoryNames()
	if len(names) != 2 || names[0] != "Calculators" {
		t.Errorf("category names = %v", names)
	}
}

func TestCreateCategoryDuplicate(t *testing.T) {
	env := newTestEnv(t)
	env.Mem.AddCategory("Electronics", nil)

	req := asUser(postForm("/staff/categories", url.Values{"name": {"Electronics"}}), sessionFor(env.Guard), uuid.Nil)
	rec := httptest.NewRecorder()
	env.Staff.CreateCategory(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (form re-render)", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Category with this Name already exists.") {
		t.Error("expected duplicate name error")
	}
}

func TestDeleteCategory(t *testing.T) {
	env := newTestEnv(t)
	unused := env.Mem.AddCategory("Umbrellas", nil)
	used := env.Mem.AddCategory("Electronics", nil)
	env.addItem("Calculator", env.Member, func(it *models.Item) { it.CategoryID = &used.ID })

	for _, tc := range []struct {
		id    uuid.UUID
		flash string
	}{
		{used.ID, "cannot be deleted"},
		{unused.ID, "Category deleted."},
	} {
		env.Sessions.flashes = nil
		req := asUser(postForm("/staff/categories/x/delete", nil), sessionFor(env.Guard), tc.id)
		rec := httptest.NewRecorder()
		env.Staff.DeleteCategory(rec, req)

		if rec.Code != http.StatusSeeOther {
			t.Fatalf("status = %d, want 303", rec.Code)
		}
		if len(env.Sessions.flashes) != 1 || !strings.Contains(env.Sessions.flashes[0], tc.flash) {
			t.Errorf("flashes = %v, want %q", env.Sessions.flashes, tc.flash)
		}
	}

	if names := env.Mem.CategoryNames(); len(names) != 1 || names[0] != "Electronics" {
		t.Errorf("category names = %v, want [Electronics]", names)
	}
}

func TestSetItemStatus(t *testing.T) {
	env := newTestEnv(t)
	item := env.addItem("Blue Umbrella", env.Member)

	tests := []struct {
		name   string
		form   url.Values
		sess   models.User
		code   int
		status models.ItemStatus
	}{
		{"staff sets at repository", url.Values{"status": {"at_repository"}}, env.Guard, http.StatusOK, models.StatusAtRepository},
		{"invalid status", url.Values{"status": {"lost"}}, env.Guard, http.StatusUnprocessableEntity, models.StatusAtRepository},
		{"member forbidden", url.Values{"status": {"retrieved"}}, env.Member, http.StatusForbidden, models.StatusAtRepository},
		{"staff marks retrieved", url.Values{"status": {"retrieved"}, "retrieved_by": {env.Other.ID.String()}}, env.Guard, http.StatusOK, models.StatusRetrieved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := asUser(postForm("/staff/items/x/status", tt.form), sessionFor(tt.sess), item.ID)
			rec := httptest.NewRecorder()
			env.Staff.SetItemStatus(rec, req)

			if rec.Code != tt.code {
				t.Fatalf("status = %d, want %d; body: %s", rec.Code, tt.code, rec.Body.String())
			}
			var resp map[string]any
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			wantStatus := "ok"
			if tt.code != http.StatusOK {
				wantStatus = "error"
			}
			if resp["status"] != wantStatus {
				t.Errorf("status field = %v, want %s", resp["status"], wantStatus)
			}

			stored, _ := env.Mem.Item(item.ID)
			if stored.Status != tt.status {
				t.Errorf("item status = %s, want %s", stored.Status, tt.status)
			}
		})
	}

	stored, _ := env.Mem.Item(item.ID)
	if stored.RetrievedBy == nil || *stored.RetrievedBy != env.Other.ID {
		t.Error("expected retrieved_by recorded")
	}
}
