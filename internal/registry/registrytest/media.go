package registrytest

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Media is an in-memory registry.MediaStore.
type Media struct {
	mu      sync.Mutex
	objects map[string][]byte

	// FailPut makes every Put fail.
	FailPut bool
}

// NewMedia returns an empty media store.
func NewMedia() *Media {
	return &Media{objects: map[string][]byte{}}
}

func (m *Media) Put(_ context.Context, key, _ string, data []byte) error {
	if m.FailPut {
		return errors.New("media unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *Media) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *Media) URL(key string) string {
	return "/media/" + key
}

// Len returns the number of stored objects.
func (m *Media) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// Has reports whether key is stored.
func (m *Media) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

// AuditEntry is one recorded audit event.
type AuditEntry struct {
	EntityType string
	EntityID   uuid.UUID
	Action     string
	ActorID    *uuid.UUID
	Detail     string
}

// Audit records audit events in memory.
type Audit struct {
	mu      sync.Mutex
	Entries []AuditEntry
}

func (a *Audit) Log(_ context.Context, entityType string, entityID uuid.UUID, action string, actorID *uuid.UUID, detail string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Entries = append(a.Entries, AuditEntry{entityType, entityID, action, actorID, detail})
}

// Actions returns the recorded actions in order.
func (a *Audit) Actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.Entries))
	for i, e := range a.Entries {
		out[i] = e.EntityType + ":" + e.Action
	}
	return out
}
