// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// audit.go records moderation and deletion events in the database. Each
// entry captures what changed, who changed it and a short detail line.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// AuditStore handles audit log operations.
type AuditStore struct {
	db DBTX
}

// NewAuditStore creates a new AuditStore.
func NewAuditStore(db DBTX) *AuditStore {
	return &AuditStore{db: db}
}

// Log records an event. Failures are logged and swallowed; the audit
// trail is best-effort.
func (s *AuditStore) Log(ctx context.Context, entityType string, entityID uuid.UUID, action string, actorID *uuid.UUID, detail string) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (entity_type, entity_id, action, actor_id, detail)
		VALUES ($1, $2, $3, $4, $5)
	`, entityType, entityID, action, actorID, detail)
	if err != nil {
		slog.Warn("failed to write audit log",
			"entity_type", entityType,
			"entity_id", entityID,
			"action", action,
			"error", err,
		)
		return
	}
	slog.Debug("audit logged",
		"entity_type", entityType,
		"entity_id", entityID,
		"action", action,
	)
}

// AuditEntry is a single recorded event.
type AuditEntry struct {
	ID         int64
	EntityType string
	EntityID   uuid.UUID
	Action     string
	ActorID    *uuid.UUID
	ActorName  string
	Detail     string
	CreatedAt  time.Time
}

// Recent returns the newest events, at most limit.
func (s *AuditStore) Recent(ctx context.Context, limit int) ([]AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.entity_type, a.entity_id, a.action, a.actor_id,
		       COALESCE(u.username, ''), a.detail, a.created_at
		FROM audit_log a
		LEFT JOIN users u ON u.id = a.actor_id
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.ActorID, &e.ActorName, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
