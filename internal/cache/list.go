// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// list.go caches the rendered item-list fragment served to anonymous
// visitors. The key is derived from the canonical filter query, so every
// distinct filter combination has its own entry. Any write to items or
// categories clears the whole set; the TTL bounds staleness for writes
// made outside the server (the admin CLI).
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"lostfound/internal/metrics"
)

const (
	// listKeyPrefix is the Valkey key prefix for cached list fragments.
	listKeyPrefix = "items:list:"

	// DefaultListTTL is how long a rendered list stays cached.
	DefaultListTTL = 30 * time.Second
)

// ListCache manages item-list fragment caching in Valkey.
type ListCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewListCache creates a list cache backed by the given Valkey client.
func NewListCache(client *redis.Client, ttl time.Duration) *ListCache {
	if ttl == 0 {
		ttl = DefaultListTTL
	}
	return &ListCache{client: client, ttl: ttl}
}

// Key maps an encoded filter query to its cache key.
func Key(query string) string {
	sum := sha256.Sum256([]byte(query))
	return listKeyPrefix + hex.EncodeToString(sum[:16])
}

// Get returns the cached fragment for query. Errors count as misses.
func (lc *ListCache) Get(ctx context.Context, query string) ([]byte, bool) {
	val, err := lc.client.Get(ctx, Key(query)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.ListCacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	if err != nil {
		slog.Warn("list cache get error", "query", query, "error", err)
		metrics.ListCacheLookups.WithLabelValues("error").Inc()
		return nil, false
	}
	metrics.ListCacheLookups.WithLabelValues("hit").Inc()
	return val, true
}

// Set stores a rendered fragment with the configured TTL.
func (lc *ListCache) Set(ctx context.Context, query string, html []byte) {
	if err := lc.client.Set(ctx, Key(query), html, lc.ttl).Err(); err != nil {
		slog.Warn("list cache set error", "query", query, "error", err)
	}
}

// InvalidateAll removes every cached list by scanning for the prefix.
func (lc *ListCache) InvalidateAll(ctx context.Context) {
	var cursor uint64
	var deleted int
	for {
		keys, nextCursor, err := lc.client.Scan(ctx, cursor, listKeyPrefix+"*", 100).Result()
		if err != nil {
			slog.Warn("list cache scan error", "error", err)
			return
		}
		if len(keys) > 0 {
			if err := lc.client.Del(ctx, keys...).Err(); err != nil {
				slog.Warn("list cache bulk delete error", "error", err)
			}
			deleted += len(keys)
		}
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
	if deleted > 0 {
		slog.Debug("list cache cleared", "deleted", deleted)
	}
}
