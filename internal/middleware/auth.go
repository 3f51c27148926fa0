// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"lostfound/internal/session"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

const (
	// SessionKey is the context key for the session data.
	SessionKey contextKey = "session"

	// FlashesKey is the context key for one-time messages popped from the
	// session on this request.
	FlashesKey contextKey = "flashes"
)

// SessionStore is the part of session.Store the middleware needs.
type SessionStore interface {
	Get(ctx context.Context, r *http.Request) (*session.Data, error)
	PopFlashes(ctx context.Context, r *http.Request, data *session.Data) ([]string, error)
}

// LoadSession retrieves the session from Valkey and stores it in the
// request context along with any pending flash messages. It does NOT
// enforce authentication.
func LoadSession(store SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, err := store.Get(r.Context(), r)
			if err != nil {
				slog.Warn("session load failed", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if data == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), SessionKey, data)

			// Flashes are only consumed by pages that render HTML.
			if len(data.Flashes) > 0 && r.Method == http.MethodGet && !wantsJSON(r) {
				msgs, err := store.PopFlashes(r.Context(), r, data)
				if err != nil {
					slog.Warn("flash pop failed", "error", err)
				}
				ctx = context.WithValue(ctx, FlashesKey, msgs)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth sends anonymous visitors to the login page, remembering the
// requested path in ?next=. XHR and JSON callers get a 401 instead.
// Must be applied after LoadSession in the middleware chain.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromCtx(r.Context())
		if sess == nil {
			if wantsJSON(r) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"status":"error","message":"Login required."}`))
				return
			}
			http.Redirect(w, r, LoginURL(r.URL.RequestURI()), http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// LoginURL builds the login path that returns to next after signing in.
func LoginURL(next string) string {
	if next == "" || next == "/" {
		return "/login"
	}
	return "/login?next=" + url.QueryEscape(next)
}

// Require2FA sends staff who haven't passed the TOTP check to the verify
// page, which forwards to setup when no secret is enrolled yet. Members
// have no second factor. Must be applied after RequireAuth.
func Require2FA(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromCtx(r.Context())
		if sess != nil && sess.IsStaff() && !sess.TwoFADone {
			http.Redirect(w, r, "/2fa/verify", http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireStaff returns 403 if the authenticated user is not staff.
// Must be applied after RequireAuth and Require2FA.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromCtx(r.Context())
		if sess == nil || !sess.IsStaff() {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// SessionFromCtx extracts the session data from the request context.
// Returns nil if no session is loaded (user is not authenticated).
func SessionFromCtx(ctx context.Context) *session.Data {
	data, _ := ctx.Value(SessionKey).(*session.Data)
	return data
}

// ViewerID returns the logged-in user's id, or nil for anonymous requests.
func ViewerID(ctx context.Context) *uuid.UUID {
	sess := SessionFromCtx(ctx)
	if sess == nil {
		return nil
	}
	id := sess.UserID
	return &id
}

// FlashesFromCtx returns the flash messages loaded for this request.
func FlashesFromCtx(ctx context.Context) []string {
	msgs, _ := ctx.Value(FlashesKey).([]string)
	return msgs
}

func wantsJSON(r *http.Request) bool {
	if r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
