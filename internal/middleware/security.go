// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"net/http"
	"strings"
)

// SecureHeaders adds security-related HTTP headers to every response.
// mediaOrigins lists extra origins (the S3 public URL) item photos may be
// loaded from; pages otherwise only pull resources from 'self'.
func SecureHeaders(mediaOrigins ...string) func(http.Handler) http.Handler {
	imgSrc := "'self' data:"
	for _, o := range mediaOrigins {
		if o = strings.TrimSpace(o); o != "" {
			imgSrc += " " + o
		}
	}
	csp := "default-src 'self'; img-src " + imgSrc + "; style-src 'self'; script-src 'self'; frame-ancestors 'self'; form-action 'self'"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()

			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "SAMEORIGIN")
			// Disable the legacy XSS filter; CSP covers it.
			h.Set("X-XSS-Protection", "0")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "interest-cohort=(), camera=(), microphone=()")
			h.Set("Content-Security-Policy", csp)

			next.ServeHTTP(w, r)
		})
	}
}
