// Package router sets up all HTTP routes and middleware chains for the
// lost-and-found site. Routes are grouped by who may reach them: anyone,
// logged-in users, and staff who passed the second factor.
package router

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lostfound/internal/handlers"
	"lostfound/internal/imaging"
	"lostfound/internal/metrics"
	"lostfound/internal/middleware"
	"lostfound/web"
)

// maxBody leaves room for the form fields next to a full-size photo.
const maxBody = imaging.MaxUploadSize + 1<<20

// Options carries the infrastructure the middleware chain needs.
type Options struct {
	Sessions     middleware.SessionStore
	SecureCookie bool

	// MediaOrigins are extra img-src origins for the CSP (the S3 host).
	MediaOrigins []string

	// LocalMedia serves photos from disk under /media/ when S3 is not
	// configured. Nil disables the route.
	LocalMedia http.Handler

	// Limiter throttles form posts. Nil disables rate limiting.
	Limiter *middleware.RateLimiter
}

// Handlers bundles the handler groups.
type Handlers struct {
	Public *handlers.Public
	Items  *handlers.Items
	Auth   *handlers.Auth
	Staff  *handlers.Staff
}

// New creates and returns the configured Chi router with all middleware
// and route groups wired up.
func New(opts Options, h Handlers) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(metrics.Middleware)
	r.Use(middleware.SecureHeaders(opts.MediaOrigins...))

	// Operational endpoints: no session, no CSRF.
	r.Get("/health", healthHandler)
	r.Handle("/metrics", metrics.Handler())

	staticFS, _ := fs.Sub(web.StaticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(staticFS)))
	if opts.LocalMedia != nil {
		r.Handle("/media/*", http.StripPrefix("/media/", opts.LocalMedia))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.MaxBody(maxBody))
		r.Use(middleware.LoadSession(opts.Sessions))
		r.Use(middleware.NewCSRF(opts.SecureCookie))
		if opts.Limiter != nil {
			r.Use(opts.Limiter.Middleware)
		}

		// Public browsing.
		r.Get("/", h.Public.Index)
		r.Get("/api/items", h.Public.ItemsAPI)
		r.Get("/item/{id}/image", h.Public.Image)
		r.Get("/item/{id}/thumb", h.Public.Thumb)
		r.Get("/about", h.Public.Info("about", "About"))
		r.Get("/features", h.Public.Info("features", "Features"))
		r.Get("/contact", h.Public.Info("contact", "Contact"))
		r.Get("/info", h.Public.Info("info", "How It Works"))

		// Accounts.
		r.Get("/signup", h.Auth.SignupPage)
		r.Post("/signup", h.Auth.SignupSubmit)
		r.Get("/login", h.Auth.LoginPage)
		r.Post("/login", h.Auth.LoginSubmit)
		r.Post("/logout", h.Auth.Logout)

		// 2FA: requires a login but not a completed second factor.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Get("/2fa/setup", h.Auth.TwoFASetupPage)
			r.Get("/2fa/verify", h.Auth.TwoFAVerifyPage)
			r.Post("/2fa/verify", h.Auth.TwoFAVerifySubmit)
		})

		// Member actions.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Use(middleware.Require2FA)

			r.Get("/upload", h.Items.UploadPage)
			r.Post("/upload", h.Items.UploadSubmit)
			r.Get("/profile", h.Items.Profile)
			r.Get("/my-uploads", h.Items.MyUploads)
			r.Post("/item/{id}/toggle-watch", h.Items.ToggleWatch)
			r.Post("/item/{id}/delete", h.Items.Delete)
		})

		// Staff moderation.
		r.Route("/staff", func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Use(middleware.Require2FA)
			r.Use(middleware.RequireStaff)

			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				http.Redirect(w, r, "/staff/pending", http.StatusFound)
			})
			r.Get("/pending", h.Staff.PendingPage)
			r.Post("/pending/approve", h.Staff.ApprovePending)
			r.Post("/pending/{id}/reject", h.Staff.RejectPending)
			r.Get("/categories", h.Staff.CategoriesPage)
			r.Post("/categories", h.Staff.CreateCategory)
			r.Post("/categories/{id}/delete", h.Staff.DeleteCategory)
			r.Post("/items/{id}/status", h.Staff.SetItemStatus)
		})

		r.NotFound(h.Public.NotFound)
	})

	return r
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
