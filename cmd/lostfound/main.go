// Package main is the entry point for the lost-and-found web server.
// It loads configuration, connects to services, sets up routing, and starts
// the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lostfound/internal/cache"
	"lostfound/internal/config"
	"lostfound/internal/database"
	"lostfound/internal/handlers"
	"lostfound/internal/middleware"
	"lostfound/internal/registry"
	"lostfound/internal/render"
	"lostfound/internal/router"
	"lostfound/internal/session"
	"lostfound/internal/storage"
	"lostfound/internal/store"
)

// mediaStore is what both photo backends offer.
type mediaStore interface {
	registry.MediaStore
	handlers.MediaResolver
	Origin() string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Structured logger: JSON in production, text in development.
	var logHandler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	if cfg.IsDev() {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	slog.SetDefault(slog.New(logHandler))

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
	)

	ctx := context.Background()

	// Connect to PostgreSQL.
	db, err := database.Connect(ctx, cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Seed development data (no-op if data already exists).
	if cfg.IsDev() {
		if err := database.Seed(ctx, db); err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	// Valkey backs sessions and the listing cache.
	valkeyClient, err := cache.ConnectValkey(ctx, cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
	if err != nil {
		slog.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer valkeyClient.Close()

	// Outside development, session cookies are HTTPS-only.
	secureCookies := !cfg.IsDev()
	sessionStore := session.NewStore(valkeyClient, secureCookies)

	renderer, err := render.New()
	if err != nil {
		slog.Error("failed to initialize template renderer", "error", err)
		os.Exit(1)
	}

	media, localMedia, err := openMedia(cfg)
	if err != nil {
		slog.Error("failed to initialize photo storage", "error", err)
		os.Exit(1)
	}

	svc := registry.New(store.NewRepos(db), store.NewTransactor(db), registry.Options{
		Policy: registry.SubmissionPolicy{
			RequireDescription: cfg.RequireDescription,
			RequireImage:       cfg.RequireImage,
			MembersSetStatus:   cfg.MembersSetStatus,
		},
		EmailDomain: cfg.AllowedEmailDomain,
		Media:       media,
		Audit:       store.NewAuditStore(db),
	})

	// A typed nil would defeat the handlers' nil check.
	var listCache handlers.ListCache
	if cfg.ListCacheTTL > 0 {
		listCache = cache.NewListCache(valkeyClient, cfg.ListCacheTTL)
	}

	var limiter *middleware.RateLimiter
	if cfg.FormRateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.FormRateLimit, cfg.FormRateWindow)
		defer limiter.Stop()
	}

	var origins []string
	if o := media.Origin(); o != "" {
		origins = append(origins, o)
	}

	r := router.New(router.Options{
		Sessions:     sessionStore,
		SecureCookie: secureCookies,
		MediaOrigins: origins,
		LocalMedia:   localMedia,
		Limiter:      limiter,
	}, router.Handlers{
		Public: handlers.NewPublic(renderer, svc, listCache, media),
		Items:  handlers.NewItems(renderer, svc, sessionStore, listCache),
		Auth:   handlers.NewAuth(renderer, svc, sessionStore),
		Staff:  handlers.NewStaff(renderer, svc, sessionStore, listCache),
	})

	// ReadTimeout allows a full-size photo upload on a slow connection.
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}

// openMedia picks S3 when it is configured and the local directory
// otherwise. The handler is non-nil only for local storage.
func openMedia(cfg *config.Config) (mediaStore, http.Handler, error) {
	if cfg.UseS3() {
		s3Store, err := storage.NewS3(cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3PublicURL)
		if err != nil {
			return nil, nil, err
		}
		if s3Store != nil {
			slog.Info("s3 storage connected", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)
			return s3Store, nil, nil
		}
		slog.Warn("s3 bucket set without endpoint or credentials, using local storage")
	}

	local, err := storage.NewLocal(cfg.MediaDir)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("local photo storage", "dir", local.Root())
	return local, local.Handler(), nil
}
