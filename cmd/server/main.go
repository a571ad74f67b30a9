package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pauljones0/wanderdeals/internal/admin"
	"github.com/pauljones0/wanderdeals/internal/ai"
	"github.com/pauljones0/wanderdeals/internal/config"
	"github.com/pauljones0/wanderdeals/internal/importer"
	"github.com/pauljones0/wanderdeals/internal/logging"
	"github.com/pauljones0/wanderdeals/internal/notifier"
	"github.com/pauljones0/wanderdeals/internal/prefs"
	"github.com/pauljones0/wanderdeals/internal/processor"
	"github.com/pauljones0/wanderdeals/internal/scheduler"
	"github.com/pauljones0/wanderdeals/internal/session"
	"github.com/pauljones0/wanderdeals/internal/storage"
	"github.com/pauljones0/wanderdeals/internal/validator"
	"github.com/pauljones0/wanderdeals/internal/web"
)

type Server struct {
	processor processor.Processor
}

func main() {
	slog.Info("Starting WanderDeals server...")
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}

	_, logCloser := logging.Setup(logging.Options{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	defer logCloser.Close()

	ctx := context.Background()
	store, err := storage.New(ctx, cfg.ProjectID)
	if err != nil {
		slog.Error("Critical error initializing Firestore client", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	kv, kvCloser := newPrefsStore(ctx, cfg.RedisAddr)
	defer kvCloser.Close()
	prefsService := prefs.NewService(kv)

	categorizer, err := ai.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		slog.Warn("Gemini unavailable, imported deals will not be categorized", "error", err)
		categorizer = nil
	}

	v := validator.New()
	n := notifier.New(cfg.DiscordWebhookURL, cfg.PublicBaseURL)
	imp := importer.New(cfg.AllowedDomains, importer.LoadConfig())
	p := processor.New(store, n, imp, categorizer, v, cfg)

	adminHandler := admin.New(store, prefsService, v, admin.Options{
		SessionKey:   cfg.SessionKey,
		CSRFKey:      cfg.CSRFKey,
		CookieSecure: cfg.CookieSecure,
		Session: session.Config{
			Timeout: cfg.SessionTimeout,
			Warning: cfg.SessionWarning,
		},
	})
	defer adminHandler.Shutdown()

	sched := scheduler.New(4 * time.Minute)
	if len(cfg.ImportSources) > 0 {
		if err := sched.Add("import-deals", cfg.ImportSchedule, p.ImportDeals); err != nil {
			slog.Error("Critical error scheduling import", "error", err)
			os.Exit(1)
		}
	}
	if err := sched.Add("expire-deals", cfg.ExpirySchedule, func(ctx context.Context) error {
		count, err := store.DeactivateExpiredDeals(ctx)
		if count > 0 {
			slog.Info("Deactivated expired deals", "count", count)
		}
		return err
	}); err != nil {
		slog.Error("Critical error scheduling expiry", "error", err)
		os.Exit(1)
	}
	sched.Start()

	srv := &Server{processor: p}

	mux := http.NewServeMux()
	web.New(store, n, prefsService, v).Register(mux)
	mux.Handle("/admin/", adminHandler.Routes())
	mux.HandleFunc("POST /tasks/import", srv.ImportDealsHandler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, `{"status":"ok"}`)
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      web.LoggingMiddleware(web.SecurityHeadersMiddleware(mux)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh
		slog.Info("Received signal, shutting down gracefully...", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
		if err := sched.Stop(shutdownCtx); err != nil {
			slog.Error("Scheduler shutdown error", "error", err)
		}
	}()

	slog.Info("Listening on port", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Failed to listen and serve", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped.")
}

// newPrefsStore connects to Redis when addr is set and falls back to an
// in-memory store otherwise or when Redis is unreachable.
func newPrefsStore(ctx context.Context, addr string) (prefs.Store, io.Closer) {
	if addr == "" {
		slog.Info("REDIS_ADDR not set, using in-memory preference store")
		return prefs.NewMemoryStore(), io.NopCloser(nil)
	}
	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rs, err := prefs.NewRedisStore(connectCtx, addr)
	if err != nil {
		slog.Warn("Redis unavailable, using in-memory preference store", "error", err)
		return prefs.NewMemoryStore(), io.NopCloser(nil)
	}
	return rs, rs
}

// ImportDealsHandler triggers an out-of-schedule import.
func (s *Server) ImportDealsHandler(w http.ResponseWriter, r *http.Request) {
	// Run the import asynchronously so the HTTP response isn't blocked
	// by scraping, Firestore, and Discord operations that may exceed timeouts.
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Panic in ImportDeals", "panic", r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
		defer cancel()
		if err := s.processor.ImportDeals(ctx); err != nil {
			slog.Error("Error importing deals", "error", err)
		}
	}()

	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintln(w, "Deal import started.")
}
