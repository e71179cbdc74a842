package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pardeepdhingra/urllens/api"
	"github.com/pardeepdhingra/urllens/auditor"
	"github.com/pardeepdhingra/urllens/cache"
	"github.com/pardeepdhingra/urllens/config"
	"github.com/pardeepdhingra/urllens/discovery"
	"github.com/pardeepdhingra/urllens/preview"
	"github.com/pardeepdhingra/urllens/prober"
	"github.com/pardeepdhingra/urllens/ratelimit"
	"github.com/pardeepdhingra/urllens/render"
	"github.com/pardeepdhingra/urllens/store"
	"github.com/pardeepdhingra/urllens/webhook"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("urllens starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"renderEnabled", cfg.Render.Enabled,
	)

	// ── 3. Initialise probing + discovery ───────────────────────────
	p := prober.New(cfg.Prober, nil)

	// One pacer for discovery and audits: a domain session's sitemap
	// fetches and probe waves share the target host's budget.
	hp := ratelimit.NewHostPacer(cfg.RateLimit.HostRPS, cfg.RateLimit.HostBurst)
	defer hp.Close()

	e := discovery.New(p, hp, cfg.Discovery)

	// ── 4. Session store + audit orchestrator ───────────────────────
	st := store.NewMemoryStore(cfg.Audit.SessionTTL, cfg.Audit.MaxSessions)
	defer st.Close()

	a := auditor.New(p, e, st, hp, cfg.Audit)
	defer a.Close()

	// Session completion notifications use the configured delivery timeout.
	if cfg.Webhook.Timeout > 0 {
		webhook.Timeout = cfg.Webhook.Timeout
	}

	// ── 4b. Probe cache, preview pipeline, rate limiter ─────────────
	cc := cache.New(cfg.Cache.MaxEntries)
	defer cc.Close()

	pg := preview.New()

	rl := ratelimit.NewKeyed(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	defer rl.Close()

	// ── 4c. Optional headless renderer ──────────────────────────────
	rd := render.FromConfig(cfg.Render)
	defer rd.Close()
	if rd.Available() {
		slog.Info("headless renderer ready")
	} else {
		slog.Info("headless renderer not configured; render checks report unavailable")
	}

	// ── 5. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(p, e, a, st, cc, pg, rd, rl, cfg, startTime)

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// a.Close() runs via defer — waits for running audit sessions to
	// reach a terminal state before the store and renderer go away.
	slog.Info("urllens stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
