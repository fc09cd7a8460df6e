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

	"github.com/jacostaf/tcg-ygoripper-sub000/api"
	"github.com/jacostaf/tcg-ygoripper-sub000/catalog"
	"github.com/jacostaf/tcg-ygoripper-sub000/config"
	"github.com/jacostaf/tcg-ygoripper-sub000/metrics"
	"github.com/jacostaf/tcg-ygoripper-sub000/pool"
	"github.com/jacostaf/tcg-ygoripper-sub000/pricecache"
	"github.com/jacostaf/tcg-ygoripper-sub000/scraper"
	"github.com/jacostaf/tcg-ygoripper-sub000/store"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("ygoprices starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"pool_strategy", cfg.Pool.Strategy,
		"max_browsers", cfg.Pool.MaxBrowsers,
	)

	// ── 3. Open the price store ─────────────────────────────────────
	st, err := store.OpenBadger(cfg.Cache.Path)
	if err != nil {
		slog.Error("failed to open price store", "path", cfg.Cache.Path, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("closing price store failed", "error", err)
		}
	}()

	cache := pricecache.New(st, cfg.Cache.TTL)
	cat := catalog.New(st)

	// ── 4. Build the browser pool ───────────────────────────────────
	bp, err := pool.New(cfg.Pool, pool.NewRodLauncher(cfg.Browser))
	if err != nil {
		slog.Error("failed to build browser pool", "strategy", cfg.Pool.Strategy, "error", err)
		os.Exit(1)
	}
	defer bp.Shutdown()

	if err := bp.Initialize(context.Background()); err != nil {
		slog.Error("failed to initialise browser pool", "error", err)
		os.Exit(1)
	}

	// ── 5. Wire the orchestrator and metrics ────────────────────────
	orch := scraper.New(bp, cache, cat, cfg.Scraper, cfg.Pool.AcquireTimeout)
	m := metrics.New()

	// ── 6. Setup router and HTTP server ─────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(orch, bp, cache, m, cfg, startTime)

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

	// bp.Shutdown() and st.Close() run via defer.
	slog.Info("ygoprices stopped")
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
