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

	"github.com/webpeel/webpeel/api"
	"github.com/webpeel/webpeel/api/handler"
	"github.com/webpeel/webpeel/cleaner"
	"github.com/webpeel/webpeel/internal/checkpoint"
	"github.com/webpeel/webpeel/internal/config"
	"github.com/webpeel/webpeel/internal/dnscache"
	"github.com/webpeel/webpeel/internal/enginesupport"
	"github.com/webpeel/webpeel/internal/escalate"
	"github.com/webpeel/webpeel/internal/fetchstrategy"
	"github.com/webpeel/webpeel/internal/jobqueue"
	"github.com/webpeel/webpeel/internal/llmclient"
	"github.com/webpeel/webpeel/internal/respcache"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("webpeel starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
	)

	// ── 3. Initialise the fetch strategies and escalation engine ────
	dns := dnscache.New()
	plain := fetchstrategy.NewPlainFetcher(dns)

	browserCfg := fetchstrategy.BrowserFetcherConfig{
		Headless:       cfg.Browser.Headless,
		NoSandbox:      cfg.Browser.NoSandbox,
		BrowserBin:     cfg.Browser.BrowserBin,
		DefaultProxy:   cfg.Browser.DefaultProxy,
		MaxPages:       cfg.Browser.MaxPages,
		BlockedDefault: cfg.Fetch.BlockedResourceTypes,
	}
	browser, err := fetchstrategy.NewBrowserFetcher(browserCfg, false)
	if err != nil {
		slog.Error("failed to launch browser fetcher", "error", err)
		os.Exit(1)
	}
	defer browser.Close()

	stealth, err := fetchstrategy.NewBrowserFetcher(browserCfg, true)
	if err != nil {
		slog.Error("failed to launch stealth browser fetcher", "error", err)
		os.Exit(1)
	}
	defer stealth.Close()

	mirror := fetchstrategy.NewMirrorFetcher(cfg.Fetch.MirrorHost, nil, nil)

	var edgeWorker fetchstrategy.Fetcher
	if ew, ok := fetchstrategy.NewEdgeWorkerFetcherFromEnv(); ok {
		edgeWorker = ew
		slog.Info("edge worker fetch strategy enabled")
	}

	respCache := respcache.New()
	if err := respCache.SetTTL(cfg.Cache.TTL); err != nil {
		slog.Warn("invalid cache TTL, using default", "error", err)
	}

	memory := enginesupport.NewDomainMemory(cfg.Escalation.DomainMemoryTTL)

	engine := &escalate.Engine{
		Plain:      plain,
		Browser:    browser,
		Stealth:    stealth,
		Mirror:     mirror,
		EdgeWorker: edgeWorker,
		Cache:      respCache,
		Memory:     memory,
	}

	// ── 4. Initialise the cleaner ────────────────────────────────────
	cl := cleaner.NewReadabilityExtractor()

	// ── 5. Initialise the job queue, checkpoint store, and LLM client ─
	queue := jobqueue.New()
	defer queue.Destroy()

	checkpoints, err := checkpoint.NewStore(cfg.Checkpoint.Dir)
	if err != nil {
		slog.Error("failed to initialise checkpoint store", "error", err)
		os.Exit(1)
	}

	snapshots, err := handler.NewSnapshotStore("")
	if err != nil {
		slog.Error("failed to initialise watch snapshot store", "error", err)
		os.Exit(1)
	}

	llmClient := llmclient.NewClient(&http.Client{Timeout: cfg.Fetch.MaxTimeout})

	// ── 6. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(api.Deps{
		Engine:      engine,
		Cleaner:     cl,
		LLMClient:   llmClient,
		Queue:       queue,
		Checkpoints: checkpoints,
		Snapshots:   snapshots,
		Pool:        browser.Pool(),
		Config:      cfg,
		StartTime:   startTime,
	})

	// ── 7. Start HTTP server ────────────────────────────────────────
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

	// ── 8. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// browser/stealth.Close() and queue.Destroy() run via defer.
	slog.Info("webpeel stopped")
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

	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(h))
}
