// Package main is the entry point for the UI automation engine server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/binjactl/uiengine/internal/bridge"
	"github.com/binjactl/uiengine/internal/config"
	"github.com/binjactl/uiengine/internal/dispatch"
	"github.com/binjactl/uiengine/internal/guard"
	"github.com/binjactl/uiengine/internal/host"
	"github.com/binjactl/uiengine/internal/host/memhost"
	"github.com/binjactl/uiengine/internal/ipc"
	"github.com/binjactl/uiengine/internal/logging"
	"github.com/binjactl/uiengine/internal/metrics"
	"github.com/binjactl/uiengine/internal/store"
	"github.com/binjactl/uiengine/internal/views"
	"github.com/binjactl/uiengine/internal/workflow"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to configuration file (.toml or .json)")
	headless := flag.Bool("headless", false, "run workflows on the request goroutine instead of a UI loop")
	flag.Parse()

	if *showVersion {
		fmt.Printf("uiengine %s (commit=%s, built=%s)\n", version, commit, date)
		os.Exit(0)
	}

	// Resolve config path: --config flag > UIENGINE_CONFIG env > next to exe > cwd > defaults.
	cfg, err := config.Load(config.Discover(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: load config: %v\n", err)
		os.Exit(1)
	}
	if *headless {
		cfg.Headless = true
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("uiengine stopped")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Wire the host. The in-memory desktop quits the process when asked to.
	desktop := memhost.NewDesktop("uiengine")
	desktop.DatabaseExtension = cfg.DatabaseExtension
	desktop.App.OnQuit(func() {
		logger.Info().Msg("application quit requested")
		cancel()
	})
	preload(desktop, cfg.Preload, logger)

	m := metrics.New()

	var loop *dispatch.Loop
	var sched host.Scheduler
	if !cfg.Headless {
		loop = dispatch.NewLoop(256, time.Duration(cfg.Polling.PumpIntervalMs)*time.Millisecond, desktop.App.ProcessEvents)
		sched = loop
	}
	h := desktop.Host(sched)

	// Wire dispatcher, engine, guard and bridge.
	d := dispatch.New(sched, m, logger)
	engine := workflow.NewEngine(h, d, workflow.Options{
		Timing:            cfg.ToTiming(),
		DatabaseExtension: cfg.DatabaseExtension,
		Resolver:          views.NewResolver(256, 30*time.Second),
	}, logger)
	g := guard.NewGuard(cfg.GuardConfig())
	b := bridge.NewBridge(engine, g, m, db, logger)

	handler := &ipc.Handler{Bridge: b, Logger: logger.With().Str("component", "ipc").Logger()}
	srv := ipc.NewServer(handler, m, cfg.ListenAddr)

	grp, gctx := errgroup.WithContext(ctx)
	if loop != nil {
		grp.Go(func() error {
			if err := loop.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	grp.Go(func() error {
		logger.Info().
			Str("listen_addr", cfg.ListenAddr).
			Bool("headless", cfg.Headless).
			Str("db_path", cfg.DBPath).
			Msg("uiengine listening")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	grp.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return grp.Wait()
}

// preload opens files into the in-memory host before serving.
func preload(desktop *memhost.Desktop, paths []string, logger zerolog.Logger) {
	for _, p := range paths {
		if _, err := desktop.Open(p); err != nil {
			logger.Warn().Err(err).Str("path", p).Msg("preload failed")
			continue
		}
		logger.Debug().Str("path", p).Msg("preloaded")
	}
}
