package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/servicecheck/internal/app"
	"github.com/hamed0406/servicecheck/internal/config"
	"github.com/hamed0406/servicecheck/internal/httpapi"
	apimw "github.com/hamed0406/servicecheck/internal/httpapi/middleware"
	"github.com/hamed0406/servicecheck/internal/logging"
	"github.com/hamed0406/servicecheck/internal/registry"
	"github.com/hamed0406/servicecheck/internal/repo/memory"
	"github.com/hamed0406/servicecheck/internal/scheduler"
	"github.com/hamed0406/servicecheck/internal/stream"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: ./servicecheck.yaml if present)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.NewLogger(logging.Options{Dir: cfg.Log.Dir, Level: cfg.Log.Level, Console: cfg.Log.Console})
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	reg, err := registry.Load(cfg.Registry.Path)
	if err != nil {
		logger.Fatal("registry_load_failed", zap.String("path", cfg.Registry.Path), zap.Error(err))
	}
	logger.Info("registry_loaded",
		zap.String("path", cfg.Registry.Path),
		zap.Int("areas", len(reg.Areas())),
		zap.Int("targets", reg.Len()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := memory.New()
	if err := store.Load(ctx, reg.Targets(), true); err != nil {
		logger.Fatal("store_load_failed", zap.Error(err))
	}

	orch, err := app.NewOrchestrator(cfg, logger, store)
	if err != nil {
		logger.Fatal("orchestrator_init_failed", zap.Error(err))
	}
	hub := stream.NewHub(logger)
	loop := scheduler.NewLoop(logger, orch, store, app.NewNotifier(cfg.Notify, logger), hub, scheduler.LoopConfig{
		Interval:        cfg.Scheduler.Interval,
		Enabled:         cfg.Scheduler.Enabled,
		NotifyOnStartup: cfg.Notify.OnStartup,
	})

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = loop.Run(ctx)
	}()

	api := httpapi.NewServer(logger, store, orch, loop, hub)
	keys := apimw.Keys{Public: cfg.API.PublicKeys, Admin: cfg.API.AdminKeys}
	if !keys.Enabled() {
		logger.Warn("api_keys_disabled")
	}
	srv := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           api.Router(keys, cfg.API.AllowedOrigins, cfg.API.RPM, cfg.API.Burst),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("api_shutdown_error", zap.Error(err))
		}
	}()

	logger.Info("api_listen", zap.String("addr", cfg.API.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("api_serve_failed", zap.Error(err))
	}
	<-loopDone
	logger.Info("shutdown_complete")
}
