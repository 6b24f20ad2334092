package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/craftops/modserver/internal/config"
	"github.com/craftops/modserver/internal/handler"
	"github.com/craftops/modserver/internal/ledger"
	"github.com/craftops/modserver/internal/logger"
	"github.com/craftops/modserver/internal/minecraft"
	"github.com/craftops/modserver/internal/registry"
	"github.com/craftops/modserver/internal/service"
	"github.com/craftops/modserver/internal/store"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.InitLogger(cfg)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Probe the server environment (game version + loader)
	env, err := minecraft.Probe(cfg, log)
	if err != nil {
		log.Fatal("failed to probe server environment", zap.Error(err))
	}

	// Open the installed-state ledger
	led, err := ledger.Open(cfg.StatePath(), cfg.Minecraft.BackupState, log)
	if err != nil {
		log.Fatal("failed to open ledger", zap.Error(err))
	}

	// Registry client
	client := registry.NewClient(registry.Options{
		BaseURL:   cfg.Registry.BaseURL,
		UserAgent: cfg.Registry.UserAgent,
		CacheTTL:  cfg.Registry.CacheTTL(),
		Timeout:   cfg.Registry.Timeout(),
		RPS:       cfg.Registry.RPS,
		Burst:     cfg.Registry.Burst,
	}, log)

	// Mod manager
	manager, err := service.NewManager(cfg, log, client, led, env)
	if err != nil {
		log.Fatal("failed to create mod manager", zap.Error(err))
	}

	// Durable audit trail for reconciliation outcomes
	audit, err := store.NewAuditStore(cfg.DataPath(), log)
	if err != nil {
		log.Fatal("failed to open audit store", zap.Error(err))
	}
	defer audit.Close()

	// Reconciliation scheduler
	updater := service.NewUpdater(cfg, log, manager, led, audit)
	updater.Start()

	// Initialize API handler
	api := handler.NewAPI(cfg, log, manager, updater)
	defer api.Close()

	// Create router
	r := chi.NewRouter()
	api.RegisterRoutes(r)

	// Create server
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		log.Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown: stop taking requests, then join any in-flight
	// reconciliation batch before exiting.
	log.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	updater.Stop()

	log.Info("server exited properly")
}
