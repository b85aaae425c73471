package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"

	"smartrag-console/internal/api"
	"smartrag-console/internal/charts"
	"smartrag-console/internal/chat"
	"smartrag-console/internal/config"
	"smartrag-console/internal/gateway"
	"smartrag-console/internal/ingest"
	"smartrag-console/internal/session"
	"smartrag-console/internal/state"
)

var (
	configPath = flag.String("config", "", "Path to config file")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// In-process event bus carrying state-changed notifications to the
	// rendering layer. Buffered so a slow event consumer never stalls a
	// state mutation.
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermill.NewStdLogger(false, false))
	defer pubSub.Close()

	// Orchestration layer
	backend := gateway.NewClient(cfg.Backend.BaseURL, cfg.Timeouts, logger)
	store := state.NewStore(pubSub, logger)
	sessions := session.NewController(backend, store, logger)
	lister := charts.FSLister{}
	browser := charts.NewBrowser(lister)
	pipeline := ingest.NewPipeline(backend, sessions, store, cfg.Storage.Uploads, logger)
	orchestrator := chat.NewOrchestrator(backend, sessions, store, lister, logger)

	// Warn early when the backend is down; the console still starts and
	// every view just renders its empty state.
	probeCtx, probeCancel := context.WithTimeout(context.Background(), cfg.Timeouts.Health)
	if err := backend.Health(probeCtx); err != nil {
		logger.Warn("RAG backend not reachable at startup", zap.String("base_url", cfg.Backend.BaseURL), zap.Error(err))
	}
	probeCancel()

	// Setup router
	handler := api.NewHandler(backend, sessions, orchestrator, pipeline, browser, store, pubSub)
	router := api.SetupRouter(handler, api.RouterConfig{
		AllowOrigins: []string{"*"},
	})

	// Create HTTP server. No WriteTimeout: uploads block for the full
	// per-file processing window and /api/events streams indefinitely.
	srv := &http.Server{
		Addr:        cfg.Address(),
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting Smart RAG console",
			zap.String("address", cfg.Address()),
			zap.String("backend", cfg.Backend.BaseURL),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down console...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Console exited")
}
