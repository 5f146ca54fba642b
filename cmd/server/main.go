/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the advance-request server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from environment
  2. Initialize structured logging
  3. Initialize SQLite store
  4. Wire the lifecycle engine
  5. Configure HTTP router
  6. Start server with graceful shutdown

CONFIGURATION:
  Environment variables with the ADVANCE_ prefix:
    ADVANCE_ADDR             Listen address (default :8080)
    ADVANCE_DB_PATH          SQLite database path (default anticipos.db,
                             use ":memory:" for in-memory)
    ADVANCE_WINDOW_FROM_DAY  First day of the solicitation window
    ADVANCE_WINDOW_TO_DAY    Last day of the solicitation window
    ADVANCE_LOG_LEVEL        zerolog level (default info)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/advance-engine/anticipo"
	"github.com/warp/advance-engine/api"
	"github.com/warp/advance-engine/config"
	"github.com/warp/advance-engine/store/sqlite"
)

func main() {
	// Configuration
	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("invalid configuration")
	}

	// Logging
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	// Store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer store.Close()

	// Engine
	engine := anticipo.NewEngine(store, store)
	engine.Audit = store
	engine.Validator = anticipo.Validator{Window: cfg.Window()}
	engine.Log = log

	// Handler + router
	handler := api.NewHandler(store, engine, log)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", cfg.Addr).
			Int("window_from", cfg.WindowFromDay).
			Int("window_to", cfg.WindowToDay).
			Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
