// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openpulse/openpulse-go/internal/application/container"
	"github.com/openpulse/openpulse-go/internal/infrastructure/cleanup"
	"github.com/openpulse/openpulse-go/internal/infrastructure/observability/logging"
	"github.com/openpulse/openpulse-go/internal/infrastructure/observability/metrics"
	"github.com/openpulse/openpulse-go/internal/infrastructure/persistence/columnar"
	"github.com/openpulse/openpulse-go/internal/infrastructure/persistence/database"
	"github.com/openpulse/openpulse-go/internal/presentation/http/server"
	"github.com/openpulse/openpulse-go/pkg/config"
)

// Initialize performs the complete startup sequence and blocks until shutdown
func Initialize() error {
	setupLogging()

	start := time.Now().UTC()

	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	log.Println("OpenPulse starting...")

	// Step 1: Create the channeled logger
	loggerConfig := logging.DefaultLoggerConfig()
	loggerConfig.OutputToFile = config.LogToFile
	loggerConfig.LogDirectory = config.LogDirectory
	logger, err := logging.NewChanneledLogger(loggerConfig)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	if config.LogVerbose {
		for _, ch := range []logging.Channel{logging.ChannelTrack, logging.ChannelSession, logging.ChannelDebug} {
			if err := logger.SetChannelLevel(ch, slog.LevelDebug); err != nil {
				return fmt.Errorf("failed to set %s channel level: %w", ch, err)
			}
		}
	}
	logger.Startup().Info("Channeled logging initialized", "verbose", config.LogVerbose)

	// Step 2: Register Prometheus metrics
	metrics.Register()

	// Step 3: Connect the relational store and ensure its schema
	logger.Startup().Info("Connecting relational store...",
		"driver", config.DBDriver, "dataSource", config.DBDataSource)
	db, err := database.NewConnectionWithLogger(config.DBDriver, config.DBDataSource, logger)
	if err != nil {
		return fmt.Errorf("failed to connect relational store: %w", err)
	}
	defer db.Close()
	if err := db.EnsureSchema(); err != nil {
		return fmt.Errorf("failed to ensure relational schema: %w", err)
	}
	logger.Startup().Info("Relational store ready")

	// Step 4: Connect the columnar store and ensure its schema
	logger.Startup().Info("Connecting columnar store...", "addr", config.ClickHouseAddr)
	store, err := columnar.NewStore(ctx, logger)
	if err != nil {
		return fmt.Errorf("failed to connect columnar store: %w", err)
	}
	defer store.Close()
	if err := store.Setup(ctx); err != nil {
		return fmt.Errorf("failed to set up columnar schema: %w", err)
	}
	logger.Startup().Info("Columnar store ready")

	// Step 5: Create dependency injection container
	logger.Startup().Info("Initializing dependency injection container...")
	appContainer := container.NewContainer(db, store, logger)
	logger.Startup().Info("Dependency injection container created with singleton services")

	// Step 6: Start the event queue flush loop
	appContainer.EventQueue.Start()

	// Step 7: Start the session reaper
	reaper := cleanup.NewSessionReaper(
		appContainer.SessionRepo,
		store,
		logger,
		config.SessionIdleTTL,
		config.SessionReaperInterval,
	)
	go reaper.Run(ctx)

	// Step 7b: Periodically drop stale performance markers
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				appContainer.PerfTracker.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()

	// Step 8: Start HTTP server
	logger.Startup().Info("Starting HTTP server...")
	httpServer := server.New(config.Port, appContainer)

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.System().Info("Starting HTTP server", "address", ":"+config.Port)
		if err := httpServer.Start(); err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
		}
	}()

	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start),
		"port", config.Port)

	// Wait for shutdown signal
	<-gracefulShutdown
	logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")

	shutdownStart := time.Now()

	// Stop accepting requests first, then stop the background workers.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Shutdown().Info("Stopping HTTP server...")
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	cancelBackgroundTasks()

	// Drain the queue so buffered events reach the columnar store.
	logger.Shutdown().Info("Draining event queue...")
	appContainer.EventQueue.Stop()

	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))

	return nil
}

// setupLogging configures application logging
func setupLogging() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
