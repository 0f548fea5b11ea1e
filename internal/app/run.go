package app

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"webhook-gateway/internal/common/logging"
	"webhook-gateway/internal/config"
	"webhook-gateway/internal/server"
)

const shutdownTimeout = 30 * time.Second

// Run is the main entry point for the application
func Run() error {
	// Load environment variables
	_ = godotenv.Load()

	// Initialize logging
	logging.InitGlobalLogger()
	defer logging.MustSync()

	logging.Info("Starting webhook gateway",
		logging.Int("cpus", runtime.NumCPU()),
		logging.String("version", "1.0.0"),
	)

	// Load and validate configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logging.Error("Configuration validation failed", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize application
	app, err := New(ctx, cfg)
	if err != nil {
		logging.Error("Failed to initialize application", err)
		return err
	}
	defer app.Cleanup()

	if err := app.Start(ctx); err != nil {
		logging.Error("Failed to start background workers", err)
		return err
	}

	srv := server.New(app.Handler(), cfg.Port, cfg.TLSCertFile, cfg.TLSKeyFile, app.Logger)
	if err := srv.Start(); err != nil {
		logging.Error("Server failed to start", err)
		_ = app.Shutdown(context.Background())
		return err
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info("Shutting down server...")
	case serveErr = <-srv.Errors():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stop accepting deliveries before draining the dispatch queue
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("Server forced to shutdown", err)
	}
	if err := app.Shutdown(shutdownCtx); err != nil {
		logging.Warn("Error during app shutdown", logging.Err(err))
	}

	if serveErr != nil {
		return serveErr
	}
	logging.Info("Server exited")
	return nil
}
