package app

import (
	"context"
	"fmt"
	"net/http"

	"webhook-gateway/internal/apikeys"
	"webhook-gateway/internal/brokers"
	"webhook-gateway/internal/circuitbreaker"
	"webhook-gateway/internal/common/logging"
	"webhook-gateway/internal/config"
	"webhook-gateway/internal/identity"
	"webhook-gateway/internal/metrics"
	"webhook-gateway/internal/ratelimit"
	"webhook-gateway/internal/redis"
	"webhook-gateway/internal/retention"
	"webhook-gateway/internal/security"
	"webhook-gateway/internal/storage"
	"webhook-gateway/internal/triggers"
	"webhook-gateway/internal/webhooks"
)

// App holds all the application dependencies
type App struct {
	Config      *config.Config
	Storage     storage.Storage
	RedisClient *redis.Client
	Limiter     ratelimit.Limiter
	Security    *security.Checker
	Verifier    identity.Verifier
	APIKeys     *apikeys.Service
	Webhooks    *webhooks.Manager
	Metrics     *metrics.Collector
	Breakers    *circuitbreaker.Set
	Publisher   brokers.Publisher
	Dispatcher  *triggers.Dispatcher
	Scheduler   *retention.Scheduler
	Logger      logging.Logger

	handler        http.Handler
	stopBackground context.CancelFunc
}

// New creates a new application instance with all dependencies
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{
		Config:  cfg,
		Logger:  logging.GetGlobalLogger().WithFields(logging.String("component", "app")),
		Metrics: metrics.New(),
	}

	if err := app.initializeRedis(); err != nil {
		// Redis is optional, just log the error
		app.Logger.Warn("Redis initialization failed, continuing without Redis",
			logging.Err(err))
	}

	if err := app.initializeStorage(); err != nil {
		app.Cleanup()
		return nil, err
	}

	app.initializeRateLimiter()

	if err := app.initializeIdentity(ctx); err != nil {
		app.Cleanup()
		return nil, err
	}

	app.Security = security.NewChecker(app.Limiter, cfg.CIDRMode, app.Logger)
	app.APIKeys = apikeys.NewService(app.Storage, app.Limiter, app.Logger)
	app.Webhooks = webhooks.NewManager(app.Storage, app.Storage, nil, cfg.PublicBaseURL, app.Logger)

	if err := app.initializeTriggers(); err != nil {
		app.Cleanup()
		return nil, err
	}

	app.initializeRetention()
	app.handler = app.routes()

	return app, nil
}

// Handler is the fully wrapped HTTP handler
func (app *App) Handler() http.Handler {
	return app.handler
}

// Start launches the background workers: the dispatch pool and the audit
// retention schedule
func (app *App) Start(ctx context.Context) error {
	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	app.stopBackground = cancel

	app.Dispatcher.Start()
	if err := app.Scheduler.Start(bgCtx); err != nil {
		cancel()
		return fmt.Errorf("failed to start retention scheduler: %w", err)
	}
	return nil
}

// Shutdown drains queued dispatches and stops scheduled jobs. Call it after
// the HTTP server has stopped accepting deliveries.
func (app *App) Shutdown(ctx context.Context) error {
	if app.stopBackground != nil {
		app.stopBackground()
	}
	if app.Scheduler != nil {
		app.Scheduler.Stop()
	}

	var firstErr error
	if app.Dispatcher != nil {
		if err := app.Dispatcher.Stop(ctx); err != nil {
			app.Logger.Warn("Dispatch queue did not drain before shutdown deadline",
				logging.Err(err))
			firstErr = err
		} else {
			app.Logger.Info("Dispatcher stopped")
		}
	}
	if app.APIKeys != nil {
		app.APIKeys.Wait()
	}
	return firstErr
}

// Cleanup releases all resources
func (app *App) Cleanup() {
	if app.Publisher != nil {
		if err := app.Publisher.Close(); err != nil {
			app.Logger.Warn("Error closing broker publisher", logging.Err(err))
		}
	}
	if app.Storage != nil {
		if err := app.Storage.Close(); err != nil {
			app.Logger.Warn("Error closing storage", logging.Err(err))
		}
	}
	if app.RedisClient != nil {
		if err := app.RedisClient.Close(); err != nil {
			app.Logger.Warn("Error closing Redis client", logging.Err(err))
		}
	}
}
