package app

import (
	"time"

	"webhook-gateway/internal/common/logging"
	"webhook-gateway/internal/ratelimit"
	"webhook-gateway/internal/redis"
)

func (app *App) initializeRedis() error {
	if app.Config.RedisAddress == "" {
		app.Logger.Info("Redis: Not configured (local rate limiting, no prune lock)")
		return nil
	}

	client, err := redis.NewClient(&redis.Config{
		Address:  app.Config.RedisAddress,
		Password: app.Config.RedisPassword,
		DB:       app.Config.RedisDB,
		PoolSize: app.Config.RedisPoolSize,
	})
	if err != nil {
		return err
	}

	app.RedisClient = client
	app.Logger.Info("Redis: Connected", logging.String("address", app.Config.RedisAddress))
	return nil
}

// how often the local limiter drops keys whose window has fully passed
const localLimiterSweep = time.Minute

func (app *App) initializeRateLimiter() {
	if app.Config.RateLimitBackend == "redis" && app.RedisClient != nil {
		app.Limiter = ratelimit.NewRedisLimiter(app.RedisClient, "")
		app.Logger.Info("Rate Limiting: Redis sliding window")
		return
	}
	if app.Config.RateLimitBackend == "redis" {
		app.Logger.Warn("Rate Limiting: Redis unavailable, falling back to local limiter")
	}
	app.Limiter = ratelimit.NewLocalLimiter(localLimiterSweep)
	app.Logger.Info("Rate Limiting: local sliding window")
}
