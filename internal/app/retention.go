package app

import (
	"webhook-gateway/internal/common/logging"
	"webhook-gateway/internal/locks"
	"webhook-gateway/internal/retention"
)

func (app *App) initializeRetention() {
	var locker retention.Locker
	if app.RedisClient != nil {
		redlock, err := locks.NewRedsyncLocker(app.RedisClient)
		if err != nil {
			app.Logger.Warn("Distributed prune lock unavailable", logging.Err(err))
		} else {
			locker = redlock
			app.Logger.Info("Distributed Locks: Enabled")
		}
	}

	pruner := retention.NewPruner(app.Storage, retention.Config{
		RetentionDays: app.Config.AuditRetentionDays,
		Schedule:      app.Config.AuditPruneSchedule,
	}, locker, app.Metrics, app.Logger)
	app.Scheduler = retention.NewScheduler(pruner)
}
