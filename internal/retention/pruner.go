// Package retention deletes audit entries older than the retention window
// on a cron schedule.
package retention

import (
	"context"
	"fmt"
	"time"

	"webhook-gateway/internal/common/logging"
	"webhook-gateway/internal/metrics"
	"webhook-gateway/internal/storage"
)

const (
	DefaultRetentionDays = 30
	DefaultSchedule      = "0 3 * * *"

	lockKey = "audit-prune"
	lockTTL = 10 * time.Minute
)

// Locker keeps two gateway instances from pruning at once
type Locker interface {
	AcquireLock(ctx context.Context, key string, expiration time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

type Config struct {
	RetentionDays int
	Schedule      string
}

// Pruner removes expired audit entries
type Pruner struct {
	audit   storage.AuditStore
	config  Config
	locker  Locker
	metrics *metrics.Collector
	logger  logging.Logger
	now     func() time.Time
}

// NewPruner creates a pruner. locker and collector may be nil.
func NewPruner(audit storage.AuditStore, config Config, locker Locker, collector *metrics.Collector, logger logging.Logger) *Pruner {
	if config.RetentionDays <= 0 {
		config.RetentionDays = DefaultRetentionDays
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Pruner{
		audit:   audit,
		config:  config,
		locker:  locker,
		metrics: collector,
		logger:  logger.WithFields(logging.String("component", "retention")),
		now:     time.Now,
	}
}

// Cutoff is the timestamp before which entries are deleted
func (p *Pruner) Cutoff() time.Time {
	return p.now().UTC().AddDate(0, 0, -p.config.RetentionDays)
}

// Prune deletes expired entries and returns how many were removed. It
// returns 0 without touching the store when another instance holds the lock.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	if p.locker != nil {
		acquired, err := p.locker.AcquireLock(ctx, lockKey, lockTTL)
		if err != nil {
			return 0, fmt.Errorf("acquire prune lock: %w", err)
		}
		if !acquired {
			p.logger.Debug("Audit prune already running elsewhere, skipping")
			return 0, nil
		}
		defer func() {
			if err := p.locker.ReleaseLock(context.WithoutCancel(ctx), lockKey); err != nil {
				p.logger.Warn("Failed to release prune lock", logging.Err(err))
			}
		}()
	}

	cutoff := p.Cutoff()
	deleted, err := p.audit.DeleteAuditBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete audit entries: %w", err)
	}
	p.metrics.AuditPruned(deleted)
	return deleted, nil
}
