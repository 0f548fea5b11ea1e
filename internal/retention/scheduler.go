package retention

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"webhook-gateway/internal/common/logging"
)

// Scheduler runs a Pruner on a standard five-field cron expression, e.g.
// "0 3 * * *" for daily at 3 AM. An empty schedule disables pruning.
type Scheduler struct {
	pruner *Pruner
	cron   *cron.Cron
	logger logging.Logger

	mu      sync.Mutex
	running bool
}

func NewScheduler(pruner *Pruner) *Scheduler {
	return &Scheduler{
		pruner: pruner,
		cron:   cron.New(),
		logger: pruner.logger,
	}
}

// Start schedules pruning until ctx is cancelled or Stop is called
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedule := s.pruner.config.Schedule
	if schedule == "" {
		s.logger.Info("Audit prune schedule not configured, skipping")
		return nil
	}
	if s.running {
		return nil
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("Retention scheduler started",
		logging.String("schedule", schedule),
		logging.Int("retention_days", s.pruner.config.RetentionDays))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	deleted, err := s.pruner.Prune(ctx)
	if err != nil {
		s.logger.Error("Scheduled audit prune failed", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("Scheduled audit prune completed", logging.Int64("deleted", deleted))
	}
}

// Stop waits for a running prune to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("Retention scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled prune, or nil when not scheduled
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
