package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"whatsrelay/internal/constants"
	"whatsrelay/internal/metrics"
)

// Scheduler periodically deletes messages older than the retention window.
type Scheduler struct {
	store         MessageStore
	retentionDays int
	intervalHours int
	logger        *logrus.Logger
	stopCh        chan struct{}
	stopOnce      sync.Once
	now           func() time.Time
}

func NewScheduler(store MessageStore, retentionDays, intervalHours int, logger *logrus.Logger) *Scheduler {
	if intervalHours <= 0 {
		intervalHours = constants.DefaultCleanupIntervalHours
	}
	return &Scheduler{
		store:         store,
		retentionDays: retentionDays,
		intervalHours: intervalHours,
		logger:        logger,
		stopCh:        make(chan struct{}),
		now:           time.Now,
	}
}

// Enabled reports whether a retention window is configured.
func (s *Scheduler) Enabled() bool {
	return s.retentionDays > 0
}

// Start runs one cleanup immediately and then one per interval until ctx is
// done or Stop is called. It returns at once when retention is disabled.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.Enabled() {
		s.logger.Debug("Retention disabled, cleanup scheduler not started")
		return
	}

	ticker := time.NewTicker(time.Duration(s.intervalHours) * time.Hour)
	defer ticker.Stop()

	s.logger.WithField("retention_days", s.retentionDays).Info("Starting cleanup scheduler")

	s.runCleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler context cancelled, stopping")
			return
		case <-s.stopCh:
			s.logger.Info("Scheduler stop signal received, stopping")
			return
		case <-ticker.C:
			s.runCleanup(ctx)
		}
	}
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *Scheduler) runCleanup(ctx context.Context) {
	cutoff := s.now().UTC().AddDate(0, 0, -s.retentionDays)
	s.logger.WithField("cutoff", cutoff.Format(time.RFC3339)).Info("Running scheduled cleanup")

	deleted, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.WithError(err).Error("Failed to cleanup old messages")
		return
	}

	metrics.RecordRetentionDeleted(deleted)
	s.logger.WithField(LogFieldCount, deleted).Info("Cleanup completed")
}
