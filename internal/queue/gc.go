package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Defaults for the dead-letter garbage collector
const (
	DefaultGCInterval  = time.Hour
	DefaultGCRetention = 24 * time.Hour
)

// GarbageCollector periodically drops dead-lettered analysis jobs older than
// retention, so images that could never be analyzed do not pile up in the DLQ
type GarbageCollector struct {
	dlqPurger DLQPurger
	interval  time.Duration
	retention time.Duration
	logger    *zap.Logger
}

// NewGarbageCollector creates a garbage collector. Non-positive durations
// fall back to DefaultGCInterval and DefaultGCRetention.
func NewGarbageCollector(purger DLQPurger, interval, retention time.Duration, logger *zap.Logger) *GarbageCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultGCInterval
	}
	if retention <= 0 {
		retention = DefaultGCRetention
	}
	return &GarbageCollector{
		dlqPurger: purger,
		interval:  interval,
		retention: retention,
		logger:    logger,
	}
}

// Start collects once, then every interval until ctx is cancelled
func (gc *GarbageCollector) Start(ctx context.Context) error {
	ticker := time.NewTicker(gc.interval)
	defer ticker.Stop()
	for {
		if err := gc.collect(ctx); err != nil && ctx.Err() == nil {
			gc.logger.Warn("dlq_gc_failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// collect purges DLQ messages older than retention.
func (gc *GarbageCollector) collect(ctx context.Context) error {
	if gc.dlqPurger == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	n, err := gc.dlqPurger.PurgeOlderThan(ctx, gc.retention)
	if err != nil {
		return fmt.Errorf("DLQ purge: %w", err)
	}
	if n > 0 {
		gc.logger.Info("dlq_gc_purged", zap.Int("messages", n), zap.Duration("retention", gc.retention))
	}
	return nil
}
