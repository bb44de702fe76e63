// Package cleanup prunes analytics events past their retention period.
package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// Pruner deletes events recorded before a cutoff
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Cleaner handles periodic pruning of old analytics events
type Cleaner struct {
	store     Pruner
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

// NewCleaner creates a new retention worker
func NewCleaner(store Pruner, interval, retention time.Duration) *Cleaner {
	if interval <= 0 {
		interval = time.Hour
	}

	return &Cleaner{
		store:     store,
		interval:  interval,
		retention: retention,
		now:       time.Now,
	}
}

// Start begins the cleanup worker in a goroutine.
// With no retention configured nothing is ever pruned and no worker starts.
func (c *Cleaner) Start(ctx context.Context) {
	if c.retention <= 0 {
		slog.Info("analytics retention disabled, cleanup worker not started")
		return
	}
	go c.run(ctx)
}

// run is the main loop for the cleanup worker
func (c *Cleaner) run(ctx context.Context) {
	slog.Info("cleanup worker started", "interval", c.interval, "retention", c.retention)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Run immediately on start
	c.cleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

// cleanup removes events older than the retention period
func (c *Cleaner) cleanup(ctx context.Context) int64 {
	cutoff := c.now().Add(-c.retention)
	slog.Debug("running cleanup cycle", "cutoff", cutoff)

	removed, err := c.store.PruneBefore(ctx, cutoff)
	if err != nil {
		slog.Error("failed to prune analytics events", "error", err, "cutoff", cutoff)
		return 0
	}

	if removed == 0 {
		slog.Debug("no expired analytics events found")
		return 0
	}

	slog.Info("expired analytics events deleted", "count", removed, "cutoff", cutoff)
	return removed
}
