package conversation

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically purges expired threads so the store's disk footprint
// stays bounded even when nothing reads the expired threads. Lazy expiry on
// access remains the correctness mechanism; the sweep only reclaims space.
type Sweeper struct {
	store    *Store
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a sweeper ticking at interval.
func NewSweeper(store *Store, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{store: store, interval: interval, logger: logger}
}

// Run blocks until ctx is canceled, purging expired threads on each tick.
// Callers must track the goroutine with a WaitGroup.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.store.CleanupExpired(ctx); err != nil {
				s.logger.Warn("conversation sweep failed", "error", err)
			}
		}
	}
}
