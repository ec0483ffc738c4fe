package service

import (
	"context"
	"log/slog"
	"time"
)

// SweeperService deletes expired refresh token records in the background.
// Token checks never depend on it; it only keeps the table small.
type SweeperService struct {
	purger   ExpiredTokenPurger
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewSweeperService(purger ExpiredTokenPurger, interval time.Duration, logger *slog.Logger) *SweeperService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SweeperService{
		purger:   purger,
		interval: interval,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start runs until ctx is cancelled
func (w *SweeperService) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("token sweeper started", slog.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("token sweeper stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs a single purge pass and returns the number of deleted records
func (w *SweeperService) Sweep(ctx context.Context) int64 {
	n, err := w.purger.DeleteExpiredRefreshTokens(ctx, w.now())
	if err != nil {
		w.logger.Error("purge expired refresh tokens", slog.String("error", err.Error()))
		return 0
	}
	if n > 0 {
		w.logger.Debug("purged expired refresh tokens", slog.Int64("count", n))
	}
	return n
}
