package store

import (
	"context"
	"log/slog"
	"time"
)

const retentionSweepInterval = 1 * time.Hour

// StartRetentionWorker runs a background goroutine that periodically
// removes progress records whose device identity cookie has long expired.
// A zero ttl disables the sweep.
func StartRetentionWorker(ctx context.Context, repo Repository, ttl time.Duration) {
	if ttl <= 0 {
		slog.Info("Progress retention sweep disabled")
		return
	}

	ticker := time.NewTicker(retentionSweepInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Retention worker started", "interval", retentionSweepInterval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				sweepStaleProgress(ctx, repo, ttl)
			case <-ctx.Done():
				slog.Info("Retention worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepStaleProgress(ctx context.Context, repo Repository, ttl time.Duration) {
	deleted, err := repo.CleanupStaleProgress(ctx, ttl)
	if err != nil {
		slog.Error("Retention worker failed to cleanup stale progress", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Retention worker removed stale progress", "count", deleted)
	}
}
