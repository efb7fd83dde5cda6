package audit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RetentionConfig holds audit retention configuration.
type RetentionConfig struct {
	// Days is how long events are kept. Zero disables pruning.
	Days int

	// Interval between sweeps. Defaults to 24h.
	Interval time.Duration
}

// RunRetention periodically deletes events older than the configured
// retention window until the context is canceled. Intended to run in its own
// goroutine from the server main.
func RunRetention(ctx context.Context, store *Store, cfg RetentionConfig, logger *zap.Logger) {
	if cfg.Days <= 0 {
		return
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().AddDate(0, 0, -cfg.Days)
			deleted, err := store.DeleteOlderThan(cutoff)
			if err != nil {
				logger.Error("audit retention sweep failed", zap.Error(err))
				continue
			}
			if deleted > 0 {
				logger.Info("audit retention sweep",
					zap.Int64("deleted", deleted),
					zap.Time("cutoff", cutoff),
				)
			}
		}
	}
}
