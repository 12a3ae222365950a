package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Syncer applies settlement outcomes for pending reservations.
type Syncer interface {
	SyncPending(ctx context.Context) (int, error)
}

// SettlementSyncJob returns a cron job that runs one sync pass bounded by
// timeout.
func SettlementSyncJob(s Syncer, timeout time.Duration, logger zerolog.Logger) func(context.Context) {
	return func(ctx context.Context) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		start := time.Now()
		settled, err := s.SyncPending(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("settlement sync failed")
			return
		}
		ev := logger.Debug()
		if settled > 0 {
			ev = logger.Info()
		}
		ev.Int("settled", settled).Dur("duration", time.Since(start)).Msg("settlement sync")
	}
}
