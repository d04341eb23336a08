package auth

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically deletes blacklist rows whose tokens have expired.
// Expired tokens already fail signature-side validation, so the sweep is
// pure housekeeping and safe to run on several instances at once.
type Sweeper struct {
	revoker  *Revoker
	interval time.Duration
	log      *zap.Logger
}

// NewSweeper constructs a Sweeper. A non-positive interval defaults to one
// hour.
func NewSweeper(revoker *Revoker, interval time.Duration, log *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{revoker: revoker, interval: interval, log: log}
}

// Run sweeps on a ticker until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.revoker.CleanupExpired(ctx)
			if err != nil {
				s.log.Warn("blacklist sweep failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				s.log.Info("blacklist sweep", zap.Int64("removed", removed))
			}
		}
	}
}
