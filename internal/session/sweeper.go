package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper is implemented by stores that need periodic cleanup of expired entries.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// SweeperFunc adapts a plain function to Sweeper.
type SweeperFunc func(ctx context.Context) (int, error)

// Sweep calls f.
func (f SweeperFunc) Sweep(ctx context.Context) (int, error) { return f(ctx) }

// RunSweeper calls Sweep every interval until ctx is cancelled.
func RunSweeper(ctx context.Context, s Sweeper, interval time.Duration, log *zap.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				log.Warn("session sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Debug("expired sessions removed", zap.Int("count", n))
			}
		}
	}
}
