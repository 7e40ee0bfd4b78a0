package callback

import (
	"context"
	"errors"
	"time"

	xerrors "callback-queue-service/internal/pkg/errors"

	"go.uber.org/zap"
)

const DefaultTickInterval = time.Minute

type ticker interface {
	Tick(ctx context.Context) (int, error)
}

// TickScheduler drives the wait-time decay on a fixed interval.
type TickScheduler struct {
	queue    ticker
	interval time.Duration
	logger   *zap.Logger
}

func NewTickScheduler(queue ticker, interval time.Duration, logger *zap.Logger) *TickScheduler {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TickScheduler{queue: queue, interval: interval, logger: logger}
}

// Run ticks until ctx is cancelled or the queue stops. No tick fires after
// Run returns.
func (t *TickScheduler) Run(ctx context.Context) error {
	tk := time.NewTicker(t.interval)
	defer tk.Stop()

	t.logger.Info("callback tick scheduler started", zap.Duration("interval", t.interval))

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("callback tick scheduler stopped")
			return nil
		case <-tk.C:
			decayed, err := t.queue.Tick(ctx)
			switch {
			case err == nil:
				if decayed > 0 {
					t.logger.Debug("decayed wait estimates", zap.Int("requests", decayed))
				}
			case errors.Is(err, xerrors.ErrQueueStopped):
				return nil
			case errors.Is(err, context.Canceled):
				return nil
			default:
				t.logger.Error("callback tick failed", zap.Error(err))
			}
		}
	}
}
