package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/viralforge/marketplace-ledger/internal/ports"
)

type Sweeper interface {
	AutoAcceptDue(ctx context.Context) (int, error)
	SweepPayouts(ctx context.Context) (int, error)
}

// SweepWorker auto-accepts stale deliveries and batches due payouts. With a
// locker, only one replica sweeps per tick.
type SweepWorker struct {
	logger   *slog.Logger
	sweeper  Sweeper
	locker   ports.Locker
	interval time.Duration
}

func NewSweepWorker(logger *slog.Logger, sweeper Sweeper, locker ports.Locker, interval time.Duration) *SweepWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SweepWorker{logger: logger, sweeper: sweeper, locker: locker, interval: interval}
}

func (w *SweepWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if err := w.processOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.ErrorContext(ctx, "sweep iteration failed",
				"module", "events.sweep_worker",
				"layer", "adapter",
				"operation", "process_once",
				"outcome", "failure",
				"error", err,
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *SweepWorker) processOnce(ctx context.Context) error {
	if w.locker != nil {
		release, err := w.locker.TryLock(ctx, "ledger-sweep", w.interval)
		if err != nil {
			return err
		}
		if release == nil {
			return nil
		}
		defer release(context.WithoutCancel(ctx))
	}

	accepted, acceptErr := w.sweeper.AutoAcceptDue(ctx)
	batched, payoutErr := w.sweeper.SweepPayouts(ctx)
	if err := errors.Join(acceptErr, payoutErr); err != nil {
		return err
	}
	if accepted > 0 || batched > 0 {
		w.logger.InfoContext(ctx, "sweep completed",
			"module", "events.sweep_worker",
			"layer", "adapter",
			"operation", "process_once",
			"outcome", "success",
			"auto_accepted", accepted,
			"payouts_created", batched,
		)
	}
	return nil
}
