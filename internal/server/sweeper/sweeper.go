// Package sweeper periodically removes expired refresh and confirmation
// tokens. A pass is idempotent; a failed pass is logged and the next tick
// tries again.
package sweeper

import (
	"context"
	"time"

	"github.com/dmitrijs2005/utask/internal/logging"
	"github.com/dmitrijs2005/utask/internal/server/metrics"
	"github.com/jonboulle/clockwork"
)

type RefreshPurger interface {
	DeleteExpiredBefore(ctx context.Context, t time.Time) (int64, error)
}

type ConfirmationPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type Sweeper struct {
	refresh  RefreshPurger
	confirm  ConfirmationPurger
	interval time.Duration
	clock    clockwork.Clock
	logger   logging.Logger
	metrics  *metrics.Metrics
}

func New(refresh RefreshPurger, confirm ConfirmationPurger, interval time.Duration, clock clockwork.Clock, logger logging.Logger, m *metrics.Metrics) *Sweeper {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Sweeper{
		refresh:  refresh,
		confirm:  confirm,
		interval: interval,
		clock:    clock,
		logger:   logger.With("module", "sweeper"),
		metrics:  m,
	}
}

// Result is what a single pass removed.
type Result struct {
	Refresh      int64
	Confirmation int64
}

// Run sweeps on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info(ctx, "sweeper started", "interval", s.interval.String())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "sweeper stopped")
			return nil
		case <-ticker.Chan():
			_, _ = s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. Both stores are attempted even if the first fails;
// the first error is returned.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	now := s.clock.Now()

	var (
		res      Result
		firstErr error
	)

	n, err := s.refresh.DeleteExpiredBefore(ctx, now)
	if err != nil {
		s.logger.Error(ctx, "refresh token sweep failed", "error", err)
		firstErr = err
	} else {
		res.Refresh = n
		s.metrics.Swept("refresh", n)
	}

	n, err = s.confirm.DeleteExpired(ctx, now)
	if err != nil {
		s.logger.Error(ctx, "confirmation token sweep failed", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	} else {
		res.Confirmation = n
		s.metrics.Swept("confirmation", n)
	}

	s.metrics.SweepFinished(firstErr == nil)
	if firstErr == nil {
		s.logger.Debug(ctx, "sweep finished", "refresh", res.Refresh, "confirmation", res.Confirmation)
	}

	return res, firstErr
}
