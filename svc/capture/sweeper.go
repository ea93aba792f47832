package capture

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/fitcapture/pkg/logger"
)

// Sweeper runs Manager.Sweep on a fixed interval until its context ends.
type Sweeper struct {
	m        *Manager
	interval time.Duration
	log      *slog.Logger
}

func NewSweeper(m *Manager, interval time.Duration) *Sweeper {
	return &Sweeper{m: m, interval: interval, log: m.log.With(logger.Component("capture.sweeper"))}
}

// Run sweeps once immediately and then on every tick. A zero interval
// disables the loop; Run then blocks until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.log.InfoContext(ctx, "sweeper disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.InfoContext(ctx, "sweeper shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	res, err := s.m.Sweep(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.ErrorContext(ctx, "sweep failed", logger.Error(err))
		}
		return
	}
	if res.Expired > 0 || res.Reconciled > 0 {
		s.log.InfoContext(ctx, "sweep done",
			slog.Int("expired", res.Expired), slog.Int("reconciled", res.Reconciled))
	}
}
