package services

import (
	"context"
	"time"

	"github.com/ghuser/lendingclub/pkg/logger"
)

// DayAdvancer is the clock-facing side of LendingService.
type DayAdvancer interface {
	AdvanceDay(ctx context.Context) (DayReport, error)
}

// Ticker advances the lending day on a fixed interval. It backs CLOCK_MODE=ticker.
type Ticker struct {
	clock    DayAdvancer
	interval time.Duration
	log      logger.Logger
}

// NewTicker returns a Ticker that calls clock.AdvanceDay every interval.
func NewTicker(clock DayAdvancer, interval time.Duration, log logger.Logger) *Ticker {
	return &Ticker{clock: clock, interval: interval, log: log}
}

// Run blocks until ctx is cancelled. A failed advance is logged and the next
// tick tries again.
func (t *Ticker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	ctx = logger.ContextWith(ctx, "clock", "ticker")

	t.log.InfoContext(ctx, "settlement ticker started", "interval", t.interval)
	for {
		select {
		case <-ctx.Done():
			t.log.Info("settlement ticker stopped")
			return
		case <-ticker.C:
			report, err := t.clock.AdvanceDay(ctx)
			if err != nil {
				t.log.ErrorContext(ctx, "scheduled day advance failed", "error", err)
				continue
			}
			t.log.DebugContext(ctx, "scheduled day advance", "day", report.Day)
		}
	}
}
