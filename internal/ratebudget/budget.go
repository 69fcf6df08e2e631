package ratebudget

import (
	"context"
	"sync"
	"time"

	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/metrics"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/telemetry"
)

const (
	DefaultCeiling = 240
	DefaultWindow  = time.Minute

	// slack keeps a freshly expired stamp from being re-counted due to
	// timer granularity.
	slack = 100 * time.Millisecond
)

// Budget enforces a rolling-window ceiling on outbound LLM calls. Every
// call attempt acquires a slot first; acquisition blocks until the window
// has room. One Budget is shared by all workers of a process.
type Budget struct {
	mu      sync.Mutex
	stamps  []time.Time
	ceiling int
	window  time.Duration
	granted int64

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(ceiling int, window time.Duration) *Budget {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Budget{
		ceiling: ceiling,
		window:  window,
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// Acquire blocks until a slot is free within the rolling window or ctx is
// done. The check and the grant happen under one lock so the in-window
// count never exceeds the ceiling, regardless of caller concurrency.
func (b *Budget) Acquire(ctx context.Context) error {
	if b == nil {
		return nil
	}
	waited := false
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		b.mu.Lock()
		now := b.now()
		b.prune(now)
		if len(b.stamps) < b.ceiling {
			b.stamps = append(b.stamps, now)
			b.granted++
			b.mu.Unlock()
			return nil
		}
		wait := b.window - now.Sub(b.stamps[0]) + slack
		b.mu.Unlock()

		if !waited {
			waited = true
			metrics.IncRateBudgetWait()
			telemetry.Debug("rate budget exhausted, waiting", map[string]any{
				"ceiling": b.ceiling,
				"waitMs":  wait.Milliseconds(),
			})
		}
		if wait <= 0 {
			continue
		}
		if err := b.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Granted reports how many acquisitions completed since construction.
func (b *Budget) Granted() int64 {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.granted
}

// InWindow reports how many grants are still inside the rolling window.
func (b *Budget) InWindow() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prune(b.now())
	return len(b.stamps)
}

// prune drops stamps older than the window. Callers hold b.mu.
func (b *Budget) prune(now time.Time) {
	cut := 0
	for cut < len(b.stamps) && now.Sub(b.stamps[cut]) >= b.window {
		cut++
	}
	if cut > 0 {
		b.stamps = append(b.stamps[:0], b.stamps[cut:]...)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
