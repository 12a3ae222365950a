package eligibility

import (
	"context"
	"math"
	"time"

	"github.com/cimillas/ultimate-collectibles/internal/clock"
)

// Countdown recomputes the remaining time until deadline every interval and
// sends it on the returned channel. The channel is closed after the unlocked
// status has been sent or as soon as ctx is cancelled; the ticker goroutine
// exits with it.
func Countdown(ctx context.Context, clk clock.Clock, deadline time.Time, interval time.Duration, source Source) <-chan Status {
	if interval <= 0 {
		interval = time.Second
	}
	out := make(chan Status)

	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			st := remainingUntil(deadline, clk.Now(), source)
			select {
			case out <- st:
			case <-ctx.Done():
				return
			}
			if st.Passed {
				return
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func remainingUntil(deadline, now time.Time, source Source) Status {
	remaining := deadline.Sub(now)
	if remaining <= 0 {
		return Status{Passed: true, Source: source}
	}
	return Status{
		Remaining: remaining.Truncate(time.Second),
		HoursLeft: int(math.Ceil(remaining.Hours())),
		Source:    source,
	}
}

// Watch sends first, then the result of check every interval, until a passed
// status has been sent or ctx is cancelled. It serves locks whose end is
// unknown locally.
func Watch(ctx context.Context, first Status, interval time.Duration, check func(context.Context) Status) <-chan Status {
	if interval <= 0 {
		interval = time.Second
	}
	out := make(chan Status)

	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		st := first
		for {
			select {
			case out <- st:
			case <-ctx.Done():
				return
			}
			if st.Passed {
				return
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
			st = check(ctx)
		}
	}()

	return out
}
