// Package eligibility answers whether a holding is past its maturation window
// and how long remains.
package eligibility

import (
	"context"
	"math"
	"time"

	"github.com/cimillas/ultimate-collectibles/internal/clock"
	"github.com/cimillas/ultimate-collectibles/internal/domain"
	"github.com/rs/zerolog"
)

// Window is the hold period before delivery or consignment is permitted.
const Window = 48 * time.Hour

type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

type Status struct {
	Passed    bool
	Remaining time.Duration
	HoursLeft int
	Source    Source
}

// Deadline returns the instant the status unlocks, relative to now. It
// reports false for a lock with no known remaining time, such as a remote
// "locked" answer without a countdown.
func (s Status) Deadline(now time.Time) (time.Time, bool) {
	if s.Passed {
		return now, true
	}
	if s.Remaining <= 0 {
		return time.Time{}, false
	}
	return now.Add(s.Remaining), true
}

// Evaluate computes the local time lock from the purchase time.
func Evaluate(purchaseTime, now time.Time) Status {
	elapsed := now.Sub(purchaseTime)
	elapsedHours := elapsed.Hours()
	hoursLeft := int(math.Max(0, math.Ceil(Window.Hours()-elapsedHours)))

	remaining := Window - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		Passed:    elapsed >= Window,
		Remaining: remaining.Truncate(time.Second),
		HoursLeft: hoursLeft,
		Source:    SourceLocal,
	}
}

// Remote is the unlock determination of the consignment-check collaborator.
type Remote struct {
	Unlocked         bool
	RemainingSeconds *int
}

// Merge lets the remote determination take precedence over the local clock.
// The local values only fill in what the remote left out, and never turn a
// remote "locked" into "passed".
func Merge(remote *Remote, local Status) Status {
	if remote == nil {
		return local
	}
	out := Status{Passed: remote.Unlocked, Source: SourceRemote}
	switch {
	case remote.Unlocked:
	case remote.RemainingSeconds != nil:
		secs := *remote.RemainingSeconds
		if secs < 0 {
			secs = 0
		}
		out.Remaining = time.Duration(secs) * time.Second
		out.HoursLeft = int(math.Ceil(float64(secs) / 3600))
	default:
		out.Remaining = local.Remaining
		out.HoursLeft = local.HoursLeft
	}
	return out
}

// Authority is the remote unlock check.
type Authority interface {
	ConsignmentEligibility(ctx context.Context, holdingID string) (Remote, error)
}

// Checker combines the remote authority with the local clock.
type Checker struct {
	authority Authority
	clock     clock.Clock
	timeout   time.Duration
	logger    zerolog.Logger
}

const defaultTimeout = 3 * time.Second

type Option func(*Checker)

// WithTimeout bounds how long the remote check may take before the local
// clock is used instead.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Checker) {
		c.logger = l
	}
}

// NewChecker returns a Checker. A nil authority means local-only evaluation.
func NewChecker(authority Authority, clk clock.Clock, opts ...Option) *Checker {
	c := &Checker{
		authority: authority,
		clock:     clk,
		timeout:   defaultTimeout,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Local evaluates the holding against the local clock only.
func (c *Checker) Local(h domain.Holding) Status {
	return Evaluate(h.PurchaseTime, c.clock.Now())
}

// Check asks the remote authority within the configured timeout and falls
// back to the local clock when it fails or does not answer in time.
func (c *Checker) Check(ctx context.Context, h domain.Holding) Status {
	local := c.Local(h)
	if c.authority == nil {
		return local
	}

	rctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type result struct {
		remote Remote
		err    error
	}
	done := make(chan result, 1)
	go func() {
		remote, err := c.authority.ConsignmentEligibility(rctx, h.ID)
		done <- result{remote: remote, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			c.logger.Warn().Err(res.err).Str("holding_id", h.ID).Msg("eligibility check failed, using local clock")
			return local
		}
		return Merge(&res.remote, local)
	case <-rctx.Done():
		c.logger.Warn().Err(rctx.Err()).Str("holding_id", h.ID).Msg("eligibility check timed out, using local clock")
		return local
	}
}
