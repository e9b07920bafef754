package liveview

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultPollInterval is roughly one animation frame.
	DefaultPollInterval = 16 * time.Millisecond
	// MaxPollInterval caps the gap between two evaluation rounds.
	MaxPollInterval = 50 * time.Millisecond
)

// Poller repeatedly probes a predicate until it holds or the deadline elapses.
type Poller struct {
	prober   Prober
	interval time.Duration
}

// NewPoller returns a poller over prober. The interval is clamped to
// (0, MaxPollInterval]; zero selects DefaultPollInterval.
func NewPoller(prober Prober, interval time.Duration) *Poller {
	switch {
	case interval <= 0:
		interval = DefaultPollInterval
	case interval > MaxPollInterval:
		interval = MaxPollInterval
	}
	return &Poller{prober: prober, interval: interval}
}

// Interval reports the effective polling interval.
func (p *Poller) Interval() time.Duration { return p.interval }

// Poll evaluates pred immediately and then once per interval. It returns the
// first observation for which the predicate holds, or a *TimeoutError
// carrying the last observation once timeout has elapsed. Evaluation errors
// that are not deadline related, including cancellation of ctx, are returned
// as is.
func (p *Poller) Poll(ctx context.Context, pred Predicate, timeout time.Duration) (Observation, error) {
	if timeout <= 0 {
		return Observation{}, ErrNoDeadline
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var last Observation
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		obs, err := p.prober.Probe(ctx, pred)
		if err != nil {
			if expired(ctx, err) {
				return last, timeoutFor("poll", pred, timeout, last)
			}
			if cerr := ctx.Err(); cerr != nil {
				return last, cerr
			}
			return last, err
		}
		last = obs
		if obs.OK {
			return obs, nil
		}

		timer.Reset(p.interval)
		select {
		case <-ctx.Done():
			if expired(ctx, nil) {
				return last, timeoutFor("poll", pred, timeout, last)
			}
			return last, ctx.Err()
		case <-timer.C:
		}
	}
}

// expired reports whether err or ctx ended on a deadline. A cancelled ctx is
// never a timeout, whatever the driver returned.
func expired(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.Canceled) {
		return false
	}
	return ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded)
}

func timeoutFor(op string, pred Predicate, d time.Duration, last Observation) *TimeoutError {
	return &TimeoutError{
		Op:        op,
		Predicate: pred.String(),
		Deadline:  d,
		Observed:  last.Observed,
	}
}

// budget is a single authoritative deadline shared by the phases of one
// operation.
type budget struct {
	total    time.Duration
	deadline time.Time
}

func newBudget(total time.Duration) budget {
	return budget{total: total, deadline: time.Now().Add(total)}
}

func (b budget) remaining() time.Duration {
	return time.Until(b.deadline)
}

// share returns fraction of the total, never more than what is left.
func (b budget) share(fraction float64) time.Duration {
	d := time.Duration(float64(b.total) * fraction)
	if r := b.remaining(); d > r {
		d = r
	}
	return d
}
