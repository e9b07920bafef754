package liveview

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// scriptMarkersAbsent counts nodes matching either loading convention.
const scriptMarkersAbsent = `({ attr, cls }) => {
  const sel = [];
  if (attr) sel.push('[' + attr + ']');
  if (cls) sel.push('.' + cls);
  if (sel.length === 0) return { ok: true, observed: 0 };
  const n = document.querySelectorAll(sel.join(', ')).length;
  return { ok: n === 0, observed: n };
}`

func (s *Session) markersAbsent() Predicate {
	return Predicate{
		Description: "no loading markers",
		Script:      scriptMarkersAbsent,
		Arg: map[string]any{
			"attr": s.settings.LoadingAttr,
			"cls":  s.settings.LoadingClass,
		},
	}
}

// WaitForSettlement waits, with the default deadline, until no loading
// marker remains and the network has been idle for the configured window.
func (s *Session) WaitForSettlement(ctx context.Context) error {
	return s.WaitForSettlementWithin(ctx, s.settings.SettleTimeout)
}

// WaitForSettlementWithin runs the marker phase and then the network idle
// phase against one deadline. The marker phase may use at most MarkerShare
// of timeout; the idle phase gets the remainder. Once idle, marker absence
// is confirmed again and, if markers came back, both phases repeat on what
// is left of the same deadline.
func (s *Session) WaitForSettlementWithin(ctx context.Context, timeout time.Duration) error {
	start := time.Now()
	err := s.settle(ctx, timeout)
	s.record("settle", start, err)
	return err
}

func (s *Session) settle(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		return ErrNoDeadline
	}
	fraction := s.settings.MarkerShare
	if fraction <= 0 || fraction > 1 {
		fraction = 1
	}
	b := newBudget(timeout)
	markers := s.markersAbsent()

	for {
		share := b.share(fraction)
		if share <= 0 {
			return &TimeoutError{Op: "settle: loading markers", Predicate: markers.String(), Deadline: timeout}
		}
		if _, err := s.poller.Poll(ctx, markers, share); err != nil {
			return s.phaseError("settle: loading markers", timeout, err)
		}

		idle := b.remaining()
		if idle <= 0 {
			return &TimeoutError{Op: "settle: network idle", Predicate: s.idleDescription(), Deadline: timeout}
		}
		if err := s.waitNetworkIdle(ctx, idle); err != nil {
			return s.phaseError("settle: network idle", timeout, err)
		}

		obs, err := s.confirmMarkers(ctx, b, markers, timeout)
		if err != nil {
			return err
		}
		if obs.OK {
			return nil
		}
		s.log.Debug("loading markers reappeared after network idle")
	}
}

// confirmMarkers probes marker absence once more, within what is left of b.
func (s *Session) confirmMarkers(ctx context.Context, b budget, markers Predicate, timeout time.Duration) (Observation, error) {
	ctx, cancel := context.WithDeadline(ctx, b.deadline)
	defer cancel()
	obs, err := s.prober.Probe(ctx, markers)
	if err != nil {
		if expired(ctx, err) {
			return obs, &TimeoutError{Op: "settle: confirm markers", Predicate: markers.String(), Deadline: timeout}
		}
		return obs, fmt.Errorf("settle: confirm markers: %w", err)
	}
	return obs, nil
}

func (s *Session) waitNetworkIdle(ctx context.Context, limit time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()
	err := s.page.WaitForNetworkIdle(ctx, s.settings.NetworkIdle)
	if err != nil && expired(ctx, err) {
		return &TimeoutError{Predicate: s.idleDescription(), Deadline: limit}
	}
	return err
}

func (s *Session) idleDescription() string {
	return fmt.Sprintf("network idle for %s", s.settings.NetworkIdle)
}

// phaseError stamps the phase name on a timeout and reports the operation's
// whole deadline; other errors are wrapped.
func (s *Session) phaseError(op string, timeout time.Duration, err error) error {
	var te *TimeoutError
	if errors.As(err, &te) {
		te.Op = op
		te.Deadline = timeout
		return te
	}
	return fmt.Errorf("%s: %w", op, err)
}
