package liveview

import (
	"context"
	"fmt"
	"time"
)

// scriptAwaitEvent attaches a one-shot listener and races it against a
// fallback timer. Whichever wins removes the other.
const scriptAwaitEvent = `({ event, fallback }) => new Promise((resolve) => {
  let timer = null;
  const onEvent = () => {
    if (timer !== null) clearTimeout(timer);
    resolve(true);
  };
  window.addEventListener(event, onEvent, { once: true });
  timer = setTimeout(() => {
    window.removeEventListener(event, onEvent);
    resolve(false);
  }, fallback);
})`

// EventName returns the dispatched name of a custom event, "<prefix>:<name>".
func (s *Session) EventName(name string) string {
	if s.settings.EventPrefix == "" {
		return name
	}
	return s.settings.EventPrefix + ":" + name
}

// WaitForEvent waits for a custom event using the default deadline. See
// WaitForEventWithin for the race this carries.
func (s *Session) WaitForEvent(ctx context.Context, name string) (bool, error) {
	return s.WaitForEventWithin(ctx, name, s.settings.EventTimeout)
}

// WaitForEventWithin listens once for the named event and reports true if it
// fires inside the fallback window. If the window closes first it reports
// false, which is meant to cover events that fired before the listener was
// attached.
//
// false is not proof that the event never fired, nor that it will not fire:
// an event dispatched after the fallback window but before timeout is
// missed and still yields false. Callers that need certainty should wait for
// settlement instead. The fallback is clamped to half of timeout, and timeout
// only bounds the evaluation round trip itself.
func (s *Session) WaitForEventWithin(ctx context.Context, name string, timeout time.Duration) (bool, error) {
	start := time.Now()
	fired, err := s.awaitEvent(ctx, name, timeout)
	s.record("event", start, err)
	return fired, err
}

func (s *Session) awaitEvent(ctx context.Context, name string, timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		return false, ErrNoDeadline
	}
	fallback := s.settings.EventFallback
	if limit := timeout / 2; fallback <= 0 || fallback > limit {
		fallback = limit
	}
	event := s.EventName(name)
	pred := Predicate{
		Description: "event " + event,
		Script:      scriptAwaitEvent,
		Arg: map[string]any{
			"event":    event,
			"fallback": fallback.Milliseconds(),
		},
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	obs, err := s.prober.Probe(ctx, pred)
	if err != nil {
		if expired(ctx, err) {
			return false, &TimeoutError{Op: "wait for event", Predicate: pred.Description, Deadline: timeout}
		}
		if cerr := ctx.Err(); cerr != nil {
			return false, cerr
		}
		return false, fmt.Errorf("wait for event %s: %w", event, err)
	}
	return obs.OK, nil
}
