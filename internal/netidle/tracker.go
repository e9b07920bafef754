// Package netidle tracks in-flight browser requests so a caller can wait for
// the network to stay quiet for a chosen window.
package netidle

import (
	"context"
	"sync"
	"time"
)

// checkInterval bounds how long WaitIdle sleeps while requests are in flight.
const checkInterval = 10 * time.Millisecond

// Tracker counts requests between their start and their end. Keys are
// whatever identifies a request for the driver: a request id, a request
// object. A key finished twice, or never started, is ignored.
type Tracker struct {
	mu           sync.Mutex
	inflight     map[any]struct{}
	lastActivity time.Time
	now          func() time.Time
}

// New returns a tracker whose quiet period starts now.
func New() *Tracker {
	return newTracker(time.Now)
}

func newTracker(now func() time.Time) *Tracker {
	return &Tracker{
		inflight:     make(map[any]struct{}),
		lastActivity: now(),
		now:          now,
	}
}

// Started records a request start.
func (t *Tracker) Started(key any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inflight[key] = struct{}{}
	t.lastActivity = t.now()
}

// Finished records a request end, successful or not.
func (t *Tracker) Finished(key any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.inflight[key]; !ok {
		return
	}
	delete(t.inflight, key)
	t.lastActivity = t.now()
}

// InFlight reports the number of unfinished requests.
func (t *Tracker) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight)
}

// Reset forgets every in-flight request, e.g. after a navigation tore the
// old document down.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inflight = make(map[any]struct{})
	t.lastActivity = t.now()
}

// quietFor returns how long the network has had zero requests in flight,
// or a negative duration while any is pending.
func (t *Tracker) quietFor() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.inflight) > 0 {
		return -1
	}
	return t.now().Sub(t.lastActivity)
}

// WaitIdle blocks until no request has been in flight for window without
// interruption, or until ctx is done. The returned error is ctx.Err().
func (t *Tracker) WaitIdle(ctx context.Context, window time.Duration) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		quiet := t.quietFor()
		if quiet >= 0 && quiet >= window {
			return nil
		}
		wait := checkInterval
		if quiet >= 0 && window-quiet < wait {
			wait = window - quiet
		}
		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}
