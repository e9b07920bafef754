package liveview

import (
	"context"
	"errors"
	"time"
)

const (
	handleAbsent       = "absent"
	handleDisconnected = "disconnected"
	handleConnected    = "connected"
)

// scriptConnected reports whether any view of the page-global handle is
// connected. With no view collection it falls back to the handle's own
// isConnected. Every failure collapses to false.
const scriptConnected = `(name) => {
  try {
    const h = window[name];
    if (!h) return false;
    const alive = (v) => !!v && typeof v.isConnected === 'function' && v.isConnected() === true;
    let views = null;
    if (h.main) {
      views = [h.main];
    } else if (h.roots && typeof h.roots === 'object') {
      views = Object.values(h.roots);
    }
    if (views !== null) return views.some(alive);
    return alive(h);
  } catch (e) {
    return false;
  }
}`

// scriptHandleReady reports the handle's own connectivity along with whether
// the handle exists at all.
const scriptHandleReady = `(name) => {
  let h;
  try { h = window[name]; } catch (e) { h = undefined; }
  if (!h) return { ok: false, observed: 'absent' };
  try {
    if (typeof h.isConnected === 'function' && h.isConnected() === true) {
      return { ok: true, observed: 'connected' };
    }
  } catch (e) {}
  return { ok: false, observed: 'disconnected' };
}`

// ConnectionState reads the push connection handle of the page.
type ConnectionState interface {
	// IsConnected is a best-effort single check. It never fails.
	IsConnected(ctx context.Context) bool
	// WaitUntilConnected blocks until the handle reports itself connected.
	WaitUntilConnected(ctx context.Context, timeout time.Duration) error
}

// GlobalConnection looks the handle up under a well-known window property.
type GlobalConnection struct {
	Prober Prober
	Poller *Poller
	Global string
}

func (g *GlobalConnection) IsConnected(ctx context.Context) bool {
	obs, err := g.Prober.Probe(ctx, Predicate{
		Description: "connection handle has a connected view",
		Script:      scriptConnected,
		Arg:         g.Global,
	})
	return err == nil && obs.OK
}

// WaitUntilConnected reports a *MissingCapabilityError only when the handle
// was absent on every round. A handle that showed up and then went away is a
// plain *TimeoutError.
func (g *GlobalConnection) WaitUntilConnected(ctx context.Context, timeout time.Duration) error {
	rec := &sightingProber{Prober: g.Prober}
	_, err := NewPoller(rec, g.Poller.Interval()).Poll(ctx, Predicate{
		Description: "connection handle connected",
		Script:      scriptHandleReady,
		Arg:         g.Global,
	}, timeout)

	var te *TimeoutError
	if errors.As(err, &te) {
		te.Op = "wait until connected"
		if !rec.seen {
			return &MissingCapabilityError{Capability: g.Global, Deadline: timeout}
		}
	}
	return err
}

// sightingProber remembers whether any round observed the handle.
type sightingProber struct {
	Prober
	seen bool
}

func (p *sightingProber) Probe(ctx context.Context, pred Predicate) (Observation, error) {
	obs, err := p.Prober.Probe(ctx, pred)
	if err == nil && obs.Observed != nil && obs.Observed != handleAbsent {
		p.seen = true
	}
	return obs, err
}

// IsConnected is the single-shot connectivity check.
func (s *Session) IsConnected(ctx context.Context) bool {
	return s.conn.IsConnected(ctx)
}

// WaitUntilConnected waits for the handle using the default deadline.
func (s *Session) WaitUntilConnected(ctx context.Context) error {
	return s.WaitUntilConnectedWithin(ctx, s.settings.ConnectTimeout)
}

// WaitUntilConnectedWithin waits at most timeout for the handle to connect.
func (s *Session) WaitUntilConnectedWithin(ctx context.Context, timeout time.Duration) error {
	start := time.Now()
	err := s.conn.WaitUntilConnected(ctx, timeout)
	s.record("connect", start, err)
	return err
}
