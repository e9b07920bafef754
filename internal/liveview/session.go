// Package liveview decides when a push-rendered page has settled after an
// action, and exposes the act-and-wait and assertion helpers page objects are
// built from.
//
// Every wait is bounded. A Session is bound to one page and must not be
// shared between tests.
package liveview

import (
	"errors"
	"time"

	"go.uber.org/zap"
)

// Settings holds the DOM conventions of the application under test and the
// default deadlines of each wait.
type Settings struct {
	LoadingAttr      string
	LoadingClass     string
	EventPrefix      string
	ConnectionGlobal string
	StreamAttr       string
	StreamValue      string
	SubmitSelector   string

	SettleTimeout           time.Duration
	ConnectTimeout          time.Duration
	BannerVisibleTimeout    time.Duration
	BannerTextTimeout       time.Duration
	CollectionAttachTimeout time.Duration
	CollectionCountTimeout  time.Duration
	EventTimeout            time.Duration
	EventFallback           time.Duration
	ValidationDelay         time.Duration
	NetworkIdle             time.Duration
	PollInterval            time.Duration

	// MarkerShare is the fraction of a settlement deadline the marker phase
	// may consume. The idle phase gets whatever is left.
	MarkerShare float64
}

// DefaultSettings matches a stock Phoenix LiveView client.
func DefaultSettings() Settings {
	return Settings{
		LoadingAttr:      "phx-loading",
		LoadingClass:     "phx-loading",
		EventPrefix:      "phx",
		ConnectionGlobal: "liveSocket",
		StreamAttr:       "phx-update",
		StreamValue:      "stream",
		SubmitSelector:   `button[type="submit"]`,

		SettleTimeout:           5 * time.Second,
		ConnectTimeout:          5 * time.Second,
		BannerVisibleTimeout:    3 * time.Second,
		BannerTextTimeout:       2 * time.Second,
		CollectionAttachTimeout: 3 * time.Second,
		CollectionCountTimeout:  5 * time.Second,
		EventTimeout:            5 * time.Second,
		EventFallback:           100 * time.Millisecond,
		ValidationDelay:         500 * time.Millisecond,
		NetworkIdle:             500 * time.Millisecond,
		PollInterval:            DefaultPollInterval,

		MarkerShare: 0.5,
	}
}

// Session bundles a page with the waits scoped to it.
type Session struct {
	page     Page
	settings Settings
	prober   Prober
	poller   *Poller
	conn     ConnectionState
	log      *zap.Logger
	metrics  *Metrics
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) SessionOption {
	return func(s *Session) { s.log = l }
}

// WithMetrics records every wait into m.
func WithMetrics(m *Metrics) SessionOption {
	return func(s *Session) { s.metrics = m }
}

// WithProber replaces the evaluate-once mechanism used by all polls.
func WithProber(p Prober) SessionOption {
	return func(s *Session) { s.prober = p }
}

// WithConnectionState replaces the page-global connection lookup.
func WithConnectionState(c ConnectionState) SessionOption {
	return func(s *Session) { s.conn = c }
}

// NewSession binds settings to page.
func NewSession(page Page, settings Settings, opts ...SessionOption) *Session {
	s := &Session{
		page:     page,
		settings: settings,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.prober == nil {
		s.prober = EvalProber{Page: page}
	}
	s.poller = NewPoller(s.prober, settings.PollInterval)
	if s.conn == nil {
		s.conn = &GlobalConnection{Prober: s.prober, Poller: s.poller, Global: settings.ConnectionGlobal}
	}
	return s
}

// Page returns the underlying driver page.
func (s *Session) Page() Page { return s.page }

// Settings returns a copy of the session settings.
func (s *Session) Settings() Settings { return s.settings }

// Poller returns the session poller for manual predicates.
func (s *Session) Poller() *Poller { return s.poller }

func (s *Session) record(op string, start time.Time, err error) {
	elapsed := time.Since(start)
	s.metrics.observe(op, elapsed, err)

	var te *TimeoutError
	switch {
	case err == nil:
		s.log.Debug("wait finished", zap.String("op", op), zap.Duration("elapsed", elapsed))
	case errors.As(err, &te):
		s.log.Warn("wait timed out",
			zap.String("op", op),
			zap.String("predicate", te.Predicate),
			zap.Duration("deadline", te.Deadline),
			zap.Any("observed", te.Observed))
	default:
		s.log.Warn("wait failed", zap.String("op", op), zap.Duration("elapsed", elapsed), zap.Error(err))
	}
}
