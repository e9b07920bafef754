package liveview

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeOK      = "ok"
	outcomeTimeout = "timeout"
	outcomeError   = "error"
)

// Metrics records wait latencies and timeouts. A nil *Metrics is a no-op.
type Metrics struct {
	duration *prometheus.HistogramVec
	timeouts *prometheus.CounterVec
}

// NewMetrics registers the wait collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "liveview_wait_duration_seconds",
			Help:    "Time spent in bounded liveview waits",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"op", "outcome"}),
		timeouts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "liveview_wait_timeouts_total",
			Help: "Total number of liveview waits that hit their deadline",
		}, []string{"op"}),
	}
}

func (m *Metrics) observe(op string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := outcomeOK
	switch {
	case err == nil:
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrAssertionTimeout), errors.Is(err, ErrMissingCapability):
		outcome = outcomeTimeout
		m.timeouts.WithLabelValues(op).Inc()
	default:
		outcome = outcomeError
	}
	m.duration.WithLabelValues(op, outcome).Observe(elapsed.Seconds())
}
