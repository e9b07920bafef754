package liveview

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMetricsRecordWaits(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	page := newFakePage()
	s := NewSession(page, testSettings(), WithMetrics(m), WithLogger(zaptest.NewLogger(t)))

	require.NoError(t, s.WaitForSettlement(context.Background()))

	page.set(func(f *fakePage) { f.loading = 1 })
	err := s.WaitForSettlementWithin(context.Background(), 30*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.timeouts.WithLabelValues("settle")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.observe("settle", time.Millisecond, nil) })
}
