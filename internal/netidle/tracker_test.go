package netidle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitIdleQuietPage(t *testing.T) {
	tr := New()
	start := time.Now()

	require.NoError(t, tr.WaitIdle(context.Background(), 30*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestWaitIdleAlreadyQuiet(t *testing.T) {
	base := time.Now()
	clock := base
	tr := newTracker(func() time.Time { return clock })
	clock = base.Add(time.Second)

	start := time.Now()
	require.NoError(t, tr.WaitIdle(context.Background(), 500*time.Millisecond))
	assert.Less(t, time.Since(start), 10*time.Millisecond)
}

func TestWaitIdleWaitsForInflightRequests(t *testing.T) {
	tr := New()
	tr.Started("req-1")
	time.AfterFunc(40*time.Millisecond, func() { tr.Finished("req-1") })

	start := time.Now()
	require.NoError(t, tr.WaitIdle(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
	assert.Zero(t, tr.InFlight())
}

func TestWaitIdleWindowRestartsOnActivity(t *testing.T) {
	tr := New()
	time.AfterFunc(20*time.Millisecond, func() {
		tr.Started("poll")
		tr.Finished("poll")
	})

	start := time.Now()
	require.NoError(t, tr.WaitIdle(context.Background(), 40*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestWaitIdleDeadline(t *testing.T) {
	tr := New()
	tr.Started("long-poll")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := tr.WaitIdle(ctx, 10*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, tr.InFlight())
}

func TestFinishedIgnoresUnknownKeys(t *testing.T) {
	tr := New()
	tr.Started("a")
	tr.Finished("b")
	tr.Finished("a")
	tr.Finished("a")

	assert.Zero(t, tr.InFlight())
}

func TestReset(t *testing.T) {
	tr := New()
	tr.Started("a")
	tr.Started("b")
	tr.Reset()

	assert.Zero(t, tr.InFlight())
}
