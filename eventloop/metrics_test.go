package eventloop

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantileEstimator_Uniform(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	set := newQuantileSet(0.5, 0.9, 0.99)
	for i := 0; i < 100000; i++ {
		set.observe(r.Float64() * 1000)
	}
	assert.InDelta(t, 500, set.quantile(0), 25)
	assert.InDelta(t, 900, set.quantile(1), 25)
	assert.InDelta(t, 990, set.quantile(2), 10)
	assert.InDelta(t, 500, set.mean(), 10)
	assert.LessOrEqual(t, set.maximum(), 1000.0)
	assert.Zero(t, set.quantile(3))
	assert.Zero(t, set.quantile(-1))
}

func TestQuantileEstimator_FewObservations(t *testing.T) {
	e := newQuantileEstimator(0.5)
	assert.Zero(t, e.value())
	e.observe(3)
	e.observe(1)
	e.observe(2)
	assert.Equal(t, 2.0, e.value())

	set := newQuantileSet(0.5)
	assert.Zero(t, set.maximum())
	assert.Zero(t, set.mean())
}

func TestQuantileEstimator_ClampsP(t *testing.T) {
	assert.Equal(t, 0.0, newQuantileEstimator(-1).p)
	assert.Equal(t, 1.0, newQuantileEstimator(2).p)
}

func TestLatencyMetrics(t *testing.T) {
	var l LatencyMetrics
	assert.Equal(t, LatencySnapshot{}, l.Snapshot())

	r := rand.New(rand.NewPCG(3, 4))
	for _, i := range r.Perm(1000) {
		l.Record(time.Duration(i+1) * time.Microsecond)
	}
	s := l.Snapshot()
	assert.Equal(t, 1000, s.Count)
	assert.Equal(t, time.Millisecond, s.Max)
	assert.InDelta(t, float64(500*time.Microsecond), float64(s.P50), float64(50*time.Microsecond))
	assert.InDelta(t, float64(990*time.Microsecond), float64(s.P99), float64(40*time.Microsecond))
	assert.LessOrEqual(t, s.P50, s.P90)
	assert.LessOrEqual(t, s.P90, s.P95)
	assert.LessOrEqual(t, s.P95, s.P99)
}

func TestQueueMetrics(t *testing.T) {
	var q QueueMetrics
	q.Update(10)
	s := q.Snapshot()
	assert.Equal(t, QueueSnapshot{Current: 10, Max: 10, Avg: 10}, s)

	q.Update(0)
	s = q.Snapshot()
	assert.Equal(t, 0, s.Current)
	assert.Equal(t, 10, s.Max)
	assert.InDelta(t, 9, s.Avg, 1e-9)
}

func TestTPSCounter(t *testing.T) {
	now := time.Unix(0, 0)
	timeNow = func() time.Time { return now }
	defer func() { timeNow = time.Now }()

	c := NewTPSCounter(time.Second, 100*time.Millisecond)
	assert.Zero(t, c.TPS())
	for i := 0; i < 50; i++ {
		c.Increment()
	}
	assert.InDelta(t, 50, c.TPS(), 1e-9)

	now = now.Add(500 * time.Millisecond)
	for i := 0; i < 50; i++ {
		c.Increment()
	}
	assert.InDelta(t, 100, c.TPS(), 1e-9)

	// the first 50 fall out of the window
	now = now.Add(600 * time.Millisecond)
	assert.InDelta(t, 50, c.TPS(), 1e-9)

	now = now.Add(time.Hour)
	assert.Zero(t, c.TPS())
}

func TestTPSCounter_DegenerateSizes(t *testing.T) {
	c := NewTPSCounter(time.Second, 0)
	c.Increment()
	assert.False(t, math.IsNaN(c.TPS()))
	assert.Len(t, c.buckets, 1)
}

func TestLoop_Metrics(t *testing.T) {
	loop := newTestLoop(t, WithMetrics(true))
	defer loop.Close()

	for i := 0; i < 10; i++ {
		require.NoError(t, loop.Invoke(func() {}))
	}
	require.NoError(t, loop.Invoke(func() { panic("counted") }))
	require.NoError(t, loop.SingleShot(time.Millisecond, func() {}))
	require.NoError(t, loop.SingleShot(10*time.Millisecond, loop.Quit))
	require.NoError(t, loop.Run(context.Background()))

	m := loop.Metrics()
	assert.Equal(t, uint64(11), m.Invocations)
	assert.Equal(t, uint64(2), m.TimerFirings)
	assert.Equal(t, uint64(1), m.Panics)
	assert.Equal(t, 11, m.QueueLatency.Count)
	assert.Equal(t, 2, m.TimerLateness.Count)
	assert.Equal(t, 11, m.Queue.Max)
	assert.Greater(t, m.TPS, 0.0)
}

func TestLoop_MetricsDisabled(t *testing.T) {
	loop := newTestLoop(t)
	defer loop.Close()
	assert.Nil(t, loop.metrics)
	assert.Equal(t, MetricsSnapshot{}, loop.Metrics())
}
