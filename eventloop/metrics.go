package eventloop

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricsSnapshot is a point-in-time copy of a loop's runtime statistics,
// as returned by [Loop.Metrics].
//
// Example:
//
//	loop, _ := New(WithMetrics(true))
//	_ = loop.Run(ctx)
//	stats := loop.Metrics()
//	fmt.Printf("TPS: %.2f, P99 queue latency: %v\n",
//		stats.TPS, stats.QueueLatency.P99)
type MetricsSnapshot struct {
	// QueueLatency is the time between Invoke and the start of the callback.
	QueueLatency LatencySnapshot

	// TimerLateness is the time between a timer's scheduled deadline and the
	// start of its callback.
	TimerLateness LatencySnapshot

	// Queue describes the pending invocation queue depth, sampled at the
	// start of each drain.
	Queue QueueSnapshot

	// TPS is the rate of callbacks (invocations and timer firings) per
	// second, over a rolling window.
	TPS float64

	Invocations  uint64
	TimerFirings uint64
	// DroppedTicks counts repeating timer deadlines skipped because the
	// loop was busy past them.
	DroppedTicks uint64
	Panics       uint64
}

// LatencySnapshot summarizes a latency distribution. Percentiles are
// streaming estimates.
type LatencySnapshot struct {
	P50   time.Duration
	P90   time.Duration
	P95   time.Duration
	P99   time.Duration
	Max   time.Duration
	Mean  time.Duration
	Count int
}

// QueueSnapshot summarizes queue depth.
type QueueSnapshot struct {
	Current int
	Max     int
	// Avg is an exponential moving average, alpha=0.1.
	Avg float64
}

// Metrics collects the statistics behind [MetricsSnapshot]. The loop
// goroutine is the only writer of the latency and queue fields; reads may
// happen from any goroutine.
type Metrics struct {
	tps           *TPSCounter
	queueLatency  LatencyMetrics
	timerLateness LatencyMetrics
	queue         QueueMetrics
	invocations   atomic.Uint64
	timerFirings  atomic.Uint64
	droppedTicks  atomic.Uint64
	panics        atomic.Uint64
}

func newMetrics() *Metrics {
	return &Metrics{
		tps: NewTPSCounter(10*time.Second, 100*time.Millisecond),
	}
}

// Snapshot copies the current values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		QueueLatency:  m.queueLatency.Snapshot(),
		TimerLateness: m.timerLateness.Snapshot(),
		Queue:         m.queue.Snapshot(),
		TPS:           m.tps.TPS(),
		Invocations:   m.invocations.Load(),
		TimerFirings:  m.timerFirings.Load(),
		DroppedTicks:  m.droppedTicks.Load(),
		Panics:        m.panics.Load(),
	}
}

// LatencyMetrics tracks a latency distribution using streaming quantile
// estimation, so recording is O(1) and no samples are retained.
type LatencyMetrics struct {
	mu  sync.RWMutex
	est *quantileSet
}

// latencyQuantiles are the quantiles reported in LatencySnapshot, in order.
var latencyQuantiles = [...]float64{0.50, 0.90, 0.95, 0.99}

// Record records a latency sample.
func (l *LatencyMetrics) Record(d time.Duration) {
	l.mu.Lock()
	if l.est == nil {
		l.est = newQuantileSet(latencyQuantiles[:]...)
	}
	l.est.observe(float64(d))
	l.mu.Unlock()
}

// Snapshot returns the current estimates.
func (l *LatencyMetrics) Snapshot() LatencySnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.est == nil {
		return LatencySnapshot{}
	}
	return LatencySnapshot{
		P50:   time.Duration(l.est.quantile(0)),
		P90:   time.Duration(l.est.quantile(1)),
		P95:   time.Duration(l.est.quantile(2)),
		P99:   time.Duration(l.est.quantile(3)),
		Max:   time.Duration(l.est.maximum()),
		Mean:  time.Duration(l.est.mean()),
		Count: l.est.count,
	}
}

// QueueMetrics tracks queue depth statistics.
type QueueMetrics struct {
	mu             sync.RWMutex
	current        int
	max            int
	avg            float64
	emaInitialized bool
}

// Update records an observed depth.
func (q *QueueMetrics) Update(depth int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.current = depth
	if depth > q.max {
		q.max = depth
	}
	// warmstart: EMA initializes to the first observed value
	if !q.emaInitialized {
		q.avg = float64(depth)
		q.emaInitialized = true
	} else {
		q.avg = 0.9*q.avg + 0.1*float64(depth)
	}
}

// Snapshot returns the current values.
func (q *QueueMetrics) Snapshot() QueueSnapshot {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return QueueSnapshot{Current: q.current, Max: q.max, Avg: q.avg}
}

// TPSCounter tracks events per second with a rolling window.
//
// The window is divided into buckets (e.g. a 10 second window with 100ms
// buckets has 100 buckets). TPS is the sum over the window divided by the
// window length, so it under-reports until the first full window elapses.
//
// Thread Safety: All methods are thread-safe.
type TPSCounter struct {
	lastRotation time.Time
	buckets      []int64
	bucketSize   time.Duration
	windowSize   time.Duration
	mu           sync.Mutex
}

// NewTPSCounter creates a new TPS counter.
// windowSize is the time window for TPS calculation (e.g., 10*time.Second).
// bucketSize is the granularity of the rolling window (e.g., 100*time.Millisecond).
func NewTPSCounter(windowSize, bucketSize time.Duration) *TPSCounter {
	if bucketSize <= 0 {
		bucketSize = windowSize
	}
	bucketCount := 1
	if bucketSize > 0 {
		bucketCount = max(int(windowSize/bucketSize), 1)
	}
	return &TPSCounter{
		lastRotation: timeNow(),
		buckets:      make([]int64, bucketCount),
		bucketSize:   bucketSize,
		windowSize:   windowSize,
	}
}

// Increment records one event.
func (t *TPSCounter) Increment() {
	t.mu.Lock()
	t.rotateLocked(timeNow())
	t.buckets[len(t.buckets)-1]++
	t.mu.Unlock()
}

// rotateLocked advances the window to now.
func (t *TPSCounter) rotateLocked(now time.Time) {
	if t.bucketSize <= 0 {
		return
	}
	advance := int(now.Sub(t.lastRotation) / t.bucketSize)
	if advance <= 0 {
		return
	}
	if advance >= len(t.buckets) {
		clear(t.buckets)
		t.lastRotation = now
		return
	}
	n := copy(t.buckets, t.buckets[advance:])
	clear(t.buckets[n:])
	t.lastRotation = t.lastRotation.Add(time.Duration(advance) * t.bucketSize)
}

// TPS returns the current events per second.
func (t *TPSCounter) TPS() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rotateLocked(timeNow())

	var sum int64
	for _, count := range t.buckets {
		sum += count
	}
	if sum == 0 || t.windowSize <= 0 {
		return 0
	}
	return float64(sum) / t.windowSize.Seconds()
}
