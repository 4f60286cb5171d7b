package eventloop

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// timeNow is the clock, replaceable in tests.
var timeNow = time.Now

var loopIDCounter atomic.Uint64

// Loop is a single-goroutine event loop, owning a cross-goroutine invocation
// queue and a set of timers.
//
// All callbacks (invocations and timer firings) run on the loop goroutine,
// which is the goroutine blocked in [Loop.Run]. Each iteration first fires
// every due timer, in deadline order, then runs the invocations that were
// pending when the drain started, in FIFO order.
//
// A Loop is an explicit object: create one with [New], and pass it to
// whatever needs to schedule work.
type Loop struct { // betteralign:ignore
	// Prevent copying
	_ [0]func()

	// State machine (cache-line padded internally)
	state loopStateCell

	logger       *logiface.Logger[logiface.Event]
	logLimiter   *catrate.Limiter
	panicHandler func(err error)

	// metrics is nil unless enabled via WithMetrics
	metrics *Metrics

	// Wake-up mechanism
	waker       waker
	wakeMu      sync.RWMutex // guards wakerClosed against close racing wake
	wakerClosed bool
	wakePending atomic.Uint32 // wake-up deduplication
	maxWait     time.Duration

	// Ingress: pending invocations
	ingressMu     sync.Mutex
	ingress       invocationQueue
	ingressClosed bool

	// Timers
	timerMu      sync.Mutex
	timers       timerTable
	timersClosed bool
	dueBuf       []firing

	// runGen identifies the current Run call, quitGen the run that Quit
	// targeted. runMu orders Run's start against Quit.
	runMu   sync.Mutex
	runGen  atomic.Uint64
	quitGen atomic.Uint64

	// Goroutine tracking
	loopGoroutineID atomic.Uint64

	// Loop ID
	id uint64

	// terminated is closed once the loop reaches StateTerminated
	terminated chan struct{}

	// Invocation batch buffer (avoid allocation)
	batchBuf [batchSize]invocation
}

// New creates a new Loop. It does not start it, see [Loop.Run].
//
// With [WakeModeFD], New allocates file descriptors, which are released by
// [Loop.Close] or [Loop.Shutdown].
func New(opts ...LoopOption) (*Loop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}

	limiter, err := newLogLimiter(cfg.logRates)
	if err != nil {
		return nil, err
	}

	w, err := newWaker(cfg.wakeMode)
	if err != nil {
		return nil, err
	}

	loop := &Loop{
		id:           loopIDCounter.Add(1),
		logger:       cfg.logger,
		logLimiter:   limiter,
		panicHandler: cfg.panicHandler,
		waker:        w,
		maxWait:      cfg.maxWait,
		terminated:   make(chan struct{}),
	}
	if cfg.metricsEnabled {
		loop.metrics = newMetrics()
	}

	return loop, nil
}

// Run runs the loop on the calling goroutine, blocking until one of:
//
//   - [Loop.Quit] is observed: returns nil, and the loop may be Run again
//   - [Loop.Close] or [Loop.Shutdown] is observed: pending invocations are
//     drained, the loop is terminated, and Run returns nil
//   - ctx is done: returns ctx.Err(), and the loop may be Run again
//
// Run returns [ErrLoopAlreadyRunning] if the loop is running on another
// goroutine, [ErrReentrantRun] if called from a loop callback, and
// [ErrLoopTerminated] after termination.
//
// The calling goroutine is locked to its OS thread for the duration.
func (l *Loop) Run(ctx context.Context) error {
	if l.IsLoopThread() {
		return ErrReentrantRun
	}

	l.runMu.Lock()
	if !l.state.TryTransition(StateAwake, StateRunning) {
		l.runMu.Unlock()
		if l.state.IsTerminal() {
			return ErrLoopTerminated
		}
		return ErrLoopAlreadyRunning
	}
	gen := l.runGen.Add(1)
	l.runMu.Unlock()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	gid := getGoroutineID()
	l.loopGoroutineID.Store(gid)
	defer l.loopGoroutineID.CompareAndSwap(gid, 0)

	stop := context.AfterFunc(ctx, l.forceWake)
	defer stop()

	l.logDebug(logCategoryLoop, "loop started")

	return l.run(ctx, gen)
}

// run is the body of Run, on the loop goroutine.
func (l *Loop) run(ctx context.Context, gen uint64) error {
	for {
		l.tick()

		if l.state.Load() == StateTerminating {
			l.terminate()
			return nil
		}

		if l.quitGen.Load() == gen || ctx.Err() != nil {
			// fails only if Close won the race, in which case terminate
			if l.state.TryTransition(StateRunning, StateAwake) {
				l.logDebug(logCategoryLoop, "loop stopped")
				if l.quitGen.Load() == gen {
					return nil
				}
				return ctx.Err()
			}
			continue
		}

		if err := l.wait(ctx, gen); err != nil {
			l.logCritical("wake mechanism failed, terminating loop", err)
			for !l.state.IsTerminal() {
				current := l.state.Load()
				l.state.TryTransition(current, StateTerminating)
			}
			l.terminate()
			return err
		}
	}
}

// tick runs one iteration of due work.
func (l *Loop) tick() {
	l.runTimers()
	l.drainInvocations()
}

// drainInvocations runs the invocations pending at the start of the call.
// Invocations submitted by those callbacks run on the next tick, after any
// due timers.
func (l *Loop) drainInvocations() {
	l.ingressMu.Lock()
	remaining := l.ingress.Length()
	l.ingressMu.Unlock()

	if l.metrics != nil {
		l.metrics.queue.Update(remaining)
	}

	for remaining > 0 {
		l.ingressMu.Lock()
		n := l.ingress.popBatch(l.batchBuf[:], remaining)
		l.ingressMu.Unlock()
		if n == 0 {
			// cleared concurrently, see Close
			return
		}
		remaining -= n

		for i := 0; i < n; i++ {
			inv := l.batchBuf[i]
			l.batchBuf[i] = invocation{} // Clear for GC
			if m := l.metrics; m != nil {
				m.queueLatency.Record(timeNow().Sub(inv.enqueued))
				m.invocations.Add(1)
				m.tps.Increment()
			}
			l.safeExecute(logCategoryInvoke, inv.fn)
		}
	}
}

// wait blocks until there may be work, or until the next timer deadline,
// bounded by maxWait.
func (l *Loop) wait(ctx context.Context, gen uint64) error {
	if !l.state.TryTransition(StateRunning, StateSleeping) {
		return nil
	}
	// must be reset before the checks below, see wakeIfSleeping
	l.wakePending.Store(0)

	if l.hasPendingWork(ctx, gen) {
		l.state.TryTransition(StateSleeping, StateRunning)
		return nil
	}

	timeout := l.maxWait
	l.timerMu.Lock()
	next, ok := l.timers.next()
	l.timerMu.Unlock()
	if ok {
		timeout = min(timeout, next.Sub(timeNow()))
	}

	var err error
	if timeout > 0 {
		err = l.waker.wait(timeout)
	}

	l.state.TryTransition(StateSleeping, StateRunning)
	return err
}

// hasPendingWork re-checks everything that may have arrived between the
// last tick and the transition to StateSleeping.
func (l *Loop) hasPendingWork(ctx context.Context, gen uint64) bool {
	if l.state.Load() != StateSleeping || l.quitGen.Load() == gen || ctx.Err() != nil {
		return true
	}
	l.ingressMu.Lock()
	n := l.ingress.Length()
	l.ingressMu.Unlock()
	return n > 0
}

// Quit requests that the current Run return, after the current batch of
// due work completes. It may be called from any goroutine, including from a
// callback, is idempotent, and is a no-op if the loop is not running.
func (l *Loop) Quit() {
	l.runMu.Lock()
	running := l.state.IsRunning()
	if running {
		l.quitGen.Store(l.runGen.Load())
	}
	l.runMu.Unlock()
	if running {
		l.forceWake()
	}
}

// Invoke schedules fn to run on the loop goroutine. It may be called from
// any goroutine, including the loop goroutine, and never waits for fn to
// run. Invocations run in FIFO order.
//
// Invocations may be submitted before Run. Invoke fails with
// [ErrLoopTerminated] once the loop has been closed: fn is never silently
// dropped.
func (l *Loop) Invoke(fn func()) error {
	if fn == nil {
		return ErrNilCallback
	}
	if l.state.Load() == StateTerminated {
		return ErrLoopTerminated
	}

	l.ingressMu.Lock()
	if l.ingressClosed {
		l.ingressMu.Unlock()
		return ErrLoopTerminated
	}
	l.ingress.push(invocation{fn: fn, enqueued: timeNow()})
	l.ingressMu.Unlock()

	l.wakeIfSleeping()
	return nil
}

// wakeIfSleeping wakes the loop if it is blocked in wait, deduplicating
// concurrent wake-ups.
//
// The loop resets wakePending after entering StateSleeping and before
// re-checking for work, so either the loop observes the new work, or this
// observes StateSleeping and issues (or finds pending) a wake-up.
func (l *Loop) wakeIfSleeping() {
	if l.state.Load() != StateSleeping {
		return
	}
	if !l.wakePending.CompareAndSwap(0, 1) {
		return
	}
	l.forceWake()
}

// forceWake unconditionally signals the waker, unless it has been closed.
func (l *Loop) forceWake() {
	l.wakeMu.RLock()
	defer l.wakeMu.RUnlock()
	if l.wakerClosed {
		return
	}
	if err := l.waker.wake(); err != nil {
		l.logCritical("failed to wake loop", err)
	}
}

// Close terminates the loop.
//
// If the loop is running, Close only requests termination: the loop
// goroutine runs the invocations already queued, disarms all timers, and
// Run returns nil. Use [Loop.Shutdown] to wait for that to complete. If the
// loop is not running, there is no goroutine to run pending invocations, so
// they are discarded, and their count is logged.
//
// Close returns [ErrLoopTerminated] if the loop is already terminating or
// terminated.
func (l *Loop) Close() error {
	for {
		current := l.state.Load()
		switch current {
		case StateTerminating, StateTerminated:
			return ErrLoopTerminated
		}
		if !l.state.TryTransition(current, StateTerminating) {
			continue
		}
		if current == StateAwake {
			l.ingressMu.Lock()
			l.ingressClosed = true
			discarded := l.ingress.clear()
			l.ingressMu.Unlock()
			if discarded > 0 {
				l.logBuilder(logiface.LevelNotice, logCategoryLoop).
					Int64("discarded", int64(discarded)).
					Log("loop closed while not running, pending invocations discarded")
			}
			l.finalize()
			return nil
		}
		l.forceWake()
		return nil
	}
}

// Shutdown closes the loop, then waits until it has terminated or ctx is
// done. Unlike Close, it may be called repeatedly. Called from a loop
// callback, it cannot wait, and only requests termination.
func (l *Loop) Shutdown(ctx context.Context) error {
	_ = l.Close()
	if l.IsLoopThread() {
		return nil
	}
	select {
	case <-l.terminated:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel closed once the loop has terminated.
func (l *Loop) Done() <-chan struct{} {
	return l.terminated
}

// terminate performs the final drain, on the loop goroutine.
func (l *Loop) terminate() {
	l.ingressMu.Lock()
	l.ingressClosed = true
	l.ingressMu.Unlock()

	// no new invocations may arrive, so a single pass drains everything
	l.drainInvocations()

	l.logDebug(logCategoryLoop, "loop terminated")
	l.finalize()
}

// finalize releases resources and publishes StateTerminated.
func (l *Loop) finalize() {
	l.timerMu.Lock()
	l.timersClosed = true
	l.timers.reset()
	l.timerMu.Unlock()

	l.wakeMu.Lock()
	l.wakerClosed = true
	if err := l.waker.close(); err != nil {
		l.logCritical("failed to close waker", err)
	}
	l.wakeMu.Unlock()

	l.state.Store(StateTerminated)
	close(l.terminated)
}

// State returns the current state of the loop.
func (l *Loop) State() LoopState {
	return l.state.Load()
}

// ID returns the process-unique identifier of the loop, as used in log
// lines.
func (l *Loop) ID() uint64 {
	return l.id
}

// Metrics returns a snapshot of the loop's runtime statistics. It returns
// the zero value unless the loop was created with WithMetrics(true).
func (l *Loop) Metrics() MetricsSnapshot {
	if l.metrics == nil {
		return MetricsSnapshot{}
	}
	return l.metrics.Snapshot()
}

// safeExecute runs fn, recovering any panic. Recovered panics are counted,
// logged, and passed to the panic handler, if any.
func (l *Loop) safeExecute(source string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.handlePanic(PanicError{Value: r, Source: source, Stack: debug.Stack()})
		}
	}()
	fn()
}

func (l *Loop) handlePanic(pe PanicError) {
	if l.metrics != nil {
		l.metrics.panics.Add(1)
	}
	l.logPanic(pe)
	if l.panicHandler != nil {
		defer func() {
			// a panicking handler must not take down the loop
			_ = recover()
		}()
		l.panicHandler(pe)
	}
}

// IsLoopThread reports whether the caller is running on the loop goroutine.
func (l *Loop) IsLoopThread() bool {
	loopID := l.loopGoroutineID.Load()
	if loopID == 0 {
		return false
	}
	return getGoroutineID() == loopID
}

// getGoroutineID returns the current goroutine's ID.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
