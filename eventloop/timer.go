package eventloop

import (
	"fmt"
	"runtime"
	"time"
	"weak"
)

// TimerMode selects whether a Timer fires once or repeatedly.
type TimerMode int

const (
	// TimerModeSingleShot fires once, then disarms.
	TimerModeSingleShot TimerMode = iota
	// TimerModeRepeated fires every interval until stopped.
	TimerModeRepeated
)

// String returns a human-readable representation of the mode.
func (m TimerMode) String() string {
	switch m {
	case TimerModeSingleShot:
		return "SingleShot"
	case TimerModeRepeated:
		return "Repeated"
	default:
		return "Unknown"
	}
}

// Timer fires a callback on the loop goroutine, once or repeatedly.
//
// The loop references an armed Timer only weakly: a Timer that becomes
// unreachable is disarmed, and its scheduling slot is released once the
// garbage collector runs its cleanup. The caller must hold a reference for
// as long as the timer should fire. A reference held only by the timer's
// own callback does not count, since the loop does not retain the callback
// strongly. Call Close to release the slot deterministically.
//
// All methods are safe to call from any goroutine. Stop guarantees no
// further firing only when called on the loop goroutine; from another
// goroutine a firing that has already started may still complete.
//
// Repeating timers are drift-free: each deadline is computed from the
// previous scheduled deadline, not from when the callback ran. Deadlines the
// loop was too busy to honour are skipped, not queued.
type Timer struct {
	// Prevent copying
	_ [0]func()

	loop     *Loop
	callback func()
	cleanup  runtime.Cleanup
	interval time.Duration
	index    int
	mode     TimerMode
	closed   bool
}

// timerCleanup is the argument for the GC cleanup of a Timer. It must not
// reference the Timer.
type timerCleanup struct {
	loop  *Loop
	index int
	epoch uint64
}

func releaseTimerSlot(c timerCleanup) {
	c.loop.timerMu.Lock()
	c.loop.timers.releaseOwned(c.index, c.epoch)
	c.loop.timerMu.Unlock()
}

// NewTimer creates a disarmed Timer, scheduled on loop, which must not be
// nil.
func NewTimer(loop *Loop) *Timer {
	t := &Timer{loop: loop}
	loop.timerMu.Lock()
	index, epoch := loop.timers.alloc()
	loop.timers.slots[index].owner = weak.Make(t)
	loop.timerMu.Unlock()
	t.index = index
	t.cleanup = runtime.AddCleanup(t, releaseTimerSlot, timerCleanup{loop: loop, index: index, epoch: epoch})
	return t
}

// Start arms the timer, replacing any previous schedule. A zero interval
// fires as soon as possible, which for a repeating timer means once per loop
// iteration.
func (t *Timer) Start(mode TimerMode, interval time.Duration, fn func()) error {
	if fn == nil {
		return ErrNilCallback
	}
	if interval < 0 {
		return ErrNegativeInterval
	}
	if mode != TimerModeSingleShot && mode != TimerModeRepeated {
		return &RangeError{Message: fmt.Sprintf("eventloop: unknown timer mode: %d", mode), Cause: ErrInvalidArgument}
	}

	l := t.loop
	l.timerMu.Lock()
	if err := t.checkLocked(); err != nil {
		l.timerMu.Unlock()
		return err
	}
	t.mode = mode
	t.interval = interval
	t.callback = fn
	l.timers.arm(t.index, timeNow().Add(interval))
	l.timerMu.Unlock()

	l.wakeIfSleeping()
	return nil
}

// Restart re-arms the timer with the parameters of the last Start, counting
// the interval from now.
func (t *Timer) Restart() error {
	l := t.loop
	l.timerMu.Lock()
	if err := t.checkLocked(); err != nil {
		l.timerMu.Unlock()
		return err
	}
	if t.callback == nil {
		l.timerMu.Unlock()
		return ErrNilCallback
	}
	l.timers.arm(t.index, timeNow().Add(t.interval))
	l.timerMu.Unlock()

	l.wakeIfSleeping()
	return nil
}

// Stop disarms the timer. It is a no-op if the timer is not armed.
func (t *Timer) Stop() {
	l := t.loop
	l.timerMu.Lock()
	if !t.closed {
		l.timers.disarm(t.index)
	}
	l.timerMu.Unlock()
}

// Running reports whether the timer is armed. A single-shot timer is
// disarmed before its callback runs.
func (t *Timer) Running() bool {
	l := t.loop
	l.timerMu.Lock()
	defer l.timerMu.Unlock()
	return !t.closed && l.timers.isArmed(t.index)
}

// Interval returns the interval of the last Start or SetInterval.
func (t *Timer) Interval() time.Duration {
	t.loop.timerMu.Lock()
	defer t.loop.timerMu.Unlock()
	return t.interval
}

// Mode returns the mode of the last Start.
func (t *Timer) Mode() TimerMode {
	t.loop.timerMu.Lock()
	defer t.loop.timerMu.Unlock()
	return t.mode
}

// Deadline returns the next scheduled firing, if armed.
func (t *Timer) Deadline() (time.Time, bool) {
	l := t.loop
	l.timerMu.Lock()
	defer l.timerMu.Unlock()
	if t.closed || !l.timers.isArmed(t.index) {
		return time.Time{}, false
	}
	return l.timers.slots[t.index].deadline, true
}

// SetInterval changes the interval. If the timer is armed it is re-armed,
// counting the new interval from now.
func (t *Timer) SetInterval(interval time.Duration) error {
	if interval < 0 {
		return ErrNegativeInterval
	}
	l := t.loop
	l.timerMu.Lock()
	if t.closed {
		l.timerMu.Unlock()
		return ErrTimerClosed
	}
	t.interval = interval
	armed := l.timers.isArmed(t.index)
	if armed {
		l.timers.arm(t.index, timeNow().Add(interval))
	}
	l.timerMu.Unlock()

	if armed {
		l.wakeIfSleeping()
	}
	return nil
}

// Close stops the timer and releases its scheduling slot. Subsequent calls
// to Start, Restart and SetInterval fail with [ErrTimerClosed]. Close is
// idempotent.
func (t *Timer) Close() {
	l := t.loop
	l.timerMu.Lock()
	if t.closed {
		l.timerMu.Unlock()
		return
	}
	t.closed = true
	t.callback = nil
	l.timers.release(t.index)
	l.timerMu.Unlock()
	t.cleanup.Stop()
}

// checkLocked validates that the timer may be armed.
// CALLER MUST HOLD Loop.timerMu.
func (t *Timer) checkLocked() error {
	if t.closed {
		return ErrTimerClosed
	}
	if t.loop.timersClosed {
		return ErrLoopTerminated
	}
	return nil
}

// SingleShot runs fn once on the loop goroutine, after delay. The loop owns
// the underlying timer until it fires, so no reference needs to be held.
func (l *Loop) SingleShot(delay time.Duration, fn func()) error {
	if fn == nil {
		return ErrNilCallback
	}
	if delay < 0 {
		return ErrNegativeInterval
	}

	l.timerMu.Lock()
	if l.timersClosed {
		l.timerMu.Unlock()
		return ErrLoopTerminated
	}
	index, _ := l.timers.alloc()
	l.timers.slots[index].detached = fn
	l.timers.arm(index, timeNow().Add(delay))
	l.timerMu.Unlock()

	l.wakeIfSleeping()
	return nil
}

// runTimers fires every timer due at the start of the call, in deadline
// order, ties broken by arming order.
func (l *Loop) runTimers() {
	l.timerMu.Lock()
	l.dueBuf = l.timers.popDue(timeNow(), l.dueBuf[:0])
	l.timerMu.Unlock()

	for i := range l.dueBuf {
		f := l.dueBuf[i]
		l.dueBuf[i] = firing{}

		fn, dropped, ok := l.prepareFiring(&f)
		if dropped > 0 {
			if l.metrics != nil {
				l.metrics.droppedTicks.Add(uint64(dropped))
			}
			l.logDroppedTicks(dropped, f.interval)
		}
		if !ok {
			continue
		}
		if m := l.metrics; m != nil {
			m.timerLateness.Record(timeNow().Sub(f.scheduled))
			m.timerFirings.Add(1)
			m.tps.Increment()
		}
		l.safeExecute(logCategoryTimer, fn)
	}
	l.dueBuf = l.dueBuf[:0]
}

// prepareFiring re-validates a collected firing, since an earlier callback
// in the same batch may have stopped or re-armed it, then disarms or
// reschedules it before the callback runs.
func (l *Loop) prepareFiring(f *firing) (fn func(), dropped int64, ok bool) {
	l.timerMu.Lock()
	defer l.timerMu.Unlock()

	tt := &l.timers
	s := &tt.slots[f.index]
	if !s.armed || s.gen != f.gen {
		return nil, 0, false
	}

	if s.detached != nil {
		fn = s.detached
		tt.release(f.index)
		return fn, 0, true
	}

	owner := s.owner.Value()
	if owner == nil {
		// collected, the cleanup releases the slot
		tt.disarm(f.index)
		return nil, 0, false
	}

	if owner.mode == TimerModeRepeated {
		var next time.Time
		next, dropped = nextDeadline(f.scheduled, owner.interval, timeNow())
		f.interval = owner.interval
		tt.arm(f.index, next)
	} else {
		tt.disarm(f.index)
	}
	return owner.callback, dropped, true
}

// nextDeadline returns the first deadline after now on the grid
// scheduled + k*interval, and the number of grid points skipped. A zero
// interval reschedules at now.
func nextDeadline(scheduled time.Time, interval time.Duration, now time.Time) (time.Time, int64) {
	if interval <= 0 {
		return now, 0
	}
	next := scheduled.Add(interval)
	if next.After(now) {
		return next, 0
	}
	k := int64(now.Sub(scheduled)/interval) + 1
	return scheduled.Add(time.Duration(k) * interval), k - 1
}
