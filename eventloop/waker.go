package eventloop

import (
	"time"
)

// WakeMode selects how the loop blocks while idle, and how other goroutines
// interrupt that block.
type WakeMode int

const (
	// WakeModeChannel blocks on a buffered channel plus a reusable
	// [time.Timer]. It is the default, and is available on all platforms.
	WakeModeChannel WakeMode = iota

	// WakeModeFD blocks in poll(2) on an eventfd (Linux) or self-pipe
	// (Darwin). Useful when the loop goroutine must sit in a syscall, e.g.
	// to share an OS thread with native code. Other platforms return
	// [ErrWakeModeUnsupported] from [New].
	WakeModeFD
)

// String returns a human-readable representation of the mode.
func (m WakeMode) String() string {
	switch m {
	case WakeModeChannel:
		return "channel"
	case WakeModeFD:
		return "fd"
	default:
		return "unknown"
	}
}

// waker is the blocking primitive used by the loop goroutine.
//
// wait and close are only called from the loop goroutine (or after it has
// exited). wake may be called from any goroutine, any number of times, and
// must never block.
type waker interface {
	// wait blocks until wake is called or timeout elapses. A timeout <= 0
	// consumes any pending wake-up without blocking.
	wait(timeout time.Duration) error
	wake() error
	close() error
}

func newWaker(mode WakeMode) (waker, error) {
	switch mode {
	case WakeModeFD:
		w, err := newFDWaker()
		if err != nil {
			return nil, err
		}
		return w, nil
	default:
		return newChanWaker(), nil
	}
}

// chanWaker is the channel-based waker.
type chanWaker struct {
	ch    chan struct{}
	timer *time.Timer
}

func newChanWaker() *chanWaker {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return &chanWaker{
		ch:    make(chan struct{}, 1),
		timer: t,
	}
}

func (w *chanWaker) wait(timeout time.Duration) error {
	if timeout <= 0 {
		select {
		case <-w.ch:
		default:
		}
		return nil
	}
	w.timer.Reset(timeout)
	select {
	case <-w.ch:
	case <-w.timer.C:
	}
	// Go 1.23+: Stop guarantees no stale value is received after Reset
	w.timer.Stop()
	return nil
}

func (w *chanWaker) wake() error {
	select {
	case w.ch <- struct{}{}:
	default:
		// already signalled
	}
	return nil
}

func (w *chanWaker) close() error {
	w.timer.Stop()
	return nil
}

// pollTimeoutMillis converts a wait duration to a poll(2) timeout.
// Ceiling rounding: if 0 < d < 1ms, round up to 1ms, so a near deadline never
// degrades into a busy loop.
func pollTimeoutMillis(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	ms := d / time.Millisecond
	if d%time.Millisecond != 0 {
		ms++
	}
	const maxInt32 = 1<<31 - 1
	if ms > maxInt32 {
		return maxInt32
	}
	return int(ms)
}
