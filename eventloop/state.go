package eventloop

import (
	"sync/atomic"
)

// LoopState represents the current state of the event loop.
//
// State Machine:
//
//	StateAwake (0) → StateRunning (3)          [Run()]
//	StateRunning (3) → StateSleeping (2)       [wait() via CAS]
//	StateSleeping (2) → StateRunning (3)       [wait() wake via CAS]
//	StateRunning (3) → StateAwake (0)          [Quit() observed, or ctx done]
//	StateRunning (3) → StateTerminating (4)    [Close()/Shutdown()]
//	StateSleeping (2) → StateTerminating (4)   [Close()/Shutdown()]
//	StateAwake (0) → StateTerminated (1)       [Close()/Shutdown() while idle]
//	StateTerminating (4) → StateTerminated (1) [final drain complete]
//	StateTerminated (1) → (terminal)
//
// Every transition is a CAS, except the final Store of StateTerminated.
type LoopState uint64

const (
	// StateAwake indicates the loop is not running: created, or returned from Run.
	StateAwake LoopState = 0
	// StateTerminated indicates the loop has been stopped permanently.
	StateTerminated LoopState = 1
	// StateSleeping indicates the loop is blocked waiting for work.
	StateSleeping LoopState = 2
	// StateRunning indicates the loop is actively processing work.
	StateRunning LoopState = 3
	// StateTerminating indicates termination has been requested but not completed.
	StateTerminating LoopState = 4
)

// String returns a human-readable representation of the state.
func (s LoopState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// loopStateCell holds a LoopState, for lock-free reads and CAS transitions.
// It is padded to its own cache line, since it is read on every Invoke.
type loopStateCell struct {
	_ [64]byte //nolint:unused
	v atomic.Uint64
	_ [56]byte //nolint:unused
}

// Load returns the current state.
func (s *loopStateCell) Load() LoopState {
	return LoopState(s.v.Load())
}

// Store sets the state unconditionally. Only used for StateTerminated,
// which is never left.
func (s *loopStateCell) Store(state LoopState) {
	s.v.Store(uint64(state))
}

// TryTransition moves from one state to another, reporting whether the
// state was from.
func (s *loopStateCell) TryTransition(from, to LoopState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

// IsTerminal reports whether Close has been called.
func (s *loopStateCell) IsTerminal() bool {
	switch s.Load() {
	case StateTerminating, StateTerminated:
		return true
	}
	return false
}

// IsRunning reports whether Run is executing, processing or sleeping.
func (s *loopStateCell) IsRunning() bool {
	switch s.Load() {
	case StateRunning, StateSleeping:
		return true
	}
	return false
}
