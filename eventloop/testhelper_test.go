package eventloop

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/require"
)

// waitForRunning waits until the loop is running (processing or sleeping).
func waitForRunning(t *testing.T, loop *Loop) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for !loop.state.IsRunning() {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for loop to start running")
		default:
			runtime.Gosched()
		}
	}
}

// waitLoopState waits for a loop to reach a specific state within a timeout.
func waitLoopState(t *testing.T, loop *Loop, expected LoopState, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for loop.State() != expected && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if state := loop.State(); state != expected {
		t.Fatalf("Loop failed to reach %v state (got %v)", expected, state)
	}
}

// startLoop runs loop in a new goroutine, returning a channel that receives
// the result of Run. The loop is shut down when the test ends.
func startLoop(t *testing.T, loop *Loop) <-chan error {
	t.Helper()
	runDone := make(chan error, 1)
	go func() { runDone <- loop.Run(context.Background()) }()
	waitForRunning(t, loop)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = loop.Shutdown(ctx)
	})
	return runDone
}

// waitRun waits for the result of Run, failing the test on timeout.
func waitRun(t *testing.T, runDone <-chan error, timeout time.Duration) error {
	t.Helper()
	select {
	case err := <-runDone:
		return err
	case <-time.After(timeout):
		t.Fatal("timed out waiting for Run to return")
		return nil
	}
}

func newTestLoop(t *testing.T, opts ...LoopOption) *Loop {
	t.Helper()
	loop, err := New(opts...)
	require.NoError(t, err)
	return loop
}

// testEvent is a minimal logiface.Event implementation for testing the
// structured logging paths.
type testEvent struct {
	logiface.UnimplementedEvent
	fields map[string]any
	msg    string
	level  logiface.Level
}

func (e *testEvent) Level() logiface.Level { return e.level }

func (e *testEvent) AddField(key string, val any) {
	if e.fields == nil {
		e.fields = make(map[string]any)
	}
	e.fields[key] = val
}

func (e *testEvent) AddMessage(msg string) bool {
	e.msg = msg
	return true
}

// testEventFactory creates testEvent instances.
type testEventFactory struct{}

func (testEventFactory) NewEvent(level logiface.Level) *testEvent {
	return &testEvent{level: level}
}

// testEventRecorder collects written events.
type testEventRecorder struct {
	events []*testEvent
	mu     sync.Mutex
}

func (r *testEventRecorder) Write(event *testEvent) error {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of the recorded events.
func (r *testEventRecorder) Events() []*testEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*testEvent(nil), r.events...)
}

// Messages returns the messages of recorded events at level.
func (r *testEventRecorder) Messages(level logiface.Level) []string {
	var msgs []string
	for _, e := range r.Events() {
		if e.level == level {
			msgs = append(msgs, e.msg)
		}
	}
	return msgs
}

// newTestLogger returns a logger that records events, at level.
func newTestLogger(level logiface.Level) (*logiface.Logger[logiface.Event], *testEventRecorder) {
	recorder := &testEventRecorder{}
	typedLogger := logiface.New[*testEvent](
		logiface.WithEventFactory[*testEvent](testEventFactory{}),
		logiface.WithWriter[*testEvent](recorder),
		logiface.WithLevel[*testEvent](level),
	)
	return typedLogger.Logger(), recorder
}
