package gojaeventloop

import (
	"sync"
	"testing"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-runloop/eventloop"
	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/require"
)

// newTestAdapter creates a bound adapter over a fresh loop, closed when the
// test ends.
func newTestAdapter(t *testing.T, loopOpts []eventloop.LoopOption, opts ...Option) (*eventloop.Loop, *goja.Runtime, *Adapter) {
	t.Helper()
	loop, err := eventloop.New(loopOpts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = loop.Close() })

	rt := goja.New()
	adapter, err := New(loop, rt, opts...)
	require.NoError(t, err)
	require.NoError(t, adapter.Bind())
	return loop, rt, adapter
}

// testEvent is a minimal logiface.Event implementation, recording the
// message and fields.
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

type testEventFactory struct{}

func (testEventFactory) NewEvent(level logiface.Level) *testEvent {
	return &testEvent{level: level}
}

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

func (r *testEventRecorder) Events() []*testEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*testEvent(nil), r.events...)
}

func newTestLogger(level logiface.Level) (*logiface.Logger[logiface.Event], *testEventRecorder) {
	recorder := &testEventRecorder{}
	return logiface.New[*testEvent](
		logiface.WithEventFactory[*testEvent](testEventFactory{}),
		logiface.WithWriter[*testEvent](recorder),
		logiface.WithLevel[*testEvent](level),
	).Logger(), recorder
}
