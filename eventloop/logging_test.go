package eventloop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogLimiter(t *testing.T) {
	limiter, err := newLogLimiter(nil)
	require.NoError(t, err)
	assert.Nil(t, limiter)

	limiter, err = newLogLimiter(defaultLogRates)
	require.NoError(t, err)
	assert.NotNil(t, limiter)

	limiter, err = newLogLimiter(map[time.Duration]int{time.Second: 10, time.Minute: 5})
	assert.Nil(t, limiter)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestLogging_PanicsRateLimitedPerCategory(t *testing.T) {
	logger, recorder := newTestLogger(logiface.LevelError)
	loop := newTestLoop(t,
		WithLogger(logger),
		WithLogRateLimit(map[time.Duration]int{time.Minute: 2}),
	)
	defer loop.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, loop.Invoke(func() { panic("invoke") }))
		require.NoError(t, loop.SingleShot(0, func() { panic("timer") }))
	}
	require.NoError(t, loop.SingleShot(10*time.Millisecond, loop.Quit))
	require.NoError(t, loop.Run(context.Background()))

	counts := map[any]int{}
	for _, e := range recorder.Events() {
		if e.level == logiface.LevelError {
			counts[e.fields["category"]]++
			assert.Equal(t, "callback panicked", e.msg)
			assert.NotEmpty(t, e.fields["stack"])
		}
	}
	assert.Equal(t, map[any]int{logCategoryInvoke: 2, logCategoryTimer: 2}, counts)
}

func TestLogging_EventFields(t *testing.T) {
	logger, recorder := newTestLogger(logiface.LevelDebug)
	loop := newTestLoop(t, WithLogger(logger))
	defer loop.Close()

	require.NoError(t, loop.Invoke(loop.Quit))
	require.NoError(t, loop.Run(context.Background()))

	msgs := recorder.Messages(logiface.LevelDebug)
	assert.Contains(t, msgs, "loop started")
	assert.Contains(t, msgs, "loop stopped")
	for _, e := range recorder.Events() {
		assert.NotEmpty(t, e.fields["loop"])
		assert.NotEmpty(t, e.fields["category"])
	}
}

func TestLogging_NilLoggerIsSafe(t *testing.T) {
	loop := newTestLoop(t)
	defer loop.Close()

	loop.logDebug(logCategoryLoop, "ignored")
	loop.logPanic(PanicError{Value: "x", Source: logCategoryInvoke})
	loop.logDroppedTicks(3, time.Second)
	loop.logCritical("ignored", errors.New("ignored"))
}

// panicWriter fails every write by panicking.
type panicWriter struct{}

func (panicWriter) Write(*testEvent) error { panic("broken writer") }

func TestLogging_CriticalSurvivesBrokenLogger(t *testing.T) {
	logger := logiface.New[*testEvent](
		logiface.WithEventFactory[*testEvent](testEventFactory{}),
		logiface.WithWriter[*testEvent](panicWriter{}),
		logiface.WithLevel[*testEvent](logiface.LevelDebug),
	).Logger()
	loop := newTestLoop(t, WithLogger(logger))
	defer loop.Close()

	assert.NotPanics(t, func() {
		loop.logCritical("wake failed", errors.New("boom"))
	})
}
