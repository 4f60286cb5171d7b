package eventloop

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWakeMode_String(t *testing.T) {
	assert.Equal(t, "channel", WakeModeChannel.String())
	assert.Equal(t, "fd", WakeModeFD.String())
	assert.Equal(t, "unknown", WakeMode(7).String())
}

func testWaker(t *testing.T, w waker) {
	t.Helper()

	// times out
	start := time.Now()
	require.NoError(t, w.wait(20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)

	// pending wake-up returns immediately, and multiple coalesce
	require.NoError(t, w.wake())
	require.NoError(t, w.wake())
	start = time.Now()
	require.NoError(t, w.wait(5*time.Second))
	assert.Less(t, time.Since(start), time.Second)

	// zero timeout never blocks
	start = time.Now()
	require.NoError(t, w.wait(0))
	assert.Less(t, time.Since(start), time.Second)

	// woken from another goroutine
	go func() {
		time.Sleep(10 * time.Millisecond)
		assert.NoError(t, w.wake())
	}()
	start = time.Now()
	require.NoError(t, w.wait(5*time.Second))
	assert.Less(t, time.Since(start), time.Second)

	require.NoError(t, w.close())
}

func TestChanWaker(t *testing.T) {
	testWaker(t, newChanWaker())
}

func TestFDWaker(t *testing.T) {
	w, err := newWaker(WakeModeFD)
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		assert.ErrorIs(t, err, ErrWakeModeUnsupported)
		assert.Nil(t, w)
		return
	}
	require.NoError(t, err)
	testWaker(t, w)
}

func TestNewWaker_Default(t *testing.T) {
	w, err := newWaker(WakeModeChannel)
	require.NoError(t, err)
	assert.IsType(t, &chanWaker{}, w)
}

func TestPollTimeoutMillis(t *testing.T) {
	for _, tc := range []struct {
		in       time.Duration
		expected int
	}{
		{0, 0},
		{-time.Second, 0},
		{time.Nanosecond, 1},
		{time.Millisecond, 1},
		{time.Millisecond + 1, 2},
		{1500 * time.Millisecond, 1500},
		{time.Duration(1<<62) * time.Nanosecond, 1<<31 - 1},
	} {
		assert.Equal(t, tc.expected, pollTimeoutMillis(tc.in), "%v", tc.in)
	}
}
