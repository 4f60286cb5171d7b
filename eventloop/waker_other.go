//go:build !linux && !darwin

package eventloop

import (
	"time"
)

// fdWaker is unavailable on this platform.
type fdWaker struct{}

func newFDWaker() (*fdWaker, error) {
	return nil, ErrWakeModeUnsupported
}

func (*fdWaker) wait(time.Duration) error { return ErrWakeModeUnsupported }

func (*fdWaker) wake() error { return ErrWakeModeUnsupported }

func (*fdWaker) close() error { return nil }
