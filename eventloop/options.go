// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"fmt"
	"time"

	"github.com/joeycumines/logiface"
)

const (
	// defaultMaxWait bounds a single wait, as a fallback poll.
	defaultMaxWait = 10 * time.Second
)

// defaultLogRates throttles error-class log lines, per category.
var defaultLogRates = map[time.Duration]int{
	time.Second: 5,
	time.Minute: 60,
}

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	logger         *logiface.Logger[logiface.Event]
	panicHandler   func(err error)
	logRates       map[time.Duration]int
	maxWait        time.Duration
	wakeMode       WakeMode
	metricsEnabled bool
}

// --- Loop Options ---

// LoopOption configures a Loop instance.
type LoopOption interface {
	applyLoop(*loopOptions) error
}

// loopOptionImpl implements LoopOption.
type loopOptionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (l *loopOptionImpl) applyLoop(opts *loopOptions) error {
	return l.applyLoopFunc(opts)
}

// WithLogger attaches a structured logger. A nil logger disables logging,
// which is also the default.
func WithLogger(logger *logiface.Logger[logiface.Event]) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMetrics enables runtime metrics collection on the Loop.
// When enabled, metrics can be accessed via Loop.Metrics().
func WithMetrics(enabled bool) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// WithWakeMode selects the mechanism used to block and wake the loop.
// See WakeMode documentation for available modes.
func WithWakeMode(mode WakeMode) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		switch mode {
		case WakeModeChannel, WakeModeFD:
		default:
			return &RangeError{Message: fmt.Sprintf("eventloop: unknown wake mode: %d", mode), Cause: ErrInvalidArgument}
		}
		opts.wakeMode = mode
		return nil
	}}
}

// WithMaxWait bounds how long the loop blocks in a single wait, even with
// no timers armed. It must be positive. Defaults to 10 seconds.
func WithMaxWait(d time.Duration) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if d <= 0 {
			return &RangeError{Message: "eventloop: max wait must be positive", Cause: ErrInvalidArgument}
		}
		opts.maxWait = d
		return nil
	}}
}

// WithPanicHandler registers a function that receives every [PanicError]
// recovered from a callback. It is called on the loop goroutine, after the
// panic has been logged. A panic within the handler itself is discarded.
func WithPanicHandler(handler func(err error)) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.panicHandler = handler
		return nil
	}}
}

// WithLogRateLimit configures the per-category rate limit applied to
// error-class log lines (callback panics, dropped ticks). The map uses the
// same format as [catrate.NewLimiter]. A nil or empty map disables limiting.
//
// [catrate.NewLimiter]: https://pkg.go.dev/github.com/joeycumines/go-catrate#NewLimiter
func WithLogRateLimit(rates map[time.Duration]int) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		for window, count := range rates {
			if window <= 0 || count <= 0 {
				return &RangeError{Message: fmt.Sprintf("eventloop: invalid log rate: %v: %d", window, count), Cause: ErrInvalidArgument}
			}
		}
		opts.logRates = rates
		return nil
	}}
}

// resolveLoopOptions applies LoopOption instances to loopOptions.
func resolveLoopOptions(opts []LoopOption) (*loopOptions, error) {
	cfg := &loopOptions{
		wakeMode: WakeModeChannel,
		maxWait:  defaultMaxWait,
		logRates: defaultLogRates,
	}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
