package gojaeventloop

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/joeycumines/logiface"
)

// adapterOptions holds configuration for an [Adapter] instance.
type adapterOptions struct {
	ctx     context.Context
	console io.Writer
	logger  *logiface.Logger[logiface.Event]
}

// Option configures an [Adapter] instance. Options are applied during
// adapter construction.
type Option interface {
	applyOption(*adapterOptions) error
}

// optionFunc implements [Option] via a closure.
type optionFunc struct {
	fn func(*adapterOptions) error
}

func (o *optionFunc) applyOption(opts *adapterOptions) error {
	return o.fn(opts)
}

// WithContext sets the context passed to [eventloop.Loop.Run] by the
// runEventLoop global. Cancelling it makes runEventLoop throw. Defaults to
// [context.Background].
func WithContext(ctx context.Context) Option {
	return &optionFunc{fn: func(opts *adapterOptions) error {
		if ctx == nil {
			return errors.New("gojaeventloop: context must not be nil")
		}
		opts.ctx = ctx
		return nil
	}}
}

// WithConsoleOutput sets where console output is written, one line per
// call. A nil writer discards it. Defaults to [os.Stdout].
func WithConsoleOutput(w io.Writer) Option {
	return &optionFunc{fn: func(opts *adapterOptions) error {
		opts.console = w
		return nil
	}}
}

// WithLogger mirrors console output to a structured logger, mapping each
// console method to the matching level.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionFunc{fn: func(opts *adapterOptions) error {
		opts.logger = logger
		return nil
	}}
}

// resolveOptions applies the given options to a default [adapterOptions].
func resolveOptions(opts []Option) (*adapterOptions, error) {
	cfg := &adapterOptions{
		ctx:     context.Background(),
		console: os.Stdout,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyOption(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
