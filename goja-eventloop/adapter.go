// Copyright 2025 Joseph Cumines
//
// goja-eventloop: Goja adapter for the event loop library

package gojaeventloop

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-runloop/eventloop"
	"github.com/joeycumines/logiface"
)

// Adapter bridges a Goja runtime to an [eventloop.Loop].
type Adapter struct {
	runtime *goja.Runtime
	loop    *eventloop.Loop
	ctx     context.Context
	console io.Writer
	logger  *logiface.Logger[logiface.Event]
}

// New creates a new Goja adapter for the given event loop and runtime.
func New(loop *eventloop.Loop, runtime *goja.Runtime, opts ...Option) (*Adapter, error) {
	if loop == nil {
		return nil, errors.New("gojaeventloop: loop must not be nil")
	}
	if runtime == nil {
		return nil, errors.New("gojaeventloop: runtime must not be nil")
	}

	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	return &Adapter{
		runtime: runtime,
		loop:    loop,
		ctx:     cfg.ctx,
		console: cfg.console,
		logger:  cfg.logger,
	}, nil
}

// Loop returns the event loop
func (a *Adapter) Loop() *eventloop.Loop {
	return a.loop
}

// Runtime returns the Goja runtime
func (a *Adapter) Runtime() *goja.Runtime {
	return a.runtime
}

// Bind installs the loop globals in the Goja global scope.
//
// This must be called before executing JavaScript code that uses them.
//
// After calling Bind(), the following globals become available in JavaScript:
//   - runEventLoop() → undefined, returns once quitEventLoop is called
//   - quitEventLoop() → undefined
//   - invokeFromEventLoop(callback) → undefined
//   - Timer : Timer constructor, with static Timer.singleShot(delay, callback)
//   - TimerMode : frozen {SingleShot, Repeated}
//   - console : log, info, warn, error, debug
func (a *Adapter) Bind() error {
	if err := a.runtime.Set("runEventLoop", a.runEventLoop); err != nil {
		return err
	}
	if err := a.runtime.Set("quitEventLoop", a.quitEventLoop); err != nil {
		return err
	}
	if err := a.runtime.Set("invokeFromEventLoop", a.invokeFromEventLoop); err != nil {
		return err
	}
	if err := a.bindTimer(); err != nil {
		return fmt.Errorf("gojaeventloop: failed to bind Timer: %w", err)
	}
	if err := a.bindConsole(); err != nil {
		return fmt.Errorf("gojaeventloop: failed to bind console: %w", err)
	}
	return nil
}

// Invoke schedules fn to be called on the loop goroutine, with args. It is
// safe to call from any goroutine, and is how host code hands results back
// to JavaScript. The args must not be used by the caller after the call.
//
// An exception thrown by fn is recovered by the loop, as an
// [eventloop.PanicError] wrapping the [*goja.Exception].
func (a *Adapter) Invoke(fn goja.Callable, args ...goja.Value) error {
	if fn == nil {
		return eventloop.ErrNilCallback
	}
	return a.loop.Invoke(a.wrapCallable(fn, args...))
}

// wrapCallable adapts fn to a loop callback, rethrowing JS exceptions as Go
// panics.
func (a *Adapter) wrapCallable(fn goja.Callable, args ...goja.Value) func() {
	return func() {
		if _, err := fn(goja.Undefined(), args...); err != nil {
			panic(err)
		}
	}
}

// callableArg extracts a function argument, or throws a TypeError.
func (a *Adapter) callableArg(call goja.FunctionCall, index int, name string) goja.Callable {
	fn, ok := goja.AssertFunction(call.Argument(index))
	if !ok {
		panic(a.runtime.NewTypeError(name + " requires a function argument"))
	}
	return fn
}

// throw converts err to a JavaScript exception: TypeError and RangeError
// keep their JS types, anything else becomes a GoError.
func (a *Adapter) throw(err error) {
	var typeErr *eventloop.TypeError
	if errors.As(err, &typeErr) {
		panic(a.runtime.NewTypeError(err.Error()))
	}
	var rangeErr *eventloop.RangeError
	if errors.As(err, &rangeErr) {
		if obj, e := a.runtime.New(a.runtime.Get("RangeError"), a.runtime.ToValue(err.Error())); e == nil {
			panic(obj)
		}
	}
	panic(a.runtime.NewGoError(err))
}

// runEventLoop binding for Goja. Runs the loop on the calling goroutine,
// which must be the one executing the script.
func (a *Adapter) runEventLoop(call goja.FunctionCall) goja.Value {
	if err := a.loop.Run(a.ctx); err != nil {
		a.throw(err)
	}
	return goja.Undefined()
}

// quitEventLoop binding for Goja
func (a *Adapter) quitEventLoop(call goja.FunctionCall) goja.Value {
	a.loop.Quit()
	return goja.Undefined()
}

// invokeFromEventLoop binding for Goja
func (a *Adapter) invokeFromEventLoop(call goja.FunctionCall) goja.Value {
	fn := a.callableArg(call, 0, "invokeFromEventLoop")
	if err := a.loop.Invoke(a.wrapCallable(fn)); err != nil {
		a.throw(err)
	}
	return goja.Undefined()
}
