package gojaeventloop

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-runloop/eventloop"
)

// maxDurationMillis is the largest millisecond count representable as a
// time.Duration.
const maxDurationMillis = float64(math.MaxInt64 / int64(time.Millisecond))

// bindTimer installs the Timer constructor and the TimerMode enum.
func (a *Adapter) bindTimer() error {
	ctor := a.runtime.ToValue(a.timerConstructor).ToObject(a.runtime)
	if err := ctor.Set("singleShot", a.singleShot); err != nil {
		return err
	}
	if err := a.runtime.Set("Timer", ctor); err != nil {
		return err
	}

	mode := a.runtime.NewObject()
	if err := mode.Set("SingleShot", int(eventloop.TimerModeSingleShot)); err != nil {
		return err
	}
	if err := mode.Set("Repeated", int(eventloop.TimerModeRepeated)); err != nil {
		return err
	}
	freeze, ok := goja.AssertFunction(a.runtime.Get("Object").ToObject(a.runtime).Get("freeze"))
	if !ok {
		return errors.New("gojaeventloop: Object.freeze is not a function")
	}
	if _, err := freeze(goja.Undefined(), mode); err != nil {
		return err
	}
	return a.runtime.Set("TimerMode", mode)
}

// timerConstructor implements `new Timer()`. The returned object owns an
// [eventloop.Timer], which is disarmed once the object is unreachable. A
// script must keep the object referenced (or call close) for as long as the
// timer should fire: a reference held only by the timer's own callback does
// not keep it alive.
func (a *Adapter) timerConstructor(call goja.ConstructorCall) *goja.Object {
	timer := eventloop.NewTimer(a.loop)
	obj := call.This

	set := func(name string, fn func(goja.FunctionCall) goja.Value) {
		if err := obj.Set(name, fn); err != nil {
			panic(a.runtime.NewGoError(err))
		}
	}

	set("start", func(call goja.FunctionCall) goja.Value {
		mode := a.timerModeArg(call.Argument(0))
		interval := a.durationArg(call.Argument(1))
		fn := a.callableArg(call, 2, "Timer.start")
		if err := timer.Start(mode, interval, a.wrapCallable(fn)); err != nil {
			a.throw(err)
		}
		return goja.Undefined()
	})
	set("stop", func(call goja.FunctionCall) goja.Value {
		timer.Stop()
		return goja.Undefined()
	})
	set("restart", func(call goja.FunctionCall) goja.Value {
		if err := timer.Restart(); err != nil {
			a.throw(err)
		}
		return goja.Undefined()
	})
	set("running", func(call goja.FunctionCall) goja.Value {
		return a.runtime.ToValue(timer.Running())
	})
	set("interval", func(call goja.FunctionCall) goja.Value {
		return a.runtime.ToValue(timer.Interval().Milliseconds())
	})
	set("setInterval", func(call goja.FunctionCall) goja.Value {
		if err := timer.SetInterval(a.durationArg(call.Argument(0))); err != nil {
			a.throw(err)
		}
		return goja.Undefined()
	})
	set("close", func(call goja.FunctionCall) goja.Value {
		timer.Close()
		return goja.Undefined()
	})

	return nil
}

// timerModeArg converts a TimerMode argument, throwing a TypeError for
// anything other than one of the TimerMode values.
func (a *Adapter) timerModeArg(v goja.Value) eventloop.TimerMode {
	var mode eventloop.TimerMode
	switch x := v.Export().(type) {
	case int64:
		mode = eventloop.TimerMode(x)
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			panic(a.runtime.NewTypeError(fmt.Sprintf("%s is not a TimerMode", v)))
		}
		mode = eventloop.TimerMode(x)
	default:
		panic(a.runtime.NewTypeError(fmt.Sprintf("%s is not a TimerMode", v)))
	}
	switch mode {
	case eventloop.TimerModeSingleShot, eventloop.TimerModeRepeated:
		return mode
	}
	panic(a.runtime.NewTypeError(fmt.Sprintf("%s is not a TimerMode", v)))
}

// singleShot binding for Goja: Timer.singleShot(delay, callback)
func (a *Adapter) singleShot(call goja.FunctionCall) goja.Value {
	delay := a.durationArg(call.Argument(0))
	fn := a.callableArg(call, 1, "Timer.singleShot")
	if err := a.loop.SingleShot(delay, a.wrapCallable(fn)); err != nil {
		a.throw(err)
	}
	return goja.Undefined()
}

// durationArg converts a duration argument, or throws.
func (a *Adapter) durationArg(v goja.Value) time.Duration {
	d, err := toDuration(v)
	if err != nil {
		a.throw(err)
	}
	return d
}

// toDuration converts a JavaScript value to a duration, truncated to
// millisecond resolution. Numbers are milliseconds, strings use Go duration
// syntax, and undefined is zero. Negative values are passed through, to be
// rejected by the timer.
func toDuration(v goja.Value) (time.Duration, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return 0, nil
	}
	var d time.Duration
	switch x := v.Export().(type) {
	case time.Duration:
		d = x
	case string:
		var err error
		if d, err = time.ParseDuration(x); err != nil {
			return 0, &eventloop.TypeError{Message: fmt.Sprintf("gojaeventloop: invalid duration %q", x), Cause: eventloop.ErrInvalidArgument}
		}
	case int64:
		if math.Abs(float64(x)) > maxDurationMillis {
			return 0, durationRangeError(v)
		}
		d = time.Duration(x) * time.Millisecond
	case float64:
		if math.IsNaN(x) || math.Abs(x) > maxDurationMillis {
			return 0, durationRangeError(v)
		}
		d = time.Duration(x * float64(time.Millisecond))
	default:
		return 0, &eventloop.TypeError{Message: fmt.Sprintf("gojaeventloop: %s is not a duration", v), Cause: eventloop.ErrInvalidArgument}
	}
	return d.Truncate(time.Millisecond), nil
}

func durationRangeError(v goja.Value) error {
	return &eventloop.RangeError{Message: fmt.Sprintf("gojaeventloop: duration %s out of range", v), Cause: eventloop.ErrInvalidArgument}
}
