// Package gojaeventloop provides a bridge between the [eventloop] package and
// the [goja] JavaScript runtime, exposing the loop and its timers as
// JavaScript globals.
//
// # Overview
//
// The [Adapter] wraps an [eventloop.Loop] and a [goja.Runtime]. After calling
// [Adapter.Bind], a script drives the loop itself: it arms timers, then
// calls runEventLoop(), which returns once quitEventLoop() is called.
//
// # Bound JavaScript APIs
//
// Loop control:
//   - runEventLoop()
//   - quitEventLoop()
//   - invokeFromEventLoop(callback)
//
// Timers:
//   - new Timer(), with start(mode, interval, callback), stop(), restart(),
//     running(), interval(), setInterval(interval), close()
//   - Timer.singleShot(delay, callback)
//   - TimerMode.SingleShot, TimerMode.Repeated
//
// A Timer object must stay referenced by the script for as long as it should
// fire. Once unreachable it is disarmed, even if its own callback refers to
// it.
//
// Console:
//   - console.log, console.info, console.warn, console.error, console.debug
//
// Durations are numbers of milliseconds, or strings in Go duration syntax
// such as "1.5s". Go [time.Duration] values pass through. All are truncated
// to millisecond resolution.
//
// # Thread Safety
//
// A goja runtime is not safe for concurrent use. Scripts, and every callback
// they register, run on the goroutine that calls runEventLoop. Host code
// running on other goroutines hands work back with [Adapter.Invoke], which
// is the only method safe to call concurrently.
//
// # Errors
//
// Invalid arguments throw TypeError or RangeError. An exception thrown by a
// callback does not stop the loop: it is recovered as an
// [eventloop.PanicError], logged, and passed to the loop's panic handler.
//
// # Usage
//
//	loop, _ := eventloop.New()
//	defer loop.Close()
//	rt := goja.New()
//
//	adapter, _ := gojaeventloop.New(loop, rt)
//	_ = adapter.Bind()
//
//	_, err := rt.RunString(`
//	    Timer.singleShot(100, () => {
//	        console.log("hello from JS");
//	        quitEventLoop();
//	    });
//	    runEventLoop();
//	`)
//
// [eventloop]: github.com/joeycumines/go-runloop/eventloop
// [goja]: github.com/dop251/goja
package gojaeventloop
