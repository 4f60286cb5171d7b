// Package eventloop provides a single-goroutine event loop for Go, with
// cross-goroutine invocation and drift-free timers.
//
// # Architecture
//
// A [Loop] owns two sources of work: a FIFO queue of pending invocations,
// fed by [Loop.Invoke] from any goroutine, and a table of timers ordered by
// deadline, armed via [Timer.Start] or [Loop.SingleShot]. [Loop.Run] turns
// the calling goroutine into the loop goroutine, on which every callback
// runs. No two callbacks of the same loop ever run concurrently.
//
// Each tick:
//  1. Timer callbacks, earliest deadline first, ties in arming order
//  2. Invocations pending when the drain started, in FIFO order
//
// Between ticks, the loop blocks until the next timer deadline or until it
// is woken by Invoke, timer arming, [Loop.Quit], [Loop.Close], or context
// cancellation. A bounded fallback wait ([WithMaxWait]) applies regardless.
//
// # Timers
//
// A [Timer] is referenced weakly by its loop: dropping the last reference to
// an armed Timer disarms it. Repeating timers schedule each deadline from
// the previous scheduled deadline, so they do not accumulate drift, and
// deadlines missed while the loop was busy are skipped rather than queued.
//
// # Lifecycle
//
//	StateAwake ──Run──▶ StateRunning ⇄ StateSleeping
//	     ▲                   │
//	     └──Quit / ctx done──┘
//	StateRunning ──Close──▶ StateTerminating ──drain──▶ StateTerminated
//	StateAwake ──Close──▶ StateTerminated
//
// A loop that has returned from Run because of Quit or context cancellation
// may be Run again. Close and Shutdown are permanent: afterwards Invoke and
// timer arming fail with [ErrLoopTerminated].
//
// # Error Handling
//
// Panics in callbacks are recovered as [PanicError], logged (rate limited
// per category, see [WithLogRateLimit]), and passed to the handler
// registered with [WithPanicHandler]. They never corrupt loop state.
//
// # Usage
//
//	loop, err := eventloop.New(eventloop.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer loop.Close()
//
//	fallback := eventloop.NewTimer(loop)
//	_ = fallback.Start(eventloop.TimerModeRepeated, 100*time.Millisecond, loop.Quit)
//	defer fallback.Close()
//
//	_ = loop.SingleShot(10*time.Millisecond, func() {
//	    go func() {
//	        _ = loop.Invoke(func() {
//	            fmt.Println("invoked from another goroutine")
//	            loop.Quit()
//	        })
//	    }()
//	})
//
//	if err := loop.Run(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
package eventloop
