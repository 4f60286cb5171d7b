// Example: Timers
//
// This example demonstrates:
// - Repeating timers, scheduled from their previous deadline (no drift)
// - Single-shot timers, re-armed from their own callback
// - Stopping a timer from another timer's callback
// - Dropped ticks, when the loop is busy past a deadline
//
// Run with: go run ./eventloop/examples/02_timers/
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/joeycumines/go-runloop/eventloop"
)

func main() {
	loop, err := eventloop.New(eventloop.WithMetrics(true))
	if err != nil {
		panic(err)
	}
	defer loop.Close()

	start := time.Now()

	// Repeating: ticks at 50ms, 100ms, 150ms... relative to start
	ticks := 0
	ticker := eventloop.NewTimer(loop)
	defer ticker.Close()
	_ = ticker.Start(eventloop.TimerModeRepeated, 50*time.Millisecond, func() {
		ticks++
		fmt.Printf("tick %d at %v\n", ticks, time.Since(start).Round(time.Millisecond))
		if ticks == 4 {
			// busy past the next two deadlines, which are dropped
			time.Sleep(120 * time.Millisecond)
		}
	})

	// Single-shot, re-armed with a growing delay (a simple backoff)
	delay := 10 * time.Millisecond
	backoff := eventloop.NewTimer(loop)
	defer backoff.Close()
	var retry func()
	retry = func() {
		fmt.Printf("retry after %v\n", delay)
		delay *= 2
		if delay <= 160*time.Millisecond {
			_ = backoff.Start(eventloop.TimerModeSingleShot, delay, retry)
		}
	}
	_ = backoff.Start(eventloop.TimerModeSingleShot, delay, retry)

	// Stop the ticker and quit after 600ms
	_ = loop.SingleShot(600*time.Millisecond, func() {
		ticker.Stop()
		fmt.Println("ticker stopped")
		loop.Quit()
	})

	if err := loop.Run(context.Background()); err != nil {
		panic(err)
	}

	m := loop.Metrics()
	fmt.Printf("timer firings: %d, dropped ticks: %d, P99 lateness: %v\n",
		m.TimerFirings, m.DroppedTicks, m.TimerLateness.P99)
}
