// Example: Cross-goroutine Invocation
//
// This example demonstrates:
// - Worker goroutines handing results back to the loop with Invoke
// - Loop-owned state, mutated only on the loop goroutine, without locks
// - A repeating fallback timer, guarding against a worker that never reports
//
// Run with: go run ./eventloop/examples/03_cross_goroutine/
package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/joeycumines/go-runloop/eventloop"
)

func main() {
	loop, err := eventloop.New()
	if err != nil {
		panic(err)
	}
	defer loop.Close()

	const workers = 5

	// owned by the loop goroutine
	results := make(map[int]time.Duration)

	for id := 0; id < workers; id++ {
		go func() {
			d := time.Duration(rand.IntN(100)) * time.Millisecond
			time.Sleep(d) // simulate work

			_ = loop.Invoke(func() {
				results[id] = d
				fmt.Printf("worker %d reported after %v (on loop: %v)\n", id, d, loop.IsLoopThread())
				if len(results) == workers {
					loop.Quit()
				}
			})
		}()
	}

	fallback := eventloop.NewTimer(loop)
	defer fallback.Close()
	_ = fallback.Start(eventloop.TimerModeRepeated, time.Second, func() {
		fmt.Println("fallback: giving up on workers")
		loop.Quit()
	})

	if err := loop.Run(context.Background()); err != nil {
		panic(err)
	}
	fallback.Stop()
	fmt.Printf("collected %d/%d results\n", len(results), workers)
}
