// Example: Basic Event Loop Usage
//
// This example demonstrates the fundamental usage of the event loop:
// - Creating a loop
// - Invoking callbacks, before and during Run
// - Scheduling a single-shot timer
// - Quitting, and running again
//
// Run with: go run ./eventloop/examples/01_basic_usage/
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/joeycumines/go-runloop/eventloop"
)

func main() {
	// Create a context with timeout for the entire example
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	loop, err := eventloop.New()
	if err != nil {
		panic(err)
	}
	defer loop.Close()

	// Invocations queued before Run execute in FIFO order once it starts
	_ = loop.Invoke(func() {
		fmt.Println("Invoke 1: queued before Run")
	})
	_ = loop.Invoke(func() {
		fmt.Println("Invoke 2: queued before Run")

		// invoked from the loop itself, runs on the next iteration
		_ = loop.Invoke(func() {
			fmt.Println("Invoke 3: queued from a callback")
		})
	})

	_ = loop.SingleShot(100*time.Millisecond, func() {
		fmt.Println("SingleShot: fires after 100ms, quitting")
		loop.Quit()
	})

	if err := loop.Run(ctx); err != nil {
		fmt.Printf("Run failed: %v\n", err)
		return
	}
	fmt.Printf("Run returned, state: %v\n", loop.State())

	// A loop that quit may be run again
	_ = loop.Invoke(func() {
		fmt.Println("Second run")
		loop.Quit()
	})
	if err := loop.Run(ctx); err != nil {
		fmt.Printf("Run failed: %v\n", err)
	}
}
