// Example: Shutdown Handling
//
// This example demonstrates proper shutdown patterns:
// - Graceful shutdown with Shutdown(), draining pending invocations
// - Context cancellation, which returns from Run but keeps the loop usable
// - Shutdown from within a callback
//
// Run with: go run ./eventloop/examples/04_shutdown/
package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joeycumines/go-runloop/eventloop"
)

func main() {
	gracefulShutdownExample()
	contextCancellationExample()
	shutdownFromCallbackExample()
}

func gracefulShutdownExample() {
	fmt.Println("\n=== Graceful Shutdown ===")

	loop, err := eventloop.New()
	if err != nil {
		panic(err)
	}

	runDone := make(chan error, 1)
	go func() { runDone <- loop.Run(context.Background()) }()

	for i := 1; i <= 3; i++ {
		_ = loop.Invoke(func() {
			fmt.Printf("Task %d: running\n", i)
			time.Sleep(20 * time.Millisecond)
		})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := loop.Shutdown(shutdownCtx); err != nil {
		fmt.Printf("Shutdown error: %v\n", err)
	}
	fmt.Printf("Run returned: %v, state: %v\n", <-runDone, loop.State())

	if err := loop.Invoke(func() {}); errors.Is(err, eventloop.ErrLoopTerminated) {
		fmt.Println("Invoke after shutdown rejected:", err)
	}
}

func contextCancellationExample() {
	fmt.Println("\n=== Context Cancellation ===")

	loop, err := eventloop.New()
	if err != nil {
		panic(err)
	}
	defer loop.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err = loop.Run(ctx)
	fmt.Printf("Run returned: %v, state: %v\n", err, loop.State())

	// the loop was not closed, so it may run again
	_ = loop.Invoke(func() {
		fmt.Println("Running again after cancellation")
		loop.Quit()
	})
	if err := loop.Run(context.Background()); err != nil {
		fmt.Printf("Run failed: %v\n", err)
	}
}

func shutdownFromCallbackExample() {
	fmt.Println("\n=== Shutdown From Callback ===")

	loop, err := eventloop.New()
	if err != nil {
		panic(err)
	}

	_ = loop.SingleShot(50*time.Millisecond, func() {
		fmt.Println("Timer: shutting down from the loop")
		// does not block on the loop goroutine
		_ = loop.Shutdown(context.Background())
		// still accepted: the final drain has not started
		_ = loop.Invoke(func() {
			fmt.Println("Drained during termination")
		})
	})

	err = loop.Run(context.Background())
	fmt.Printf("Run returned: %v, state: %v\n", err, loop.State())
	<-loop.Done()
}
