// Package examples contains runnable example programs demonstrating
// the eventloop package functionality.
//
// # Examples
//
// The examples directory contains the following subdirectories:
//
//   - 01_basic_usage: Fundamental event loop operations
//   - 02_timers: Single-shot and repeating timers, including drift-free ticking
//   - 03_cross_goroutine: Invoking callbacks on the loop from worker goroutines
//   - 04_shutdown: Graceful shutdown handling
//
// # Running Examples
//
// Each example can be run from the repository root:
//
//	go run ./eventloop/examples/01_basic_usage/
//	go run ./eventloop/examples/02_timers/
//	go run ./eventloop/examples/03_cross_goroutine/
//	go run ./eventloop/examples/04_shutdown/
package examples
