// Command runloop runs a JavaScript file against an event loop.
//
// The script drives the loop itself, arming timers then calling
// runEventLoop(), which returns once quitEventLoop() is called. See package
// gojaeventloop for the available globals.
//
// Usage:
//
//	runloop [flags] script.js
//
// Logs are written to stderr as JSON, console output to stdout.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-runloop/eventloop"
	gojaeventloop "github.com/joeycumines/go-runloop/goja-eventloop"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// config is the parsed command line.
type config struct {
	script   string
	logLevel logiface.Level
	wakeMode eventloop.WakeMode
	timeout  time.Duration
	metrics  bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run is main, minus the process, returning the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		_, _ = fmt.Fprintln(stderr, err)
		return 2
	}

	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(stderr)),
		stumpy.L.WithLevel(cfg.logLevel),
	).Logger()

	source, err := os.ReadFile(cfg.script)
	if err != nil {
		logger.Err().Err(err).Str("script", cfg.script).Log("failed to read script")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	if err := runScript(ctx, cfg, string(source), stdout, logger); err != nil {
		logger.Err().Err(err).Str("script", cfg.script).Log("script failed")
		return 1
	}
	return 0
}

// parseFlags parses the command line, which must name exactly one script.
func parseFlags(args []string, output io.Writer) (*config, error) {
	cfg := &config{}
	fs := flag.NewFlagSet("runloop", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		_, _ = fmt.Fprintln(output, "Usage: runloop [flags] script.js")
		fs.PrintDefaults()
	}

	logLevel := fs.String("log-level", logiface.LevelWarning.String(), "Log level (emerg, alert, crit, err, warning, notice, info, debug, trace, disabled)")
	wakeMode := fs.String("wake-mode", eventloop.WakeModeChannel.String(), "How the idle loop blocks (channel, fd)")
	fs.DurationVar(&cfg.timeout, "timeout", 0, "Stop the loop after this long (0 for no limit)")
	fs.BoolVar(&cfg.metrics, "metrics", false, "Log loop metrics on exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, errors.New("runloop: expected exactly one script argument")
	}
	cfg.script = fs.Arg(0)

	var err error
	if cfg.logLevel, err = parseLevel(*logLevel); err != nil {
		return nil, err
	}
	if cfg.wakeMode, err = parseWakeMode(*wakeMode); err != nil {
		return nil, err
	}
	if cfg.timeout < 0 {
		return nil, errors.New("runloop: timeout must not be negative")
	}
	return cfg, nil
}

func parseLevel(s string) (logiface.Level, error) {
	for level := logiface.LevelDisabled; level <= logiface.LevelTrace; level++ {
		if level.String() == s {
			return level, nil
		}
	}
	return 0, fmt.Errorf("runloop: unknown log level %q", s)
}

func parseWakeMode(s string) (eventloop.WakeMode, error) {
	for _, mode := range [...]eventloop.WakeMode{eventloop.WakeModeChannel, eventloop.WakeModeFD} {
		if mode.String() == s {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("runloop: unknown wake mode %q", s)
}

// runScript evaluates source on a fresh loop, which is closed on return.
func runScript(ctx context.Context, cfg *config, source string, stdout io.Writer, logger *logiface.Logger[logiface.Event]) error {
	loop, err := eventloop.New(
		eventloop.WithLogger(logger),
		eventloop.WithWakeMode(cfg.wakeMode),
		eventloop.WithMetrics(cfg.metrics),
	)
	if err != nil {
		return err
	}
	defer func() {
		if cfg.metrics {
			logMetrics(logger, loop.Metrics())
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = loop.Shutdown(shutdownCtx)
	}()

	rt := goja.New()
	adapter, err := gojaeventloop.New(loop, rt,
		gojaeventloop.WithContext(ctx),
		gojaeventloop.WithConsoleOutput(stdout),
	)
	if err != nil {
		return err
	}
	if err := adapter.Bind(); err != nil {
		return err
	}

	_, err = rt.RunScript(cfg.script, source)
	return err
}

func logMetrics(logger *logiface.Logger[logiface.Event], m eventloop.MetricsSnapshot) {
	logger.Info().
		Uint64("invocations", m.Invocations).
		Uint64("timer_firings", m.TimerFirings).
		Uint64("dropped_ticks", m.DroppedTicks).
		Uint64("panics", m.Panics).
		Float64("tps", m.TPS).
		Dur("queue_latency_p99", m.QueueLatency.P99).
		Dur("timer_lateness_p99", m.TimerLateness.P99).
		Int("queue_max", m.Queue.Max).
		Log("loop metrics")
}
