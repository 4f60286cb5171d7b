package eventloop

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// Log categories, also used as rate limit categories.
const (
	logCategoryLoop   = "loop"
	logCategoryInvoke = "invoke"
	logCategoryTimer  = "timer"
	logCategoryWake   = "wake"
)

// newLogLimiter builds the per-category limiter for error-class log lines.
// catrate panics on invalid rates, which is converted to an error here.
func newLogLimiter(rates map[time.Duration]int) (limiter *catrate.Limiter, err error) {
	if len(rates) == 0 {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			limiter = nil
			err = &RangeError{Message: fmt.Sprintf("eventloop: invalid log rates: %v", r), Cause: ErrInvalidArgument}
		}
	}()
	return catrate.NewLimiter(rates), nil
}

// allowLog reports whether an error-class line for category may be written.
func (l *Loop) allowLog(category string) bool {
	if l.logLimiter == nil {
		return true
	}
	_, ok := l.logLimiter.Allow(category)
	return ok
}

// logBuilder tags an event with the loop identity, or returns nil if the
// level is disabled (logiface builders are nil-safe).
func (l *Loop) logBuilder(level logiface.Level, category string) *logiface.Builder[logiface.Event] {
	b := l.logger.Build(level)
	if b == nil {
		return nil
	}
	return b.Uint64("loop", l.id).Str("category", category)
}

func (l *Loop) logDebug(category, msg string) {
	l.logBuilder(logiface.LevelDebug, category).Log(msg)
}

// logPanic logs a recovered callback panic, throttled per source.
func (l *Loop) logPanic(pe PanicError) {
	if l.logger == nil || !l.allowLog(pe.Source) {
		return
	}
	l.logBuilder(logiface.LevelError, pe.Source).
		Str("panic", fmt.Sprint(pe.Value)).
		Str("stack", string(pe.Stack)).
		Log("callback panicked")
}

// logDroppedTicks logs repeating timer ticks skipped because the loop was late.
func (l *Loop) logDroppedTicks(dropped int64, interval time.Duration) {
	if l.logger == nil || !l.allowLog(logCategoryTimer) {
		return
	}
	l.logBuilder(logiface.LevelWarning, logCategoryTimer).
		Int64("dropped", dropped).
		Dur("interval", interval).
		Log("repeating timer fell behind, ticks dropped")
}

// logCritical logs an unrecoverable loop-level error.
func (l *Loop) logCritical(msg string, err error) {
	defer func() {
		// never let a broken logger take down the loop goroutine
		_ = recover()
	}()
	l.logBuilder(logiface.LevelCritical, logCategoryWake).Err(err).Log(msg)
}
