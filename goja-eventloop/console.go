package gojaeventloop

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"github.com/joeycumines/logiface"
)

// consoleLevels maps console methods to log levels.
var consoleLevels = [...]struct {
	name  string
	level logiface.Level
}{
	{"log", logiface.LevelInformational},
	{"info", logiface.LevelInformational},
	{"warn", logiface.LevelWarning},
	{"error", logiface.LevelError},
	{"debug", logiface.LevelDebug},
}

// bindConsole installs the console global.
func (a *Adapter) bindConsole() error {
	console := a.runtime.NewObject()
	for _, m := range consoleLevels {
		level := m.level
		if err := console.Set(m.name, func(call goja.FunctionCall) goja.Value {
			a.consoleWrite(level, call.Arguments)
			return goja.Undefined()
		}); err != nil {
			return err
		}
	}
	return a.runtime.Set("console", console)
}

// consoleWrite formats args space separated, like a browser console, and
// writes the line to the configured writer and logger.
func (a *Adapter) consoleWrite(level logiface.Level, args []goja.Value) {
	var b strings.Builder
	for i, arg := range args {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(a.formatConsoleArg(arg))
	}
	msg := b.String()

	if a.console != nil {
		_, _ = fmt.Fprintln(a.console, msg)
	}
	a.logger.Build(level).Str("source", "console").Log(msg)
}

// formatConsoleArg renders plain objects and arrays as JSON, and everything
// else by its string conversion.
func (a *Adapter) formatConsoleArg(v goja.Value) string {
	if obj, ok := v.(*goja.Object); ok {
		if _, isFn := goja.AssertFunction(obj); !isFn && obj.ClassName() != "Error" {
			if b, err := obj.MarshalJSON(); err == nil {
				return string(b)
			}
		}
	}
	return v.String()
}
