// Package logging adapts zerolog to the key/value Logger used by the core
// service.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger writes structured events through zerolog.
type Logger struct {
	zl zerolog.Logger
}

// Options configures New.
type Options struct {
	Level   string
	Console bool
}

// New builds a Logger writing to w. A nil w writes to stderr.
func New(w io.Writer, opts Options) (*Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if opts.Console {
		w = zerolog.ConsoleWriter{Out: w, NoColor: true}
	} else if f, ok := w.(*os.File); ok {
		w = zerolog.SyncWriter(f)
	}
	zl := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &Logger{zl: zl}, nil
}

// Wrap adapts an existing zerolog logger.
func Wrap(zl zerolog.Logger) *Logger { return &Logger{zl: zl} }

// ParseLevel accepts zerolog level names. Empty means info.
func ParseLevel(s string) (zerolog.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	if s == "warning" {
		s = "warn"
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("parse log level %q: %w", s, err)
	}
	return level, nil
}

// Zerolog exposes the underlying logger.
func (l *Logger) Zerolog() zerolog.Logger { return l.zl }

// With returns a child logger carrying args on every event.
func (l *Logger) With(args ...any) *Logger {
	ctx := l.zl.With()
	eachPair(args, func(k string, v any) {
		if err, ok := v.(error); ok {
			ctx = ctx.AnErr(k, err)
			return
		}
		ctx = ctx.Interface(k, v)
	})
	return &Logger{zl: ctx.Logger()}
}

func (l *Logger) Debug(msg string, args ...any) { emit(l.zl.Debug(), msg, args) }
func (l *Logger) Info(msg string, args ...any)  { emit(l.zl.Info(), msg, args) }
func (l *Logger) Warn(msg string, args ...any)  { emit(l.zl.Warn(), msg, args) }
func (l *Logger) Error(msg string, args ...any) { emit(l.zl.Error(), msg, args) }

func emit(ev *zerolog.Event, msg string, args []any) {
	if ev == nil {
		return
	}
	eachPair(args, func(k string, v any) {
		if err, ok := v.(error); ok {
			ev.AnErr(k, err)
			return
		}
		ev.Interface(k, v)
	})
	ev.Msg(msg)
}

// eachPair walks alternating key/value args. A non-string key or a dangling
// value is logged under a positional name.
func eachPair(args []any, fn func(string, any)) {
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok || i+1 == len(args) {
			fn(fmt.Sprintf("arg%d", i), args[i])
			if !ok {
				i--
			}
			continue
		}
		fn(key, args[i+1])
	}
}
