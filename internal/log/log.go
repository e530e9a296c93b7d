// Package log provides the structured logging interface used throughout
// this module, a thin facade over github.com/go-kit/log in the style of
// github.com/tendermint/tendermint's libs/log package, backed by
// github.com/rs/zerolog as the concrete sink.
package log

import (
	"os"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/rs/zerolog"
)

// Logger is the logging interface every long-running component in this
// module accepts, mirroring tendermint's libs/log.Logger: With returns a
// derived logger carrying additional keyvals, Debug/Info/Error log a
// message with keyvals.
type Logger interface {
	Debug(msg string, keyvals ...interface{})
	Info(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})
	With(keyvals ...interface{}) Logger
}

type zerologLogger struct {
	kit kitlog.Logger
}

// NewLogger returns a Logger that writes newline-delimited JSON to w,
// using zerolog as the underlying sink for go-kit's structured-logging
// interface.
func NewLogger(w *os.File) Logger {
	zl := zerolog.New(w).With().Timestamp().Logger()
	return &zerologLogger{kit: &zerologKitAdapter{zl: zl}}
}

// NewTestLogger returns a Logger suitable for tests: human-readable,
// written to stderr, mirroring tendermint's log.TestingLogger().
func NewTestLogger() Logger {
	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
	return &zerologLogger{kit: &zerologKitAdapter{zl: zl}}
}

// NewNopLogger returns a Logger that discards everything, the default for
// a Registry constructed without an explicit logger.
func NewNopLogger() Logger {
	return &zerologLogger{kit: kitlog.NewNopLogger()}
}

func (l *zerologLogger) Debug(msg string, keyvals ...interface{}) {
	_ = kitlog.WithPrefix(l.kit, "level", "debug").Log(append([]interface{}{"msg", msg}, keyvals...)...)
}

func (l *zerologLogger) Info(msg string, keyvals ...interface{}) {
	_ = kitlog.WithPrefix(l.kit, "level", "info").Log(append([]interface{}{"msg", msg}, keyvals...)...)
}

func (l *zerologLogger) Error(msg string, keyvals ...interface{}) {
	_ = kitlog.WithPrefix(l.kit, "level", "error").Log(append([]interface{}{"msg", msg}, keyvals...)...)
}

func (l *zerologLogger) With(keyvals ...interface{}) Logger {
	return &zerologLogger{kit: kitlog.With(l.kit, keyvals...)}
}

// zerologKitAdapter adapts a zerolog.Logger to go-kit's kitlog.Logger
// interface (a single Log(keyvals ...interface{}) error method).
type zerologKitAdapter struct {
	zl zerolog.Logger
}

func (a *zerologKitAdapter) Log(keyvals ...interface{}) error {
	evt := a.zl.Info()
	var msg string
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, _ := keyvals[i].(string)
		if key == "msg" {
			msg, _ = keyvals[i+1].(string)
			continue
		}
		evt = evt.Interface(key, keyvals[i+1])
	}
	evt.Msg(msg)
	return nil
}
