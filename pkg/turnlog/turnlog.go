// Package turnlog provides the default turn.Logger implementation,
// backed by github.com/charmbracelet/log for structured, leveled,
// colorized terminal output instead of a silent NoOpLogger default.
package turnlog

import (
	"os"

	charmlog "github.com/charmbracelet/log"

	"github.com/turnframe/turnframe/pkg/turn"
)

// CharmLogger adapts charmbracelet/log's *Logger to turn.Logger.
type CharmLogger struct {
	l *charmlog.Logger
}

// New builds a CharmLogger writing to stderr with the given prefix
// (typically the session id) and timestamps; caller reporting is off.
func New(prefix string) *CharmLogger {
	l := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportCaller:    false,
		ReportTimestamp: true,
		Prefix:          prefix,
	})
	return &CharmLogger{l: l}
}

// WithLevel builds a CharmLogger at a specific level ("debug", "info",
// "warn", "error"); unrecognized values fall back to info.
func WithLevel(prefix, level string) *CharmLogger {
	cl := New(prefix)
	cl.l.SetLevel(charmlog.InfoLevel)
	switch level {
	case "debug":
		cl.l.SetLevel(charmlog.DebugLevel)
	case "warn":
		cl.l.SetLevel(charmlog.WarnLevel)
	case "error":
		cl.l.SetLevel(charmlog.ErrorLevel)
	}
	return cl
}

func (c *CharmLogger) Debug(msg string, args ...interface{}) { c.l.Debug(msg, args...) }
func (c *CharmLogger) Info(msg string, args ...interface{})  { c.l.Info(msg, args...) }
func (c *CharmLogger) Warn(msg string, args ...interface{})  { c.l.Warn(msg, args...) }
func (c *CharmLogger) Error(msg string, args ...interface{}) { c.l.Error(msg, args...) }

// With returns a derived logger carrying the given key/value pairs on
// every subsequent call, matching charmbracelet/log's own With (useful
// for a per-session sub-logger scoped under Engine's process logger).
func (c *CharmLogger) With(args ...interface{}) turn.Logger {
	return &CharmLogger{l: c.l.With(args...)}
}

var _ turn.Logger = (*CharmLogger)(nil)
