package glvk

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	l := newNopLogger()
	loggerPtr.Store(l)
}

// SetLogger configures the logger for glvk and all its sub-packages.
// By default, glvk produces no log output. Call SetLogger to enable logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Contexts created without WithLogger follow the new logger, and so do
// their devices when they accept one.
//
// Log levels used by glvk:
//   - [slog.LevelDebug]: staging, flush and barrier diagnostics
//   - [slog.LevelInfo]: lifecycle events (image allocated, respecified, ghosted)
//   - [slog.LevelWarn]: performance warnings (CPU copies, GPU stalls)
//
// Example:
//
//	// Enable info-level logging to stderr:
//	glvk.SetLogger(slog.Default())
//
//	// Enable debug-level logging for full diagnostics:
//	glvk.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	liveMu.Lock()
	defer liveMu.Unlock()
	for c := range live {
		c.setLogger(l)
	}
}

// Logger returns the current logger used by glvk.
// Backends call this to share the same logger configuration without
// introducing import cycles.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// loggerSetter is implemented by devices that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

// propagateLogger passes the logger to a device if it implements the
// loggerSetter interface.
func propagateLogger(dev any, l *slog.Logger) {
	if ls, ok := dev.(loggerSetter); ok {
		ls.SetLogger(l)
	}
}

// live holds the open contexts that follow the package logger.
var (
	liveMu sync.Mutex
	live   = make(map[*Context]struct{})
)

func track(c *Context) {
	liveMu.Lock()
	live[c] = struct{}{}
	liveMu.Unlock()
}

func untrack(c *Context) {
	liveMu.Lock()
	delete(live, c)
	liveMu.Unlock()
}
