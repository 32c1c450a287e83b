package sprite

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for sprite and all its sub-packages.
// By default nothing is logged. Pass nil to restore the silent default.
//
// SetLogger is safe for concurrent use. Submitters registered with a
// renderer receive the new logger if they implement SetLogger(*slog.Logger).
//
// Log levels used by sprite:
//   - [slog.LevelDebug]: buffer growth, per-frame statistics
//   - [slog.LevelInfo]: GPU pipeline creation
//   - [slog.LevelWarn]: dropped commands, unknown resources, GPU failures
//
// Example:
//
//	sprite.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	sinksMu.Lock()
	defer sinksMu.Unlock()
	for s := range sinks {
		s.SetLogger(l)
	}
}

// Logger returns the current logger used by sprite.
// Sub-packages call this to share the same configuration.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// loggerSetter is implemented by collaborators that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

var (
	sinksMu sync.Mutex
	sinks   = map[loggerSetter]struct{}{}
)

// propagateLogger hands the current logger to v if it accepts one and
// keeps it registered for later SetLogger calls.
func propagateLogger(v any) {
	ls, ok := v.(loggerSetter)
	if !ok {
		return
	}
	sinksMu.Lock()
	sinks[ls] = struct{}{}
	sinksMu.Unlock()
	ls.SetLogger(Logger())
}

// forgetLogger stops propagating logger changes to v.
func forgetLogger(v any) {
	ls, ok := v.(loggerSetter)
	if !ok {
		return
	}
	sinksMu.Lock()
	delete(sinks, ls)
	sinksMu.Unlock()
}
