package flame

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

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for flame and its sub-packages.
// By default, flame produces no log output.
//
// SetLogger is safe for concurrent use. Pass nil to restore the silent
// default.
//
// Log levels used by flame:
//   - [slog.LevelDebug]: pass plans, buffer sizes, pipeline creation
//   - [slog.LevelInfo]: lifecycle events (adapter selected, bounds computed)
//   - [slog.LevelWarn]: budget clamps, non-finite densities, release errors
//
// Example:
//
//	flame.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	listenersMu.Lock()
	fns := append([]func(*slog.Logger){}, listeners...)
	listenersMu.Unlock()
	for _, fn := range fns {
		fn(l)
	}
}

// Logger returns the current logger used by flame.
// Sub-packages call this to share the same logger configuration.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

var (
	listenersMu sync.Mutex
	listeners   []func(*slog.Logger)
)

// OnSetLogger registers fn to receive the logger on every SetLogger call.
// fn is invoked once immediately with the current logger. Sub-packages
// that keep their own logger pointer (internal/gpu) register here.
func OnSetLogger(fn func(*slog.Logger)) {
	listenersMu.Lock()
	listeners = append(listeners, fn)
	listenersMu.Unlock()
	fn(Logger())
}
