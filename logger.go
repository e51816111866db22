package blit

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/blit/internal/batch"
	"github.com/gogpu/blit/internal/residency"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely.
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

// SetLogger configures the logger for blit and its engine internals.
// By default, blit produces no log output.
//
// SetLogger is safe for concurrent use. Pass nil to restore the default
// silent behavior.
//
// Log levels used by blit:
//   - [slog.LevelDebug]: encode budgets, residency transitions, submissions
//   - [slog.LevelInfo]: accelerator lifecycle
//   - [slog.LevelWarn]: software fallbacks, acceleration disabled after a
//     submission failure
//
// The emulator has its own logger; see emulator.SetLogger.
//
// Example:
//
//	blit.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	batch.SetLogger(l)
	residency.SetLogger(l)
}

// Logger returns the current logger used by blit.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
