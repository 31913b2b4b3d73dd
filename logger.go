package fitsview

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/fitsview/internal/catalog"
	"github.com/gogpu/fitsview/internal/cube"
	"github.com/gogpu/fitsview/internal/gpu"
	"github.com/gogpu/fitsview/internal/hud"
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
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for fitsview and all its internal
// packages. By default, fitsview produces no log output.
//
// SetLogger is safe for concurrent use. Pass nil to restore silent logging.
//
// Log levels used by fitsview:
//   - [slog.LevelDebug]: GPU object creation, buffer sizes, HUD redraws
//   - [slog.LevelInfo]: lifecycle events (cube loaded, renderer ready)
//   - [slog.LevelWarn]: recoverable issues (skipped frames, unknown config keys)
//   - [slog.LevelError]: failed cube loads
//
// Example:
//
//	fitsview.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	gpu.SetLogger(l)
	cube.SetLogger(l)
	catalog.SetLogger(l)
	hud.SetLogger(l)
}

// Logger returns the current logger used by fitsview.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

func slogger() *slog.Logger { return loggerPtr.Load() }
