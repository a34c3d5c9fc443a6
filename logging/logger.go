// Package logging holds the structured logger shared by the hand tracker and
// its sub-packages.  By default nothing is logged.
package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards every record and reports itself disabled so callers skip
// formatting entirely
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger replaces the logger used by all packages in the module.  Passing
// nil restores the silent default.
//
// Levels used:
//   - [slog.LevelDebug]: per frame diagnostics (dropped frames, probe values)
//   - [slog.LevelInfo]: point lifecycle events (created, promoted, removed)
//   - [slog.LevelWarn]: frames that could not be processed
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
