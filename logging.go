package handtrack

import (
	"log/slog"

	"github.com/swdee/go-handtrack/logging"
)

// SetLogger sets the structured logger used by the hand tracker and all of
// its sub packages.  Passing nil disables logging, which is the default.
func SetLogger(l *slog.Logger) {
	logging.SetLogger(l)
}

// Logger returns the current logger
func Logger() *slog.Logger {
	return logging.Logger()
}
