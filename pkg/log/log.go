// Package log configures the process-wide zerolog logger.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	hferrors "hfoutcome/pkg/errors"
)

// Setup initializes the global log level and output. When console is true the
// human-readable writer is used instead of JSON.
func Setup(level string, console bool) zerolog.Logger {
	var out io.Writer = os.Stderr
	if console {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(out).With().Timestamp().Logger().Level(ToLevel(level))

	// Route pipeline warnings (for example ResourceCleanupWarning) through the
	// structured logger instead of the stdlib fallback.
	hferrors.SetWarningHandler(func(w error) {
		evt := logger.Warn()
		if obj, ok := w.(zerolog.LogObjectMarshaler); ok {
			evt = evt.EmbedObject(obj)
		}
		evt.Msg(w.Error())
	})

	return logger
}

// ToLevel parses a level string, defaulting to info.
func ToLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
