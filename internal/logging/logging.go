// Package logging configures the zerolog logger shared across the engine,
// mirroring the way the teacher threads its *Config through constructors.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a console-friendly zerolog.Logger. Pass os.Stdout in
// production CLI use; tests typically pass io.Discard.
func New(w io.Writer, level zerolog.Level) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Default returns a human-readable console logger at info level, used by
// cmd/vortex-cli when the caller hasn't configured anything else.
func Default() zerolog.Logger {
	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(console).Level(zerolog.InfoLevel).With().Timestamp().Logger()
}

// Nop returns a logger that discards everything, for tests that don't want
// log noise but still need a non-nil logger.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
