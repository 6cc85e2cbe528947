package cliconfig

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger returns a console logger writing to w at the named level.
// An unknown level falls back to info.
func Logger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Logger()
}
