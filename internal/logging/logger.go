// Package logging builds the server's zerolog logger, following the
// teacher's internal/single/monitoring logger construction.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the logger's level and output format.
type Options struct {
	Level  string
	Format string // "json" or "console"
}

// New builds a zerolog.Logger writing JSON to stdout, or a human-readable
// console format when Format is "console".
func New(opts Options) zerolog.Logger {
	var output io.Writer = os.Stdout

	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if opts.Format == "console" {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Str("service", "chatd").
		Logger()
}
