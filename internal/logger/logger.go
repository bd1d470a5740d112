package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ServiceName is stamped on every log line.
const ServiceName = "exstem-session"

// Setup initializes the global zerolog logger for the server, writing to stdout.
//   - level: trace, debug, info, warn, error, fatal or panic (info on typos)
//   - format: "pretty" for console output, anything else for JSON lines
func Setup(level, format string) zerolog.Logger {
	return New(os.Stdout, level, format)
}

// SetupCLI is Setup for command line tools whose stdout carries their
// actual output (hashes, reports). Logs go to stderr.
func SetupCLI(level, format string) zerolog.Logger {
	return New(os.Stderr, level, format)
}

// New builds a logger on out. Durations are logged in milliseconds so
// request latency and tick lag read the same everywhere.
func New(out io.Writer, level, format string) zerolog.Logger {
	if format == "pretty" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.DurationFieldUnit = time.Millisecond

	return zerolog.New(out).
		With().
		Timestamp().
		Str("service", ServiceName).
		Caller().
		Logger()
}
