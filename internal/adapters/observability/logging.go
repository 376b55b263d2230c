package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger returns the process logger tagged with service. APP_ENV=dev (or
// development) writes console lines, anything else JSON. An unknown level
// falls back to info.
func NewLogger(env, level, service string) zerolog.Logger {
	return newLogger(os.Stdout, env, level, service)
}

func newLogger(out io.Writer, env, level, service string) zerolog.Logger {
	if env == "dev" || env == "development" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Str("service", service).Logger()
}
