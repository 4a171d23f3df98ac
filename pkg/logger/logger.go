// Package logger is the zerolog setup shared by the server, the CLI and the
// pipeline stages.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// tokenHintLength is how much of an approval token may appear in a log line
const tokenHintLength = 8

// Logger wraps zerolog.Logger with pipeline-specific context helpers
type Logger struct {
	zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json or console
	Output string // stdout or file path
}

// New creates a logger writing to cfg.Output. An output file that cannot be
// opened falls back to stdout.
func New(cfg Config) *Logger {
	var out io.Writer = os.Stdout
	if cfg.Output != "" && cfg.Output != "stdout" {
		if file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			out = file
		}
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	l := NewWriter(out, cfg.Level)
	l.Logger = l.With().Caller().Logger()
	return l
}

// NewWriter creates a JSON logger on w. Unknown or empty levels mean info.
func NewWriter(w io.Writer, level string) *Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return &Logger{Logger: zerolog.New(w).Level(lvl).With().Timestamp().Logger()}
}

// Nop returns a logger that discards everything. Used by tests.
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

func (l *Logger) with(fn func(zerolog.Context) zerolog.Context) *Logger {
	return &Logger{Logger: fn(l.With()).Logger()}
}

// WithComponent tags entries with the subsystem that wrote them
func (l *Logger) WithComponent(component string) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context {
		return c.Str("component", component)
	})
}

// WithSource tags entries with the feed being fetched
func (l *Logger) WithSource(id uint, name string) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context {
		return c.Uint("source_id", id).Str("source_name", name)
	})
}

// WithPostID adds a blog post ID to the logger
func (l *Logger) WithPostID(id uint) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context {
		return c.Uint("post_id", id)
	})
}

// WithToken adds a shortened approval token. The full token is a credential
// and never reaches the log.
func (l *Logger) WithToken(token string) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context {
		return c.Str("token", TokenHint(token))
	})
}

// WithJob tags entries with the scheduled job name
func (l *Logger) WithJob(name string) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context {
		return c.Str("job", name)
	})
}

// TokenHint returns enough of a token to correlate log lines
func TokenHint(token string) string {
	if len(token) <= tokenHintLength {
		return "***"
	}
	return token[:tokenHintLength] + "..."
}
