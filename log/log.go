// Package log builds the slog logger used by the CLI and by sessions.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the handler encoding.
type Format string

const (
	// FormatText writes logfmt-style key=value lines.
	FormatText Format = "text"

	// FormatJSON writes one JSON object per line.
	FormatJSON Format = "json"
)

// Option configures the logger built by New.
type Option func(*loggerConfig)

type loggerConfig struct {
	writer    io.Writer
	format    Format
	level     slog.Level
	addSource bool
}

// defaultLoggerConfig returns the default configuration.
func defaultLoggerConfig() loggerConfig {
	return loggerConfig{
		writer: os.Stderr,
		format: FormatText,
		level:  slog.LevelInfo,
	}
}

// WithLevel sets the minimum log level to report.
func WithLevel(level slog.Level) Option {
	return func(c *loggerConfig) {
		c.level = level
	}
}

// WithFormat sets the output encoding.
func WithFormat(format Format) Option {
	return func(c *loggerConfig) {
		c.format = format
	}
}

// WithWriter sets the destination. Defaults to stderr so that example
// output on stdout stays readable.
func WithWriter(w io.Writer) Option {
	return func(c *loggerConfig) {
		c.writer = w
	}
}

// WithSource enables reporting of source location (file/line).
func WithSource(enabled bool) Option {
	return func(c *loggerConfig) {
		c.addSource = enabled
	}
}

// New creates a logger with the given options.
func New(opts ...Option) *slog.Logger {
	cfg := defaultLoggerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.writer == nil {
		cfg.writer = io.Discard
	}

	hopts := &slog.HandlerOptions{Level: cfg.level, AddSource: cfg.addSource}
	var h slog.Handler
	if cfg.format == FormatJSON {
		h = slog.NewJSONHandler(cfg.writer, hopts)
	} else {
		h = slog.NewTextHandler(cfg.writer, hopts)
	}
	return slog.New(h)
}

// ParseLevel parses debug, info, warn or error, case-insensitively.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// ParseFormat parses text or json.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON:
		return f, nil
	case "":
		return FormatText, nil
	}
	return FormatText, fmt.Errorf("invalid log format %q", s)
}
