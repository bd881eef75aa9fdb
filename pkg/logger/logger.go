// Package logger builds the slog loggers kbase commands and the API server
// write through. Console output goes to stderr so stdout stays pipeable.
package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// Format selects how records are encoded.
type Format int

const (
	// FormatText is slog's key=value text encoding.
	FormatText Format = iota
	// FormatJSON is one JSON object per record.
	FormatJSON
	// FormatPretty is charmbracelet/log output for interactive terminals.
	FormatPretty
)

type config struct {
	level  slog.Level
	format Format
	source bool
	out    []io.Writer
	attrs  []slog.Attr
}

// New creates a *slog.Logger. Without options it writes Info text records
// to os.Stderr.
func New(opts ...Option) *slog.Logger {
	c := &config{level: slog.LevelInfo}
	for _, opt := range opts {
		opt(c)
	}

	h := c.handler()
	if len(c.attrs) > 0 {
		h = h.WithAttrs(c.attrs)
	}
	return slog.New(h)
}

func (c *config) writer() io.Writer {
	switch len(c.out) {
	case 0:
		return os.Stderr
	case 1:
		return c.out[0]
	default:
		return io.MultiWriter(c.out...)
	}
}

func (c *config) handler() slog.Handler {
	w := c.writer()
	ho := &slog.HandlerOptions{Level: c.level, AddSource: c.source}

	switch c.format {
	case FormatPretty:
		level := charmlog.InfoLevel
		if c.level <= slog.LevelDebug {
			level = charmlog.DebugLevel
		}
		return charmlog.NewWithOptions(w, charmlog.Options{
			Level:           level,
			ReportTimestamp: true,
			TimeFormat:      time.Kitchen,
			ReportCaller:    c.source,
		})
	case FormatJSON:
		return slog.NewJSONHandler(w, ho)
	default:
		return slog.NewTextHandler(w, ho)
	}
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
