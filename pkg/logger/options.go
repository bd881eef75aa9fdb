package logger

import (
	"io"
	"log/slog"
)

// Option configures a logger created with New or OpenFile.
type Option func(*config)

// WithDebug lowers the level to Debug when debug is set.
func WithDebug(debug bool) Option {
	return func(c *config) {
		if debug {
			c.level = slog.LevelDebug
		}
	}
}

// WithLevel sets the minimum level explicitly.
func WithLevel(level slog.Level) Option {
	return func(c *config) { c.level = level }
}

// WithFormat selects the record encoding.
func WithFormat(f Format) Option {
	return func(c *config) { c.format = f }
}

// WithOutput replaces the destinations records are written to.
func WithOutput(w ...io.Writer) Option {
	return func(c *config) { c.out = w }
}

// WithSource adds the calling file and line to every record.
func WithSource(source bool) Option {
	return func(c *config) { c.source = source }
}

// WithComponent tags every record with component=name, so a shared log file
// tells `kbase serve` apart from one-shot commands.
func WithComponent(name string) Option {
	return func(c *config) {
		if name != "" {
			c.attrs = append(c.attrs, slog.String("component", name))
		}
	}
}
