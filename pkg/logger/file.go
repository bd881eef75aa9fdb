package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// OpenFile appends JSON records with source positions to path, creating the
// file if needed. opts are applied after those defaults; the output is
// always the file. Close the returned io.Closer when done logging.
func OpenFile(path string, opts ...Option) (*slog.Logger, io.Closer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	all := make([]Option, 0, len(opts)+3)
	all = append(all, WithFormat(FormatJSON), WithSource(true))
	all = append(all, opts...)
	all = append(all, WithOutput(f))

	return New(all...), f, nil
}
