// Package logging builds the loggers every libgal component takes at
// construction. Two fixed line schemas are supported, both carrying the
// timestamp, logger name, level and message of each record.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type Format int

const (
	FormatJSON Format = iota
	FormatCSV
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "JSON"
	case FormatCSV:
		return "CSV"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

var ErrInvalidFormat = errors.New("invalid log format, supported formats are JSON and CSV")

func ParseFormat(s string) (Format, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "JSON":
		return FormatJSON, nil
	case "CSV":
		return FormatCSV, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
}

// ParseLevel accepts debug, info, warn/warning and error, anything else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// TimeLayout is the timestamp layout shared by both formats.
const TimeLayout = "01/02/2006 03:04:05 PM"

type Options struct {
	Format Format
	// Name identifies the application in every record.
	Name  string
	Level slog.Level
}

// New creates a logger writing one line per record to w (stderr when nil).
func New(w io.Writer, opts Options) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}

	var handler slog.Handler
	switch opts.Format {
	case FormatJSON:
		handler = newJSONHandler(w, opts)
	case FormatCSV:
		handler = newCSVHandler(w, opts)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidFormat, opts.Format)
	}
	return slog.New(handler), nil
}

// Or returns logger, falling back to slog.Default() when it is nil.
func Or(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func levelName(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "DEBUG"
	case l < slog.LevelWarn:
		return "INFO"
	case l < slog.LevelError:
		return "WARNING"
	default:
		return "ERROR"
	}
}
