package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// ParseLevel maps a level name to a slog level. Unknown names map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds a logger from the logging section. The text format is
// a colored console handler; json is one object per line. The returned
// close func releases the log file and is a no-op for console output.
func NewLogger(cfg LoggingConfig) (*slog.Logger, func() error, error) {
	var output io.Writer
	closeFn := func() error { return nil }
	switch cfg.Output {
	case "stderr", "":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", cfg.Output, err)
		}
		output = file
		closeFn = file.Close
	}
	return slog.New(NewHandler(output, cfg)), closeFn, nil
}

// NewHandler creates the slog handler for cfg writing to w
func NewHandler(w io.Writer, cfg LoggingConfig) slog.Handler {
	level := ParseLevel(cfg.Level)

	if cfg.Format == "json" {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     level,
			AddSource: level == slog.LevelDebug,
		})
	}

	// colors only on the console
	console := w == os.Stderr || w == os.Stdout
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		AddSource:  level == slog.LevelDebug,
		TimeFormat: time.TimeOnly,
		NoColor:    !console,
	})
}
