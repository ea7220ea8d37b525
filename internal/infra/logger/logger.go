// Package logger builds the process-wide slog logger from config.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"maestro-console/internal/infra/config"
)

// Logger bundles the configured *slog.Logger with its adjustable level and
// the closer for any file it writes to.
type Logger struct {
	*slog.Logger
	Level *slog.LevelVar
	close func() error
}

// New creates a configured Logger. Close should be deferred to flush file handles.
//
// Output "discard" drops all records; the interactive console uses it when no
// log file is configured so records do not corrupt the terminal.
func New(cfg config.LoggerConfig) (*Logger, error) {
	writer, closer, err := openOutput(cfg.Output)
	if err != nil {
		return nil, fmt.Errorf("open log output: %w", err)
	}

	level := new(slog.LevelVar)
	level.Set(parseLevel(cfg.Level))
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	default:
		handler = slog.NewTextHandler(writer, opts)
	}

	return &Logger{
		Logger: slog.New(handler).With("app", "maestro"),
		Level:  level,
		close:  closer,
	}, nil
}

// Close releases the output file, if any.
func (l *Logger) Close() error {
	if l == nil || l.close == nil {
		return nil
	}
	return l.close()
}

// Component returns a child logger tagged with the component name.
func (l *Logger) Component(name string) *slog.Logger {
	return l.Logger.With("component", name)
}

// parseLevel converts a string level to slog.Level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

// openOutput returns an io.Writer for the specified output target.
func openOutput(output string) (io.Writer, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(output) {
	case "stdout":
		return os.Stdout, noop, nil
	case "stderr", "":
		return os.Stderr, noop, nil
	case "discard":
		return io.Discard, noop, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil
	}
}
