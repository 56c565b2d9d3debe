// Package logging configures the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// Options selects where logs go.
type Options struct {
	Level   string    // debug, info, warn, error
	File    string    // optional JSON log file, appended to
	Service string    // added to every record when set
	Console io.Writer // defaults to os.Stderr
}

// ParseLevel maps a level name to slog.Level. DEBUG or INCUBATOR_DEBUG in
// the environment force debug regardless of name.
func ParseLevel(name string) (slog.Level, error) {
	if os.Getenv("DEBUG") != "" || os.Getenv("INCUBATOR_DEBUG") != "" {
		return slog.LevelDebug, nil
	}

	var level slog.Level
	if name == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToUpper(name))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return level, nil
}

// New builds a logger fanning out to a text console handler and, when
// opts.File is set, a JSON file handler. The returned closer releases the
// file.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	hopts := &slog.HandlerOptions{Level: level}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	handlers := []slog.Handler{slog.NewTextHandler(console, hopts)}
	var closer io.Closer = nopCloser{}

	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", opts.File, err)
		}
		handlers = append(handlers, slog.NewJSONHandler(f, hopts))
		closer = f
	}

	logger := slog.New(slogmulti.Fanout(handlers...))
	if opts.Service != "" {
		logger = logger.With(slog.String("service", opts.Service))
	}
	return logger, closer, nil
}

// Setup installs the logger from New as the slog default.
func Setup(opts Options) (io.Closer, error) {
	logger, closer, err := New(opts)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
