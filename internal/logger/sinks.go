package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	slogmulti "github.com/samber/slog-multi"
)

// Options selects where records go. Console and File may both be set; the
// file always receives JSON.
type Options struct {
	Level   slog.Level
	Format  string // pretty, json or text
	Console io.Writer
	NoColor bool
	File    string
}

// Open builds a logger for opts. The returned closer releases the log file
// and is never nil.
func Open(opts Options) (Logger, io.Closer, error) {
	var handlers []slog.Handler
	closer := io.Closer(nopCloser{})

	if opts.Console != nil {
		handlers = append(handlers, consoleHandler(opts.Console, opts.Format, opts.Level, !opts.NoColor))
	}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, closer, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, closer, fmt.Errorf("open log file: %w", err)
		}
		closer = f
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: opts.Level}))
	}

	switch len(handlers) {
	case 0:
		return Discard(), closer, nil
	case 1:
		return New(handlers[0]), closer, nil
	}
	return New(slogmulti.Fanout(handlers...)), closer, nil
}

func consoleHandler(w io.Writer, format string, level slog.Level, color bool) slog.Handler {
	switch format {
	case "json":
		return slog.NewJSONHandler(w, &slog.HandlerOptions{AddSource: true, Level: level})
	case "text":
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	default:
		return NewPrettyHandler(w, level, color)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
