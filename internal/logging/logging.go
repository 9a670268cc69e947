package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pimonitor/pimonitor/internal/config"
)

// LevelCritical sits above slog.LevelError for conditions that stop the
// process.
const LevelCritical = slog.Level(12)

// ParseLevel maps a config log level name to a slog.Level. Names are
// case-insensitive; an empty name yields the default ERROR level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "":
		return slog.LevelError, nil
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARNING", "WARN":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	case "CRITICAL", "FATAL":
		return LevelCritical, nil
	default:
		return 0, fmt.Errorf("logging: unknown level %q", name)
	}
}

// Configure builds the process logger from the general settings and installs
// it as the slog default. The returned Closer releases the log file, if any;
// it is safe to call when logging goes to stderr.
//
// Configure is meant to be called once at startup. A second call replaces the
// default logger but does not close the previous file.
func Configure(g config.General) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(g.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	var (
		w      io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)
	if g.LogFile != "" {
		f, err := os.OpenFile(g.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("logging: open log file: %w", err)
		}
		w, closer = f, f
	}

	logger := slog.New(NewHandler(w, g.LogFormat, level))
	slog.SetDefault(logger)
	return logger, closer, nil
}

// NewHandler returns a JSON or text slog handler writing to w. CRITICAL
// records are labelled as such instead of "ERROR+4".
func NewHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl >= LevelCritical {
					a.Value = slog.StringValue("CRITICAL")
				}
			}
			return a
		},
	}
	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
