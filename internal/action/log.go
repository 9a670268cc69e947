package action

import (
	"context"
	"log/slog"

	"github.com/pimonitor/pimonitor/internal/component"
	"github.com/pimonitor/pimonitor/internal/config"
	"github.com/pimonitor/pimonitor/internal/logging"
)

type logOptions struct {
	// Level overrides the severity-derived level when set.
	Level string `yaml:"level"`
}

// logAction writes each event as a structured log record.
type logAction struct {
	name  string
	level *slog.Level
	log   *slog.Logger
}

func newLogAction(spec config.ComponentSpec, log *slog.Logger) (component.Action, error) {
	var opts logOptions
	if err := spec.Decode(&opts); err != nil {
		return nil, err
	}
	a := &logAction{name: spec.Name, log: log}
	if opts.Level != "" {
		lvl, err := logging.ParseLevel(opts.Level)
		if err != nil {
			return nil, err
		}
		a.level = &lvl
	}
	return a, nil
}

func (a *logAction) Act(ctx context.Context, ev component.Event) error {
	lvl := severityLevel(ev.Severity)
	if a.level != nil {
		lvl = *a.level
	}
	attrs := []any{
		"id", ev.ID,
		"monitor", ev.Monitor,
		"severity", ev.Severity,
	}
	for k, v := range ev.Fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	a.log.Log(ctx, lvl, ev.Message, attrs...)
	return nil
}

func severityLevel(s string) slog.Level {
	switch s {
	case component.SeverityCritical:
		return logging.LevelCritical
	case component.SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
