package monitor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pimonitor/pimonitor/internal/component"
	"github.com/pimonitor/pimonitor/internal/config"
)

type diskOptions struct {
	Path string `yaml:"path"`

	// Condition is applied to the used percentage, e.g. "> 90".
	Condition string `yaml:"condition"`
	Severity  string `yaml:"severity"`
	Repeat    bool   `yaml:"repeat"`
	Recovery  bool   `yaml:"recovery"`
}

// usageFunc returns total and available bytes for the filesystem holding path.
type usageFunc func(path string) (total, avail uint64, err error)

// diskMonitor reports an event when the used share of a filesystem satisfies
// the configured condition.
type diskMonitor struct {
	component.ListenerSet

	name  string
	opts  diskOptions
	cond  threshold
	usage usageFunc
	log   *slog.Logger
	state edge
}

func newDiskMonitor(spec config.ComponentSpec, log *slog.Logger) (component.Monitor, error) {
	opts := diskOptions{
		Path:      "/",
		Condition: "> 90",
		Severity:  component.SeverityWarning,
		Repeat:    true,
	}
	if err := spec.Decode(&opts); err != nil {
		return nil, err
	}
	cond, err := parseThreshold(opts.Condition)
	if err != nil {
		return nil, err
	}
	return &diskMonitor{
		name:  spec.Name,
		opts:  opts,
		cond:  cond,
		usage: diskUsage,
		log:   log,
		state: edge{Repeat: opts.Repeat, Recovery: opts.Recovery},
	}, nil
}

// Run reads filesystem usage. Failing to stat the path is a monitor error:
// it means the configuration points somewhere that does not exist.
func (m *diskMonitor) Run(_ context.Context) ([]component.Event, error) {
	total, avail, err := m.usage(m.opts.Path)
	if err != nil {
		return nil, fmt.Errorf("statfs %s: %w", m.opts.Path, err)
	}
	var usedPct float64
	if total > 0 {
		usedPct = float64(total-avail) / float64(total) * 100
	}
	m.log.Debug("monitor: disk usage", "path", m.opts.Path, "used_pct", usedPct)

	var failure *component.Event
	if m.cond.fires(usedPct) {
		ev := component.NewEvent(m.name, m.opts.Severity,
			fmt.Sprintf("%s is %.1f%% full (%s)", m.opts.Path, usedPct, m.cond))
		ev.Fields["path"] = m.opts.Path
		ev.Fields["used_pct"] = usedPct
		failure = &ev
	}
	return m.state.observe(m.name, failure, fmt.Sprintf("%s usage back to %.1f%%", m.opts.Path, usedPct)), nil
}
