package wiring

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/pimonitor/pimonitor/internal/component"
	"github.com/pimonitor/pimonitor/internal/config"
)

// ErrNoListeners is returned (wrapped in a ConfigurationError) when the
// listeners section is empty.
var ErrNoListeners = errors.New("no listeners found in configuration")

// ConfigurationError reports a listener section that cannot be wired.
type ConfigurationError struct {
	// Listener is the offending listener name; empty for ErrNoListeners.
	Listener string

	// Kind is the section the missing reference belongs to.
	Kind component.Kind

	// Missing is the unresolved monitor or action name.
	Missing string

	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Missing == "" {
		return "wiring: " + e.Err.Error()
	}
	return fmt.Sprintf("wiring: %s %s not found (for listener %s)", e.Kind, e.Missing, e.Listener)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ErrUnknownReference is wrapped by every ConfigurationError about a missing
// monitor or action.
var ErrUnknownReference = errors.New("unknown reference")

// Wire attaches the action of every listener in settings to its monitor,
// in declaration order.
//
// Every listener is resolved before any binding is recorded, so a
// configuration with a bad reference leaves all monitors untouched. The
// registries are not modified.
func Wire(
	settings *config.Settings,
	monitors *component.Registry[component.Monitor],
	actions *component.Registry[component.Action],
	log *slog.Logger,
) error {
	if log == nil {
		log = slog.Default()
	}
	listeners := settings.Listeners
	if len(listeners) == 0 {
		return &ConfigurationError{Err: ErrNoListeners}
	}

	type binding struct {
		config.Listener
		monitor component.Monitor
		action  component.Action
	}
	resolved := make([]binding, 0, len(listeners))

	for _, l := range listeners {
		monitor, ok := monitors.Get(l.Monitor)
		if !ok {
			return &ConfigurationError{Listener: l.Name, Kind: component.KindMonitor, Missing: l.Monitor, Err: ErrUnknownReference}
		}
		action, ok := actions.Get(l.Action)
		if !ok {
			return &ConfigurationError{Listener: l.Name, Kind: component.KindAction, Missing: l.Action, Err: ErrUnknownReference}
		}
		resolved = append(resolved, binding{Listener: l, monitor: monitor, action: action})
	}

	for _, b := range resolved {
		b.monitor.AddListener(b.Name, b.action)
		log.Debug("wiring: adding action to monitor",
			"listener", b.Name,
			"monitor", b.Monitor,
			"action", b.Action,
		)
	}
	return nil
}
