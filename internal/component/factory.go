package component

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/pimonitor/pimonitor/internal/config"
)

// Kind names the section a component is declared in.
type Kind string

const (
	KindMonitor Kind = "monitor"
	KindAction  Kind = "action"
)

// MonitorConstructor builds a Monitor from its config entry. log is already
// scoped to the entry name.
type MonitorConstructor func(spec config.ComponentSpec, log *slog.Logger) (Monitor, error)

// ActionConstructor builds an Action from its config entry.
type ActionConstructor func(spec config.ComponentSpec, log *slog.Logger) (Action, error)

// Factory maps type names from the config file to constructors. Types are
// registered at startup; lookups happen while registries are built.
//
// Factory is safe for concurrent use.
type Factory struct {
	mu       sync.RWMutex
	monitors map[string]MonitorConstructor
	actions  map[string]ActionConstructor
}

// NewFactory returns an empty Factory.
func NewFactory() *Factory {
	return &Factory{
		monitors: make(map[string]MonitorConstructor),
		actions:  make(map[string]ActionConstructor),
	}
}

// RegisterMonitor adds a monitor type. It panics if typ is empty or already
// registered: both are programming errors.
func (f *Factory) RegisterMonitor(typ string, ctor MonitorConstructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if typ == "" || ctor == nil {
		panic("component: RegisterMonitor with empty type or nil constructor")
	}
	if _, dup := f.monitors[typ]; dup {
		panic(fmt.Sprintf("component: monitor type %q registered twice", typ))
	}
	f.monitors[typ] = ctor
}

// RegisterAction adds an action type. It panics if typ is empty or already
// registered.
func (f *Factory) RegisterAction(typ string, ctor ActionConstructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if typ == "" || ctor == nil {
		panic("component: RegisterAction with empty type or nil constructor")
	}
	if _, dup := f.actions[typ]; dup {
		panic(fmt.Sprintf("component: action type %q registered twice", typ))
	}
	f.actions[typ] = ctor
}

// NewMonitor constructs the monitor described by spec.
func (f *Factory) NewMonitor(spec config.ComponentSpec, log *slog.Logger) (Monitor, error) {
	f.mu.RLock()
	ctor, ok := f.monitors[spec.Type]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown monitor type %q", spec.Type)
	}
	return ctor(spec, log)
}

// NewAction constructs the action described by spec.
func (f *Factory) NewAction(spec config.ComponentSpec, log *slog.Logger) (Action, error) {
	f.mu.RLock()
	ctor, ok := f.actions[spec.Type]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown action type %q", spec.Type)
	}
	return ctor(spec, log)
}

// MonitorTypes returns the registered monitor type names, sorted.
func (f *Factory) MonitorTypes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return sortedNames(f.monitors)
}

// ActionTypes returns the registered action type names, sorted.
func (f *Factory) ActionTypes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return sortedNames(f.actions)
}

func sortedNames[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
