package component

import (
	"fmt"
	"log/slog"

	"github.com/pimonitor/pimonitor/internal/config"
)

// ConstructionError reports a config entry that could not be turned into a
// component.
type ConstructionError struct {
	Kind Kind
	Name string
	Type string
	Err  error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("build %s %q (type %q): %v", e.Kind, e.Name, e.Type, e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }

// BuildMonitors constructs one Monitor per entry of the monitors section, in
// declaration order. The first failure stops the build.
func BuildMonitors(f *Factory, specs []config.ComponentSpec, log *slog.Logger) (*Registry[Monitor], error) {
	return build(KindMonitor, specs, log, f.NewMonitor)
}

// BuildActions constructs one Action per entry of the actions section.
func BuildActions(f *Factory, specs []config.ComponentSpec, log *slog.Logger) (*Registry[Action], error) {
	return build(KindAction, specs, log, f.NewAction)
}

func build[T any](
	kind Kind,
	specs []config.ComponentSpec,
	log *slog.Logger,
	construct func(config.ComponentSpec, *slog.Logger) (T, error),
) (*Registry[T], error) {
	if log == nil {
		log = slog.Default()
	}
	reg := NewRegistry[T]()
	for _, spec := range specs {
		fail := func(err error) error {
			return &ConstructionError{Kind: kind, Name: spec.Name, Type: spec.Type, Err: err}
		}
		if spec.Name == "" {
			return nil, fail(fmt.Errorf("empty name"))
		}
		item, err := construct(spec, log.With(string(kind), spec.Name))
		if err != nil {
			return nil, fail(err)
		}
		if err := reg.Add(spec.Name, item); err != nil {
			return nil, fail(err)
		}
		log.Debug("component: built", "kind", kind, "name", spec.Name, "type", spec.Type)
	}
	return reg, nil
}
