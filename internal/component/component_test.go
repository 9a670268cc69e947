package component_test

import (
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/pimonitor/pimonitor/internal/component"
	"github.com/pimonitor/pimonitor/internal/component/componenttest"
	"github.com/pimonitor/pimonitor/internal/config"
)

func specs(typ string, names ...string) []config.ComponentSpec {
	out := make([]config.ComponentSpec, 0, len(names))
	for _, n := range names {
		out = append(out, config.ComponentSpec{Name: n, Type: typ, Options: map[string]any{}})
	}
	return out
}

func TestBuildMonitors_KeepsOrder(t *testing.T) {
	f := componenttest.Factory(nil, nil)
	reg, err := component.BuildMonitors(f, specs("fake", "c", "a", "b"), nil)
	if err != nil {
		t.Fatalf("BuildMonitors() error = %v", err)
	}
	if got := reg.Names(); !slices.Equal(got, []string{"c", "a", "b"}) {
		t.Errorf("Names() = %v", got)
	}
	m, ok := reg.Get("a")
	if !ok {
		t.Fatal("Get(a) not found")
	}
	if m.(*componenttest.Monitor).Name != "a" {
		t.Errorf("Get(a) returned %q", m.(*componenttest.Monitor).Name)
	}
}

func TestBuildActions_UnknownType(t *testing.T) {
	f := componenttest.Factory(nil, nil)
	_, err := component.BuildActions(f, specs("email", "mail"), nil)

	var ce *component.ConstructionError
	if !errors.As(err, &ce) {
		t.Fatalf("want *ConstructionError, got %v", err)
	}
	if ce.Kind != component.KindAction || ce.Name != "mail" {
		t.Errorf("ConstructionError = %+v", ce)
	}
	if !strings.Contains(err.Error(), `"mail"`) || !strings.Contains(err.Error(), "email") {
		t.Errorf("error should name entry and type: %v", err)
	}
}

func TestBuildMonitors_PropagatesConstructorError(t *testing.T) {
	boom := errors.New("socket refused")
	f := component.NewFactory()
	f.RegisterMonitor("broken", func(config.ComponentSpec, *slog.Logger) (component.Monitor, error) {
		return nil, boom
	})

	_, err := component.BuildMonitors(f, specs("broken", "vpn"), nil)
	if !errors.Is(err, boom) {
		t.Fatalf("want wrapped constructor error, got %v", err)
	}
	if !strings.Contains(err.Error(), `"vpn"`) {
		t.Errorf("error should name the entry: %v", err)
	}
}

func TestBuildMonitors_EmptyName(t *testing.T) {
	f := componenttest.Factory(nil, nil)
	if _, err := component.BuildMonitors(f, specs("fake", ""), nil); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestFactory_DuplicateRegistrationPanics(t *testing.T) {
	f := component.NewFactory()
	ctor := func(config.ComponentSpec, *slog.Logger) (component.Action, error) { return nil, nil }
	f.RegisterAction("log", ctor)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	f.RegisterAction("log", ctor)
}

func TestFactory_Types(t *testing.T) {
	f := componenttest.Factory(nil, nil)
	if got := f.MonitorTypes(); !slices.Equal(got, []string{"fake"}) {
		t.Errorf("MonitorTypes() = %v", got)
	}
	if got := f.ActionTypes(); !slices.Equal(got, []string{"fake"}) {
		t.Errorf("ActionTypes() = %v", got)
	}
}

func TestRegistry_Duplicate(t *testing.T) {
	r := component.NewRegistry[int]()
	if err := r.Add("a", 1); err != nil {
		t.Fatal(err)
	}
	if err := r.Add("a", 2); err == nil {
		t.Error("expected duplicate error")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistry_AllStopsEarly(t *testing.T) {
	r := component.NewRegistry[int]()
	for i, n := range []string{"a", "b", "c"} {
		_ = r.Add(n, i)
	}
	var seen []string
	for name := range r.All() {
		seen = append(seen, name)
		if name == "b" {
			break
		}
	}
	if !slices.Equal(seen, []string{"a", "b"}) {
		t.Errorf("seen = %v", seen)
	}
}

func TestListenerSet(t *testing.T) {
	var s component.ListenerSet
	a := &componenttest.Action{Name: "a"}
	s.AddListener("l1", a)
	s.AddListener("l2", a)

	got := s.Listeners()
	if len(got) != 2 || got[0].Name != "l1" || got[1].Name != "l2" {
		t.Fatalf("Listeners() = %+v", got)
	}
	got[0].Name = "mutated"
	if s.Listeners()[0].Name != "l1" {
		t.Error("Listeners() must return a copy")
	}
}

func TestNewEvent(t *testing.T) {
	a := component.NewEvent("vpn", component.SeverityCritical, "down")
	b := component.NewEvent("vpn", component.SeverityCritical, "down")
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("event IDs should be unique and non-empty: %q %q", a.ID, b.ID)
	}
	if a.Time.IsZero() || a.Fields == nil {
		t.Errorf("event not initialised: %+v", a)
	}
}

// Building twice from the same settings yields the same name sets.
func TestBuild_Idempotent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		names := rapid.SliceOfDistinct(
			rapid.StringMatching(`[a-z][a-z0-9_-]{0,11}`),
			func(s string) string { return s },
		).Draw(rt, "names")

		f := componenttest.Factory(nil, nil)
		first, err := component.BuildMonitors(f, specs("fake", names...), nil)
		if err != nil {
			rt.Fatalf("first build: %v", err)
		}
		second, err := component.BuildMonitors(f, specs("fake", names...), nil)
		if err != nil {
			rt.Fatalf("second build: %v", err)
		}
		if !slices.Equal(first.Names(), second.Names()) {
			rt.Fatalf("names differ: %v vs %v", first.Names(), second.Names())
		}
		if first.Len() != len(names) {
			rt.Fatalf("Len() = %d, want %d", first.Len(), len(names))
		}
	})
}
