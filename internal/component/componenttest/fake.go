// Package componenttest provides recording Monitor and Action fakes for
// tests of code that wires or dispatches components.
package componenttest

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pimonitor/pimonitor/internal/component"
	"github.com/pimonitor/pimonitor/internal/config"
)

// Monitor returns a fixed batch of events on every run and records the
// listeners added to it.
type Monitor struct {
	component.ListenerSet

	Name   string
	Events []component.Event
	Err    error

	// OnRun, when set, is called at the start of every run.
	OnRun func(ctx context.Context)

	mu       sync.Mutex
	runs     int
	addCalls []string
}

// AddListener records the call, then delegates to the embedded ListenerSet.
func (m *Monitor) AddListener(name string, action component.Action) {
	m.mu.Lock()
	m.addCalls = append(m.addCalls, name)
	m.mu.Unlock()
	m.ListenerSet.AddListener(name, action)
}

// Run returns Events, or Err if it is set.
func (m *Monitor) Run(ctx context.Context) ([]component.Event, error) {
	m.mu.Lock()
	m.runs++
	m.mu.Unlock()
	if m.OnRun != nil {
		m.OnRun(ctx)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]component.Event(nil), m.Events...), nil
}

// Runs returns the number of Run calls.
func (m *Monitor) Runs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs
}

// AddListenerCalls returns the listener names passed to AddListener.
func (m *Monitor) AddListenerCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.addCalls...)
}

// Action records every event it receives. FailOn makes Act return Err on
// the n-th call (1-based); zero never fails.
type Action struct {
	Name   string
	Err    error
	FailOn int

	// Trace, when set, receives "<action>:<event message>" for every call,
	// so tests can assert the global dispatch order across actions.
	Trace *Trace

	mu     sync.Mutex
	events []component.Event
}

// Act records event.
func (a *Action) Act(_ context.Context, event component.Event) error {
	a.mu.Lock()
	a.events = append(a.events, event)
	n := len(a.events)
	a.mu.Unlock()
	if a.Trace != nil {
		a.Trace.add(a.Name + ":" + event.Message)
	}
	if a.FailOn > 0 && n == a.FailOn {
		return a.Err
	}
	return nil
}

// Events returns the received events.
func (a *Action) Events() []component.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]component.Event(nil), a.events...)
}

// Trace is a shared, ordered call log.
type Trace struct {
	mu    sync.Mutex
	calls []string
}

func (t *Trace) add(s string) {
	t.mu.Lock()
	t.calls = append(t.calls, s)
	t.mu.Unlock()
}

// Calls returns the recorded entries in call order.
func (t *Trace) Calls() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.calls...)
}

// Factory returns a component.Factory with a "fake" monitor and action type.
// Constructed instances are handed to the callbacks so tests can inspect
// them; either callback may be nil.
func Factory(onMonitor func(*Monitor), onAction func(*Action)) *component.Factory {
	f := component.NewFactory()
	f.RegisterMonitor("fake", func(spec config.ComponentSpec, _ *slog.Logger) (component.Monitor, error) {
		m := &Monitor{Name: spec.Name}
		if onMonitor != nil {
			onMonitor(m)
		}
		return m, nil
	})
	f.RegisterAction("fake", func(spec config.ComponentSpec, _ *slog.Logger) (component.Action, error) {
		a := &Action{Name: spec.Name}
		if onAction != nil {
			onAction(a)
		}
		return a, nil
	})
	return f
}

// Event builds an event with the given message.
func Event(monitor, message string) component.Event {
	return component.NewEvent(monitor, component.SeverityWarning, message)
}
