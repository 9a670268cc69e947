package component

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Severity levels carried by events. Actions may use them for formatting;
// dispatch never looks at them.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Event is one observation reported by a monitor. The dispatch loop passes
// events through untouched; only actions interpret them.
type Event struct {
	ID       string         `json:"id"`
	Monitor  string         `json:"monitor"`
	Severity string         `json:"severity"`
	Message  string         `json:"message"`
	Time     time.Time      `json:"time"`
	Fields   map[string]any `json:"fields,omitempty"`
}

// NewEvent returns an Event stamped with a fresh ID and the current time.
func NewEvent(monitor, severity, message string) Event {
	return Event{
		ID:       uuid.NewString(),
		Monitor:  monitor,
		Severity: severity,
		Message:  message,
		Time:     time.Now().UTC(),
		Fields:   make(map[string]any),
	}
}

// Monitor observes a condition and reports zero or more events per run.
type Monitor interface {
	// Run performs one check. It may block on I/O.
	Run(ctx context.Context) ([]Event, error)

	// AddListener records that action should receive this monitor's events.
	AddListener(name string, action Action)

	// Listeners returns the recorded bindings in the order they were added.
	Listeners() []Binding
}

// Action reacts to a single event.
type Action interface {
	Act(ctx context.Context, event Event) error
}

// Binding is one listener attached to a monitor.
type Binding struct {
	Name   string
	Action Action
}

// ListenerSet implements the listener half of Monitor. Embed it in concrete
// monitors. The zero value is ready to use.
//
// ListenerSet is not safe for concurrent use; listeners are added during
// wiring, before dispatch starts.
type ListenerSet struct {
	bindings []Binding
}

// AddListener appends a binding.
func (s *ListenerSet) AddListener(name string, action Action) {
	s.bindings = append(s.bindings, Binding{Name: name, Action: action})
}

// Listeners returns a copy of the bindings.
func (s *ListenerSet) Listeners() []Binding {
	return slices.Clone(s.bindings)
}
