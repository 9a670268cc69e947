package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pimonitor/pimonitor/internal/component"
	"github.com/pimonitor/pimonitor/internal/config"
	"github.com/pimonitor/pimonitor/internal/status"
)

// ComponentError reports a monitor or action failure during dispatch. It
// stops the loop.
type ComponentError struct {
	Kind    component.Kind
	Monitor string

	// Action names the failing action. Listener is also set in listeners
	// mode.
	Action   string
	Listener string
	EventID  string

	Err error
}

func (e *ComponentError) Error() string {
	if e.Kind == component.KindMonitor {
		return fmt.Sprintf("dispatch: monitor %q: run: %v", e.Monitor, e.Err)
	}
	var b strings.Builder
	b.WriteString("dispatch: action")
	if e.Action != "" {
		fmt.Fprintf(&b, " %q", e.Action)
	}
	if e.Listener != "" {
		fmt.Fprintf(&b, " (listener %q)", e.Listener)
	}
	fmt.Fprintf(&b, " on event %s from monitor %q: %v", e.EventID, e.Monitor, e.Err)
	return b.String()
}

func (e *ComponentError) Unwrap() error { return e.Err }

// Options configures a Loop. Zero values fall back to the config defaults.
type Options struct {
	// Interval is the pause before every cycle.
	Interval time.Duration

	// Mode is config.DispatchListeners or config.DispatchBroadcast.
	Mode string

	// Listeners maps listener bindings back to action names so errors and
	// the action metric name the action in both modes. A binding missing
	// from it is reported under its listener name.
	Listeners []config.Listener

	Logger  *slog.Logger
	Metrics *Metrics      // optional
	Status  *status.Store // optional
}

// Loop polls every monitor once per interval and hands the resulting events
// to actions. Monitors, and the actions for each event, run one at a time
// in registry order on the goroutine that called Run.
type Loop struct {
	monitors *component.Registry[component.Monitor]
	actions  *component.Registry[component.Action]
	interval time.Duration
	mode     string
	actionOf map[string]string // listener name -> action name
	log      *slog.Logger
	metrics  *Metrics
	status   *status.Store
}

// New returns a Loop over the given registries. The registries must be fully
// wired; the loop never changes them.
func New(monitors *component.Registry[component.Monitor], actions *component.Registry[component.Action], opts Options) *Loop {
	l := &Loop{
		monitors: monitors,
		actions:  actions,
		interval: opts.Interval,
		mode:     opts.Mode,
		actionOf: make(map[string]string, len(opts.Listeners)),
		log:      opts.Logger,
		metrics:  opts.Metrics,
		status:   opts.Status,
	}
	for _, ln := range opts.Listeners {
		l.actionOf[ln.Name] = ln.Action
	}
	if l.interval <= 0 {
		l.interval = config.DefaultPollInterval
	}
	if l.mode == "" {
		l.mode = config.DefaultDispatch
	}
	if l.log == nil {
		l.log = slog.Default()
	}
	return l
}

// Run waits one interval, runs a cycle, and repeats until ctx is cancelled
// or a component fails. Cancellation returns nil; a failure returns the
// *ComponentError and nothing after it is run.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("dispatch: polling started",
		"monitors", l.monitors.Len(),
		"actions", l.actions.Len(),
		"interval", l.interval,
		"mode", l.mode,
	)

	timer := time.NewTimer(l.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			l.log.Info("dispatch: polling stopped")
			return nil
		case <-timer.C:
		}

		if err := l.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				l.log.Info("dispatch: polling stopped mid-cycle")
				return nil
			}
			l.log.Error("dispatch: component failed, stopping", "err", err)
			return err
		}
		timer.Reset(l.interval)
	}
}

// Cycle runs every monitor once and dispatches its events.
func (l *Loop) Cycle(ctx context.Context) error {
	for name, monitor := range l.monitors.All() {
		if err := ctx.Err(); err != nil {
			return err
		}

		l.log.Debug("dispatch: checking monitor", "monitor", name)
		start := time.Now()
		events, err := monitor.Run(ctx)
		took := time.Since(start)
		l.observeRun(name, len(events), took, err)
		if err != nil {
			return &ComponentError{Kind: component.KindMonitor, Monitor: name, Err: err}
		}

		for _, event := range events {
			l.log.Info("dispatch: found event",
				"monitor", name,
				"event", event.ID,
				"severity", event.Severity,
				"message", event.Message,
			)
			if err := l.dispatch(ctx, name, monitor, event); err != nil {
				return err
			}
		}
	}

	if l.status != nil {
		l.status.RecordCycle()
	}
	if l.metrics != nil {
		l.metrics.cycles.Inc()
		l.metrics.lastCycle.SetToCurrentTime()
	}
	return nil
}

// dispatch delivers one event according to the loop's mode.
func (l *Loop) dispatch(ctx context.Context, monitorName string, monitor component.Monitor, event component.Event) error {
	if l.mode == config.DispatchBroadcast {
		for actionName, action := range l.actions.All() {
			if err := l.fire(ctx, action, actionName, "", monitorName, event); err != nil {
				return err
			}
		}
		return nil
	}

	for _, b := range monitor.Listeners() {
		if err := l.fire(ctx, b.Action, l.actionOf[b.Name], b.Name, monitorName, event); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loop) fire(ctx context.Context, action component.Action, actionName, listener, monitorName string, event component.Event) error {
	l.log.Debug("dispatch: firing action",
		"action", actionName,
		"listener", listener,
		"monitor", monitorName,
		"event", event.ID,
	)
	err := action.Act(ctx, event)
	if l.metrics != nil {
		label := actionName
		if label == "" {
			label = listener // binding not described in Options.Listeners
		}
		l.metrics.actionCalls.WithLabelValues(label, result(err)).Inc()
	}
	if err != nil {
		return &ComponentError{
			Kind:     component.KindAction,
			Monitor:  monitorName,
			Action:   actionName,
			Listener: listener,
			EventID:  event.ID,
			Err:      err,
		}
	}
	return nil
}

func (l *Loop) observeRun(name string, events int, took time.Duration, err error) {
	if l.status != nil {
		l.status.RecordRun(name, events, took, err)
	}
	if l.metrics != nil {
		l.metrics.monitorRuns.WithLabelValues(name, result(err)).Inc()
		l.metrics.monitorDuration.WithLabelValues(name).Observe(took.Seconds())
		l.metrics.events.WithLabelValues(name).Add(float64(events))
	}
}
