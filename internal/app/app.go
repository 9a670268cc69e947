package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/pimonitor/pimonitor/internal/action"
	"github.com/pimonitor/pimonitor/internal/component"
	"github.com/pimonitor/pimonitor/internal/config"
	"github.com/pimonitor/pimonitor/internal/dispatch"
	"github.com/pimonitor/pimonitor/internal/logging"
	"github.com/pimonitor/pimonitor/internal/monitor"
	"github.com/pimonitor/pimonitor/internal/status"
	"github.com/pimonitor/pimonitor/internal/wiring"
)

// shutdownTimeout bounds how long the status server may take to drain.
const shutdownTimeout = 5 * time.Second

// Options configures New.
type Options struct {
	Source config.Source

	// Factory supplies the component types. Nil means DefaultFactory.
	Factory *component.Factory

	// Watch reports config file edits while running. Changes are never
	// applied to the running process.
	Watch bool
}

// App is a fully wired pimonitor instance.
type App struct {
	Settings *config.Settings
	Logger   *slog.Logger
	Monitors *component.Registry[component.Monitor]
	Actions  *component.Registry[component.Action]
	Loop     *dispatch.Loop
	Status   *status.Store
	Registry *prometheus.Registry

	source config.Source
	watch  bool
	closer io.Closer
}

// DefaultFactory returns a Factory holding every built-in monitor and action
// type.
func DefaultFactory() *component.Factory {
	f := component.NewFactory()
	monitor.Register(f)
	action.Register(f)
	return f
}

// New runs the startup sequence: load settings, configure logging, build the
// monitor and action registries, wire listeners and create the dispatch loop.
// Any failure is returned and nothing is left running.
func New(opts Options) (*App, error) {
	settings, err := opts.Source.Load()
	if err != nil {
		return nil, err
	}

	log, closer, err := logging.Configure(settings.General)
	if err != nil {
		return nil, err
	}
	a := &App{
		Settings: settings,
		Logger:   log,
		source:   opts.Source,
		watch:    opts.Watch,
		closer:   closer,
	}
	if err := a.build(opts.Factory); err != nil {
		log.Error("app: startup failed", "err", err)
		a.Close() //nolint:errcheck
		return nil, err
	}
	return a, nil
}

func (a *App) build(f *component.Factory) error {
	if f == nil {
		f = DefaultFactory()
	}
	a.Logger.Debug("app: settings loaded",
		"path", a.Settings.Path,
		"monitors", len(a.Settings.Monitors),
		"actions", len(a.Settings.Actions),
		"listeners", len(a.Settings.Listeners),
	)

	var err error
	if a.Monitors, err = component.BuildMonitors(f, a.Settings.Monitors, a.Logger); err != nil {
		return err
	}
	if a.Actions, err = component.BuildActions(f, a.Settings.Actions, a.Logger); err != nil {
		return err
	}
	if err := wiring.Wire(a.Settings, a.Monitors, a.Actions, a.Logger); err != nil {
		return err
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Status = status.New()
	a.Loop = dispatch.New(a.Monitors, a.Actions, dispatch.Options{
		Interval:  a.Settings.General.PollInterval,
		Mode:      a.Settings.General.Dispatch,
		Listeners: a.Settings.Listeners,
		Logger:    a.Logger,
		Metrics:   dispatch.NewMetrics(a.Registry),
		Status:    a.Status,
	})
	return nil
}

// Handler returns the status and metrics HTTP handler for this instance.
func (a *App) Handler() http.Handler {
	bindings := make([]status.ListenerBinding, 0, len(a.Settings.Listeners))
	for _, l := range a.Settings.Listeners {
		bindings = append(bindings, status.ListenerBinding{Name: l.Name, Monitor: l.Monitor, Action: l.Action})
	}
	return status.NewHandler(a.Status, status.HandlerOptions{
		Gatherer:   a.Registry,
		Listeners:  bindings,
		StaleAfter: 3 * a.Settings.General.PollInterval,
	})
}

// Run starts the dispatch loop and the side services and blocks until ctx is
// cancelled or one of them fails. The loop's *dispatch.ComponentError is
// returned unchanged.
func (a *App) Run(ctx context.Context) error {
	var ln net.Listener
	if addr := a.Settings.General.MetricsAddr; addr != "" {
		var err error
		if ln, err = net.Listen("tcp", addr); err != nil {
			return fmt.Errorf("app: listen %s: %w", addr, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	// The side services stop when the loop does, whatever the reason.
	svcCtx, stopServices := context.WithCancel(gctx)
	defer stopServices()

	g.Go(func() error {
		defer stopServices()
		return a.Loop.Run(gctx)
	})
	if a.watch {
		g.Go(func() error {
			return a.source.Watch(svcCtx, a.Settings, a.configChanged)
		})
	}
	if ln != nil {
		g.Go(func() error {
			return a.serve(svcCtx, ln)
		})
	}
	return g.Wait()
}

func (a *App) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("app: status server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: status server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Logger.Warn("app: status server shutdown", "err", err)
	}
	return nil
}

func (a *App) configChanged(_ *config.Settings, d config.Diff) {
	a.Logger.Warn("app: configuration changed, restart required to apply",
		"path", a.source.Path,
		"general", d.General,
		"monitors", d.Monitors,
		"actions", d.Actions,
		"listeners", d.Listeners,
	)
}

// Close releases the log file, if any.
func (a *App) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}
