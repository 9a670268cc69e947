package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/pimonitor/pimonitor/internal/component"
	"github.com/pimonitor/pimonitor/internal/config"
)

type tcpOptions struct {
	Address  string        `yaml:"address"`
	Timeout  time.Duration `yaml:"timeout"`
	Severity string        `yaml:"severity"`
	Repeat   bool          `yaml:"repeat"`
	Recovery bool          `yaml:"recovery"`
}

// tcpMonitor reports an event when a TCP address does not accept connections.
type tcpMonitor struct {
	component.ListenerSet

	name  string
	opts  tcpOptions
	log   *slog.Logger
	state edge
}

func newTCPMonitor(spec config.ComponentSpec, log *slog.Logger) (component.Monitor, error) {
	opts := tcpOptions{
		Timeout:  defaultTimeout,
		Severity: component.SeverityCritical,
		Repeat:   true,
	}
	if err := spec.Decode(&opts); err != nil {
		return nil, err
	}
	if _, _, err := net.SplitHostPort(opts.Address); err != nil {
		return nil, fmt.Errorf("address: %w", err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &tcpMonitor{
		name:  spec.Name,
		opts:  opts,
		log:   log,
		state: edge{Repeat: opts.Repeat, Recovery: opts.Recovery},
	}, nil
}

func (m *tcpMonitor) Run(ctx context.Context) ([]component.Event, error) {
	dialCtx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()

	var failure *component.Event
	conn, err := (&net.Dialer{}).DialContext(dialCtx, "tcp", m.opts.Address)
	if err != nil {
		m.log.Warn("monitor: tcp dial failed", "address", m.opts.Address, "err", err)
		ev := component.NewEvent(m.name, m.opts.Severity,
			fmt.Sprintf("tcp %s unreachable: %v", m.opts.Address, err))
		ev.Fields["address"] = m.opts.Address
		failure = &ev
	} else {
		conn.Close()
	}
	return m.state.observe(m.name, failure, fmt.Sprintf("tcp %s reachable again", m.opts.Address)), nil
}
