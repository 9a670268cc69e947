package monitor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/pimonitor/pimonitor/internal/component"
	"github.com/pimonitor/pimonitor/internal/config"
)

// maxBodyBytes caps how much of a response body is searched for body_contains.
const maxBodyBytes = 1 << 20

type httpOptions struct {
	URL          string        `yaml:"url"`
	Method       string        `yaml:"method"`
	ExpectStatus []int         `yaml:"expect_status"`
	BodyContains string        `yaml:"body_contains"`
	Timeout      time.Duration `yaml:"timeout"`
	Severity     string        `yaml:"severity"`
	Repeat       bool          `yaml:"repeat"`
	Recovery     bool          `yaml:"recovery"`
	Auth         AuthOptions   `yaml:"auth"`
	TLS          TLSOptions    `yaml:"tls"`
}

// httpMonitor reports an event when an HTTP endpoint is unreachable, answers
// with an unexpected status or lacks an expected body substring.
type httpMonitor struct {
	component.ListenerSet

	name   string
	opts   httpOptions
	client *http.Client
	log    *slog.Logger
	state  edge
}

func newHTTPMonitor(spec config.ComponentSpec, log *slog.Logger) (component.Monitor, error) {
	opts := httpOptions{
		Method:       http.MethodGet,
		ExpectStatus: []int{http.StatusOK},
		Severity:     component.SeverityCritical,
		Repeat:       true,
	}
	if err := spec.Decode(&opts); err != nil {
		return nil, err
	}
	if opts.URL == "" {
		return nil, fmt.Errorf("url is required")
	}
	client, err := buildHTTPClient(opts.Auth, opts.TLS, opts.Timeout)
	if err != nil {
		return nil, fmt.Errorf("build http client: %w", err)
	}
	return &httpMonitor{
		name:   spec.Name,
		opts:   opts,
		client: client,
		log:    log,
		state:  edge{Repeat: opts.Repeat, Recovery: opts.Recovery},
	}, nil
}

// Run probes the endpoint once. Probe failures are reported as events, not
// errors.
func (m *httpMonitor) Run(ctx context.Context) ([]component.Event, error) {
	problem, err := m.probe(ctx)
	if err != nil {
		return nil, err
	}

	var failure *component.Event
	if problem != "" {
		m.log.Warn("monitor: http check failed", "url", m.opts.URL, "problem", problem)
		ev := component.NewEvent(m.name, m.opts.Severity,
			fmt.Sprintf("%s %s: %s", m.opts.Method, m.opts.URL, problem))
		ev.Fields["url"] = m.opts.URL
		failure = &ev
	}
	return m.state.observe(m.name, failure, fmt.Sprintf("%s %s: recovered", m.opts.Method, m.opts.URL)), nil
}

// probe returns a description of what is wrong with the endpoint, or "" when
// it is healthy. The error is reserved for requests that cannot be built.
func (m *httpMonitor) probe(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, m.opts.Method, m.opts.URL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Sprintf("request failed: %v", err), nil
	}
	defer resp.Body.Close()

	if !slices.Contains(m.opts.ExpectStatus, resp.StatusCode) {
		return fmt.Sprintf("unexpected status %d", resp.StatusCode), nil
	}
	if m.opts.BodyContains != "" {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return fmt.Sprintf("read body: %v", err), nil
		}
		if !strings.Contains(string(body), m.opts.BodyContains) {
			return fmt.Sprintf("body does not contain %q", m.opts.BodyContains), nil
		}
	}
	return "", nil
}
