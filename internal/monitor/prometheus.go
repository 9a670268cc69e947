package monitor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/pimonitor/pimonitor/internal/component"
	"github.com/pimonitor/pimonitor/internal/config"
)

type prometheusOptions struct {
	URL       string            `yaml:"url"`
	Metric    string            `yaml:"metric"`
	Labels    map[string]string `yaml:"labels"`
	Condition string            `yaml:"condition"`
	Timeout   time.Duration     `yaml:"timeout"`
	Severity  string            `yaml:"severity"`
	Repeat    bool              `yaml:"repeat"`
	Recovery  bool              `yaml:"recovery"`
	Auth      AuthOptions       `yaml:"auth"`
	TLS       TLSOptions        `yaml:"tls"`
}

// prometheusMonitor scrapes a Prometheus text exposition endpoint, sums the
// samples of one metric family (optionally filtered by labels) and reports an
// event when the sum satisfies the configured condition.
type prometheusMonitor struct {
	component.ListenerSet

	name   string
	opts   prometheusOptions
	cond   threshold
	client *http.Client
	log    *slog.Logger
	state  edge
}

func newPrometheusMonitor(spec config.ComponentSpec, log *slog.Logger) (component.Monitor, error) {
	opts := prometheusOptions{
		Severity: component.SeverityWarning,
		Repeat:   true,
	}
	if err := spec.Decode(&opts); err != nil {
		return nil, err
	}
	if opts.URL == "" || opts.Metric == "" {
		return nil, fmt.Errorf("url and metric are required")
	}
	cond, err := parseThreshold(opts.Condition)
	if err != nil {
		return nil, err
	}
	client, err := buildHTTPClient(opts.Auth, opts.TLS, opts.Timeout)
	if err != nil {
		return nil, fmt.Errorf("build http client: %w", err)
	}
	return &prometheusMonitor{
		name:   spec.Name,
		opts:   opts,
		cond:   cond,
		client: client,
		log:    log,
		state:  edge{Repeat: opts.Repeat, Recovery: opts.Recovery},
	}, nil
}

// Run fetches the endpoint once. A failed scrape is reported as a warning
// event; the condition is only evaluated on a successful scrape.
func (m *prometheusMonitor) Run(ctx context.Context) ([]component.Event, error) {
	mfs, err := fetchMetrics(ctx, m.client, m.opts.URL)
	if err != nil {
		m.log.Warn("monitor: prometheus fetch failed", "url", m.opts.URL, "err", err)
		ev := component.NewEvent(m.name, component.SeverityWarning,
			fmt.Sprintf("scrape %s: %v", m.opts.URL, err))
		ev.Fields["url"] = m.opts.URL
		return []component.Event{ev}, nil
	}

	value := sumFamily(mfs[m.opts.Metric], m.opts.Labels)

	var failure *component.Event
	if m.cond.fires(value) {
		ev := component.NewEvent(m.name, m.opts.Severity,
			fmt.Sprintf("%s = %.2f (%s)", m.opts.Metric, value, m.cond))
		ev.Fields["metric"] = m.opts.Metric
		ev.Fields["value"] = value
		failure = &ev
	}
	return m.state.observe(m.name, failure,
		fmt.Sprintf("%s = %.2f, no longer %s", m.opts.Metric, value, m.cond)), nil
}

// fetchMetrics performs an HTTP GET to url and returns parsed metric families.
func fetchMetrics(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseMetrics(resp.Body)
}

// parseMetrics decodes a Prometheus text exposition from r into metric families.
// A partial result with a non-fatal parse warning is still returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// sumFamily adds up the counter, gauge, or untyped values in a MetricFamily
// whose labels include every pair in match. Returns 0 if mf is nil.
func sumFamily(mf *dto.MetricFamily, match map[string]string) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		if !hasLabels(m, match) {
			continue
		}
		switch {
		case m.Counter != nil:
			total += m.Counter.GetValue()
		case m.Gauge != nil:
			total += m.Gauge.GetValue()
		case m.Untyped != nil:
			total += m.Untyped.GetValue()
		}
	}
	return total
}

func hasLabels(m *dto.Metric, match map[string]string) bool {
	if len(match) == 0 {
		return true
	}
	found := 0
	for _, lp := range m.GetLabel() {
		if want, ok := match[lp.GetName()]; ok {
			if lp.GetValue() != want {
				return false
			}
			found++
		}
	}
	return found == len(match)
}
