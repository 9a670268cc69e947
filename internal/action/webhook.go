package action

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/pimonitor/pimonitor/internal/component"
	"github.com/pimonitor/pimonitor/internal/config"
)

const defaultWebhookTimeout = 10 * time.Second

type webhookOptions struct {
	URL string `yaml:"url"`

	// Kind selects the payload format: slack | teams | http.
	Kind    string            `yaml:"kind"`
	Headers map[string]string `yaml:"headers"`
	Timeout time.Duration     `yaml:"timeout"`

	// RateLimit is the minimum spacing between deliveries. Events arriving
	// faster are dropped with a warning. Zero disables limiting.
	RateLimit time.Duration `yaml:"rate_limit"`
	Burst     int           `yaml:"burst"`
}

// webhookAction posts each event as JSON to a Slack, Teams or generic HTTP
// endpoint. A non-2xx response is an error.
type webhookAction struct {
	name    string
	opts    webhookOptions
	client  *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

func newWebhookAction(spec config.ComponentSpec, log *slog.Logger) (component.Action, error) {
	opts := webhookOptions{
		Kind:    "http",
		Timeout: defaultWebhookTimeout,
		Burst:   1,
	}
	if err := spec.Decode(&opts); err != nil {
		return nil, err
	}
	if opts.URL == "" {
		return nil, fmt.Errorf("url is required")
	}
	switch opts.Kind {
	case "slack", "teams", "http":
	default:
		return nil, fmt.Errorf("unknown webhook kind %q", opts.Kind)
	}

	a := &webhookAction{
		name:   spec.Name,
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		log:    log,
	}
	if opts.RateLimit > 0 {
		if opts.Burst < 1 {
			opts.Burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Every(opts.RateLimit), opts.Burst)
	}
	return a, nil
}

func (a *webhookAction) Act(ctx context.Context, ev component.Event) error {
	if a.limiter != nil && !a.limiter.Allow() {
		a.log.Warn("action: webhook rate limited, skipping event",
			"monitor", ev.Monitor, "id", ev.ID)
		return nil
	}

	body, err := a.payload(ev)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := a.post(ctx, body); err != nil {
		return err
	}
	a.log.Debug("action: webhook delivered", "kind", a.opts.Kind, "monitor", ev.Monitor)
	return nil
}

func (a *webhookAction) payload(ev component.Event) ([]byte, error) {
	switch a.opts.Kind {
	case "slack":
		return json.Marshal(map[string]string{
			"text": fmt.Sprintf("*%s* %s: %s", severityLabel(ev.Severity), ev.Monitor, ev.Message),
		})
	case "teams":
		return json.Marshal(map[string]any{
			"@type":      "MessageCard",
			"@context":   "http://schema.org/extensions",
			"themeColor": severityColor(ev.Severity),
			"summary":    ev.Monitor,
			"title":      fmt.Sprintf("pimonitor: %s", ev.Monitor),
			"text":       ev.Message,
		})
	default:
		return json.Marshal(map[string]any{"event": ev})
	}
}

func (a *webhookAction) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.opts.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range a.opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func severityLabel(s string) string {
	switch s {
	case component.SeverityCritical:
		return "[CRITICAL]"
	case component.SeverityWarning:
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}

func severityColor(s string) string {
	switch s {
	case component.SeverityCritical:
		return "FF4F6A"
	case component.SeverityWarning:
		return "FFAB40"
	default:
		return "00D4FF"
	}
}
