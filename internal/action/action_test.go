package action

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pimonitor/pimonitor/internal/component"
	"github.com/pimonitor/pimonitor/internal/config"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func spec(name string, opts map[string]any) config.ComponentSpec {
	return config.ComponentSpec{Name: name, Options: opts}
}

func testEvent() component.Event {
	ev := component.NewEvent("vpn", component.SeverityCritical, "vpn is down")
	ev.Fields["url"] = "https://vpn.example.com"
	return ev
}

func TestLogAction_LevelFromSeverity(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	a, err := newLogAction(spec("audit", nil), log)
	if err != nil {
		t.Fatalf("newLogAction() error = %v", err)
	}
	ev := component.NewEvent("disk", component.SeverityWarning, "disk 95% full")
	if err := a.Act(context.Background(), ev); err != nil {
		t.Fatalf("Act() error = %v", err)
	}

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log output is not JSON: %v\n%s", err, buf.String())
	}
	if rec["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", rec["level"])
	}
	if rec["msg"] != "disk 95% full" || rec["monitor"] != "disk" || rec["id"] != ev.ID {
		t.Errorf("record = %v", rec)
	}
}

func TestLogAction_LevelOverride(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	a, err := newLogAction(spec("audit", map[string]any{"level": "debug"}), log)
	if err != nil {
		t.Fatal(err)
	}
	_ = a.Act(context.Background(), testEvent())
	if !strings.Contains(buf.String(), `"level":"DEBUG"`) {
		t.Errorf("expected DEBUG record, got %s", buf.String())
	}
}

func TestLogAction_BadLevel(t *testing.T) {
	if _, err := newLogAction(spec("audit", map[string]any{"level": "loud"}), discard); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestWebhookAction_Payloads(t *testing.T) {
	tests := []struct {
		kind  string
		check func(t *testing.T, body map[string]any)
	}{
		{"slack", func(t *testing.T, body map[string]any) {
			text, _ := body["text"].(string)
			if !strings.Contains(text, "[CRITICAL]") || !strings.Contains(text, "vpn is down") {
				t.Errorf("slack text = %q", text)
			}
		}},
		{"teams", func(t *testing.T, body map[string]any) {
			if body["@type"] != "MessageCard" || body["themeColor"] != "FF4F6A" {
				t.Errorf("teams card = %v", body)
			}
		}},
		{"http", func(t *testing.T, body map[string]any) {
			ev, _ := body["event"].(map[string]any)
			if ev["monitor"] != "vpn" || ev["severity"] != "critical" {
				t.Errorf("http event = %v", ev)
			}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.kind, func(t *testing.T) {
			var got map[string]any
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if ct := r.Header.Get("Content-Type"); ct != "application/json" {
					t.Errorf("Content-Type = %q", ct)
				}
				if r.Header.Get("X-Team") != "ops" {
					t.Errorf("custom header missing")
				}
				_ = json.NewDecoder(r.Body).Decode(&got)
				w.WriteHeader(http.StatusNoContent)
			}))
			defer srv.Close()

			a, err := newWebhookAction(spec("hook", map[string]any{
				"url":     srv.URL,
				"kind":    tc.kind,
				"headers": map[string]any{"X-Team": "ops"},
			}), discard)
			if err != nil {
				t.Fatalf("newWebhookAction() error = %v", err)
			}
			if err := a.Act(context.Background(), testEvent()); err != nil {
				t.Fatalf("Act() error = %v", err)
			}
			tc.check(t, got)
		})
	}
}

func TestWebhookAction_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a, _ := newWebhookAction(spec("hook", map[string]any{"url": srv.URL}), discard)
	err := a.Act(context.Background(), testEvent())
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("Act() error = %v, want HTTP 502", err)
	}
}

func TestWebhookAction_RateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	a, err := newWebhookAction(spec("hook", map[string]any{
		"url":        srv.URL,
		"rate_limit": "1h",
	}), discard)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := a.Act(context.Background(), testEvent()); err != nil {
			t.Fatalf("Act() #%d error = %v", i, err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("deliveries = %d, want 1 (rest rate limited)", got)
	}
}

func TestWebhookAction_ConfigErrors(t *testing.T) {
	for name, opts := range map[string]map[string]any{
		"missing url":  {},
		"unknown kind": {"url": "http://x", "kind": "pagerduty"},
	} {
		if _, err := newWebhookAction(spec("hook", opts), discard); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestCommandAction_Env(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}
	out := filepath.Join(t.TempDir(), "out.txt")
	a, err := newCommandAction(spec("notify", map[string]any{
		"command": []any{"/bin/sh", "-c", `printf '%s|%s|%s' "$PIMONITOR_EVENT_MONITOR" "$PIMONITOR_EVENT_SEVERITY" "$PIMONITOR_EVENT_MESSAGE" > "$OUT"`},
	}), discard)
	if err != nil {
		t.Fatalf("newCommandAction() error = %v", err)
	}
	t.Setenv("OUT", out)

	if err := a.Act(context.Background(), testEvent()); err != nil {
		t.Fatalf("Act() error = %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(data), "vpn|critical|vpn is down"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestCommandAction_NonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}
	a, _ := newCommandAction(spec("notify", map[string]any{
		"command": []any{"/bin/sh", "-c", "echo boom >&2; exit 3"},
	}), discard)
	err := a.Act(context.Background(), testEvent())
	if err == nil {
		t.Fatal("expected error on non-zero exit")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error should carry command output: %v", err)
	}
}

func TestCommandAction_Timeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}
	a, _ := newCommandAction(spec("slow", map[string]any{
		"command": []any{"/bin/sh", "-c", "exec sleep 5"},
		"timeout": "50ms",
	}), discard)
	start := time.Now()
	if err := a.Act(context.Background(), testEvent()); err == nil {
		t.Error("expected timeout error")
	}
	if time.Since(start) > 4*time.Second {
		t.Error("command was not killed at the timeout")
	}
}

func TestCommandAction_Required(t *testing.T) {
	if _, err := newCommandAction(spec("x", nil), discard); err == nil {
		t.Error("expected error when command is missing")
	}
}

func TestRegister(t *testing.T) {
	f := component.NewFactory()
	Register(f)
	if got := strings.Join(f.ActionTypes(), ","); got != "command,log,webhook" {
		t.Errorf("ActionTypes() = %s", got)
	}
}
