package monitor

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pimonitor/pimonitor/internal/component"
)

func newTestTLSCert(t *testing.T, warnDays int) (*tlsCertMonitor, time.Time) {
	t.Helper()
	srv := httptest.NewTLSServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	t.Cleanup(srv.Close)

	m, err := newTLSCertMonitor(spec("cert", map[string]any{
		"endpoint":             srv.URL,
		"warn_days":            warnDays,
		"insecure_skip_verify": true,
	}), discard)
	if err != nil {
		t.Fatalf("newTLSCertMonitor() error = %v", err)
	}
	return m.(*tlsCertMonitor), srv.Certificate().NotAfter
}

func TestTLSCertMonitor_Valid(t *testing.T) {
	m, notAfter := newTestTLSCert(t, 30)
	m.now = func() time.Time { return notAfter.Add(-90 * 24 * time.Hour) }
	if events := run(t, m); len(events) != 0 {
		t.Errorf("valid cert produced events: %+v", events)
	}
}

func TestTLSCertMonitor_Expiring(t *testing.T) {
	m, notAfter := newTestTLSCert(t, 30)
	m.now = func() time.Time { return notAfter.Add(-10*24*time.Hour - time.Hour) }

	events := run(t, m)
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].Severity != component.SeverityWarning {
		t.Errorf("severity = %q, want warning", events[0].Severity)
	}
	if got := events[0].Fields["days_left"]; got != 10 {
		t.Errorf("days_left = %v, want 10", got)
	}
}

func TestTLSCertMonitor_Expired(t *testing.T) {
	m, notAfter := newTestTLSCert(t, 30)
	m.now = func() time.Time { return notAfter.Add(48 * time.Hour) }

	events := run(t, m)
	if len(events) != 1 || events[0].Severity != component.SeverityCritical {
		t.Fatalf("events = %+v, want one critical", events)
	}
	if !strings.Contains(events[0].Message, "expired") {
		t.Errorf("message = %q", events[0].Message)
	}
}

func TestTLSCertMonitor_Unreachable(t *testing.T) {
	m, err := newTLSCertMonitor(spec("cert", map[string]any{"endpoint": "127.0.0.1:1"}), discard)
	if err != nil {
		t.Fatal(err)
	}
	events := run(t, m)
	if len(events) != 1 || events[0].Severity != component.SeverityWarning {
		t.Errorf("events = %+v", events)
	}
}

func TestDialAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "https://example.com", want: "example.com:443"},
		{in: "https://example.com:8443/path", want: "example.com:8443"},
		{in: "example.com:993", want: "example.com:993"},
		{in: "http://example.com", wantErr: true},
		{in: "example.com", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range tests {
		got, err := dialAddress(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("dialAddress(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("dialAddress(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTLSCertMonitor_ZeroTimeoutUsesDefault(t *testing.T) {
	m, err := newTLSCertMonitor(spec("cert", map[string]any{"endpoint": "example.com:443", "timeout": "0s"}), discard)
	if err != nil {
		t.Fatal(err)
	}
	if got := m.(*tlsCertMonitor).opts.Timeout; got != defaultTimeout {
		t.Errorf("timeout = %v, want %v", got, defaultTimeout)
	}
}
