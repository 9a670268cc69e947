package monitor

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/pimonitor/pimonitor/internal/component"
)

const defaultTimeout = 10 * time.Second

// AuthOptions configures how a monitor authenticates to its target. Secret
// values are usually written as ${VAR} references resolved from the env file.
type AuthOptions struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// CertFile, KeyFile and CAFile are used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Header and Key are used when Mode == "apikey".
	Header string `yaml:"header"`
	Key    string `yaml:"key"`

	// Token is used when Mode == "bearer".
	Token string `yaml:"token"`

	// Username and Password are used when Mode == "basic".
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

func (a AuthOptions) validate() error {
	switch a.Mode {
	case "", "none", "bearer", "basic":
	case "apikey":
		if a.Header == "" {
			return fmt.Errorf("auth.header is required for apikey mode")
		}
	case "mtls":
		if a.CertFile == "" || a.KeyFile == "" {
			return fmt.Errorf("auth.cert_file and auth.key_file are required for mtls mode")
		}
	default:
		return fmt.Errorf("unknown auth mode %q", a.Mode)
	}
	return nil
}

// TLSOptions holds TLS dial options.
type TLSOptions struct {
	// InsecureSkipVerify disables certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth AuthOptions
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.auth.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		req.Header.Set(t.auth.Header, t.auth.Key)
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.auth.Token)
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.auth.Username, t.auth.Password)
	}
	return t.base.RoundTrip(req)
}

// buildHTTPClient constructs an http.Client for the given auth and TLS settings.
func buildHTTPClient(auth AuthOptions, tlsOpts TLSOptions, timeout time.Duration) (*http.Client, error) {
	if err := auth.validate(); err != nil {
		return nil, err
	}
	tlsCfg := &tls.Config{
		InsecureSkipVerify: tlsOpts.InsecureSkipVerify, //nolint:gosec // user-configured
	}

	if auth.Mode == "mtls" {
		cert, err := tls.LoadX509KeyPair(auth.CertFile, auth.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}

		if auth.CAFile != "" {
			caPEM, err := os.ReadFile(auth.CAFile)
			if err != nil {
				return nil, fmt.Errorf("read ca file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caPEM) {
				return nil, fmt.Errorf("no valid certs found in ca file %q", auth.CAFile)
			}
			tlsCfg.RootCAs = pool
		}
	}

	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Transport: &authRoundTripper{
			base: &http.Transport{TLSClientConfig: tlsCfg},
			auth: auth,
		},
		Timeout: timeout,
	}, nil
}

// edge tracks whether a monitor's condition is currently failing so that
// repeat and recovery events can be controlled per monitor.
type edge struct {
	// Repeat reports the failure on every run, not only the first one.
	Repeat bool

	// Recovery emits an info event when a failing condition clears.
	Recovery bool

	failing bool
}

// observe returns the event to report for this run, if any. A nil failure
// means the condition is healthy.
func (e *edge) observe(name string, failure *component.Event, recovered string) []component.Event {
	if failure != nil {
		first := !e.failing
		e.failing = true
		if first || e.Repeat {
			return []component.Event{*failure}
		}
		return nil
	}
	if e.failing {
		e.failing = false
		if e.Recovery {
			return []component.Event{component.NewEvent(name, component.SeverityInfo, recovered)}
		}
	}
	return nil
}
