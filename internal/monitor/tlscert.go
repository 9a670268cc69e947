package monitor

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/url"
	"time"

	"github.com/pimonitor/pimonitor/internal/component"
	"github.com/pimonitor/pimonitor/internal/config"
)

type tlsCertOptions struct {
	// Endpoint is an https:// URL or a host:port pair.
	Endpoint           string        `yaml:"endpoint"`
	WarnDays           int           `yaml:"warn_days"`
	Timeout            time.Duration `yaml:"timeout"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	Repeat             bool          `yaml:"repeat"`
	Recovery           bool          `yaml:"recovery"`
}

// tlsCertMonitor dials a TLS endpoint and reports an event when the leaf
// certificate is expired, expiring within WarnDays, or cannot be fetched.
type tlsCertMonitor struct {
	component.ListenerSet

	name  string
	host  string
	opts  tlsCertOptions
	log   *slog.Logger
	now   func() time.Time
	state edge
}

func newTLSCertMonitor(spec config.ComponentSpec, log *slog.Logger) (component.Monitor, error) {
	opts := tlsCertOptions{
		WarnDays: 30,
		Timeout:  defaultTimeout,
		Repeat:   true,
	}
	if err := spec.Decode(&opts); err != nil {
		return nil, err
	}
	host, err := dialAddress(opts.Endpoint)
	if err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &tlsCertMonitor{
		name:  spec.Name,
		host:  host,
		opts:  opts,
		log:   log,
		now:   time.Now,
		state: edge{Repeat: opts.Repeat, Recovery: opts.Recovery},
	}, nil
}

// dialAddress turns an https URL or host:port into a host:port to dial.
func dialAddress(endpoint string) (string, error) {
	if endpoint == "" {
		return "", fmt.Errorf("endpoint is required")
	}
	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" && u.Host != "" {
		if u.Scheme != "https" {
			return "", fmt.Errorf("endpoint %q: only https URLs carry a certificate", endpoint)
		}
		host := u.Host
		if _, _, err := net.SplitHostPort(host); err != nil {
			// No explicit port in the URL, use the HTTPS default.
			host = net.JoinHostPort(host, "443")
		}
		return host, nil
	}
	if _, _, err := net.SplitHostPort(endpoint); err != nil {
		return "", fmt.Errorf("endpoint %q: %w", endpoint, err)
	}
	return endpoint, nil
}

func (m *tlsCertMonitor) Run(ctx context.Context) ([]component.Event, error) {
	var failure *component.Event

	notAfter, issuer, err := m.fetch(ctx)
	switch {
	case err != nil:
		m.log.Warn("monitor: tls dial failed", "endpoint", m.host, "err", err)
		ev := component.NewEvent(m.name, component.SeverityWarning,
			fmt.Sprintf("tls %s unreachable: %v", m.host, err))
		ev.Fields["endpoint"] = m.host
		failure = &ev

	default:
		daysLeft := int(math.Floor(notAfter.Sub(m.now()).Hours() / 24))
		var ev component.Event
		switch {
		case daysLeft <= 0:
			ev = component.NewEvent(m.name, component.SeverityCritical,
				fmt.Sprintf("certificate for %s expired on %s", m.host, notAfter.UTC().Format(time.RFC3339)))
		case daysLeft <= m.opts.WarnDays:
			ev = component.NewEvent(m.name, component.SeverityWarning,
				fmt.Sprintf("certificate for %s expires in %d days", m.host, daysLeft))
		}
		if ev.ID != "" {
			ev.Fields["endpoint"] = m.host
			ev.Fields["days_left"] = daysLeft
			ev.Fields["issuer"] = issuer
			failure = &ev
		}
	}
	return m.state.observe(m.name, failure, fmt.Sprintf("certificate for %s is valid", m.host)), nil
}

// fetch returns the leaf certificate's expiry and issuer common name.
func (m *tlsCertMonitor) fetch(ctx context.Context) (time.Time, string, error) {
	dialCtx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config: &tls.Config{
			InsecureSkipVerify: m.opts.InsecureSkipVerify, //nolint:gosec
		},
	}
	netConn, err := dialer.DialContext(dialCtx, "tcp", m.host)
	if err != nil {
		return time.Time{}, "", err
	}
	conn := netConn.(*tls.Conn)
	defer conn.Close()

	peerCerts := conn.ConnectionState().PeerCertificates
	if len(peerCerts) == 0 {
		return time.Time{}, "", fmt.Errorf("no peer certificates")
	}
	leaf := peerCerts[0]
	return leaf.NotAfter, leaf.Issuer.CommonName, nil
}
