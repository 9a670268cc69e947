package monitor

import "github.com/pimonitor/pimonitor/internal/component"

// Register adds the built-in monitor types to f.
func Register(f *component.Factory) {
	f.RegisterMonitor("http", newHTTPMonitor)
	f.RegisterMonitor("tcp", newTCPMonitor)
	f.RegisterMonitor("prometheus", newPrometheusMonitor)
	f.RegisterMonitor("tls_cert", newTLSCertMonitor)
	f.RegisterMonitor("disk", newDiskMonitor)
}
