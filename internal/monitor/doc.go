// Package monitor provides the built-in monitor types:
//
//	http       : endpoint reachability, expected status, optional body match
//	tcp        : port accepts connections
//	prometheus : threshold on a metric family from a text exposition endpoint
//	tls_cert   : leaf certificate expired or expiring within warn_days
//	disk       : filesystem used percentage against a threshold
//
// A failed probe is an observation, not an error: it comes back as an event.
// Run only returns an error when the monitor cannot do its job at all.
//
// Every type accepts repeat (default true: report on every failing run) and
// recovery (default false: emit an info event when the failure clears).
// HTTP-based monitors share the auth and tls options handled in base.go.
package monitor
