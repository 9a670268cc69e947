// Package status records dispatch progress and serves it over HTTP.
//
// The Store is written by the dispatch loop after every monitor run and
// cycle. NewHandler exposes it together with the Prometheus registry:
//
//	GET /healthz          liveness, 503 once cycles stop completing
//	GET /metrics          Prometheus text exposition
//	GET /api/v1/status    per-monitor outcomes and listener bindings
//	GET /api/v1/monitors/{name}
package status
