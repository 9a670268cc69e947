package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors updated by the loop.
type Metrics struct {
	cycles          prometheus.Counter
	lastCycle       prometheus.Gauge
	monitorRuns     *prometheus.CounterVec
	monitorDuration *prometheus.HistogramVec
	events          *prometheus.CounterVec
	actionCalls     *prometheus.CounterVec
}

// NewMetrics creates the dispatch collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pimonitor",
			Subsystem: "dispatch",
			Name:      "cycles_total",
			Help:      "Completed dispatch cycles",
		}),
		lastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pimonitor",
			Subsystem: "dispatch",
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time the last dispatch cycle completed",
		}),
		monitorRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pimonitor",
			Subsystem: "monitor",
			Name:      "runs_total",
			Help:      "Monitor runs by result",
		}, []string{"monitor", "result"}),
		monitorDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pimonitor",
			Subsystem: "monitor",
			Name:      "run_duration_seconds",
			Help:      "Duration of monitor runs in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"monitor"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pimonitor",
			Subsystem: "monitor",
			Name:      "events_total",
			Help:      "Events produced by monitors",
		}, []string{"monitor"}),
		actionCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pimonitor",
			Subsystem: "action",
			Name:      "calls_total",
			Help:      "Action invocations by result",
		}, []string{"action", "result"}),
	}
	reg.MustRegister(m.cycles, m.lastCycle, m.monitorRuns, m.monitorDuration, m.events, m.actionCalls)
	return m
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
