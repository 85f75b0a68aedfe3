package supervisor

import "github.com/prometheus/client_golang/prometheus"

var startsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "llamad",
		Subsystem: "supervisor",
		Name:      "starts_total",
		Help:      "Number of llama-server processes spawned.",
	},
)

var startFailuresTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "llamad",
		Subsystem: "supervisor",
		Name:      "start_failures_total",
		Help:      "Starts that never reached readiness, by reason.",
	},
	[]string{"reason"},
)

var stopsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "llamad",
		Subsystem: "supervisor",
		Name:      "stops_total",
		Help:      "Number of supervised processes torn down.",
	},
)

var forcedKillsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "llamad",
		Subsystem: "supervisor",
		Name:      "forced_kills_total",
		Help:      "Stops that escalated from SIGTERM to SIGKILL.",
	},
)

var probesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "llamad",
		Subsystem: "supervisor",
		Name:      "readiness_probes_total",
		Help:      "Health probes issued during startup, by result.",
	},
	[]string{"result"},
)

var readySeconds = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "llamad",
		Subsystem: "supervisor",
		Name:      "time_to_ready_seconds",
		Help:      "Wall time from spawn until the health endpoint answered.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	},
)

func init() {
	prometheus.MustRegister(
		startsTotal,
		startFailuresTotal,
		stopsTotal,
		forcedKillsTotal,
		probesTotal,
		readySeconds,
	)
}
