package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	wrappersCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simnet_wrappers_created_total",
			Help: "Total number of wrapper records created.",
		},
		[]string{"engine_type"},
	)

	stateTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simnet_wrapper_state_transitions_total",
			Help: "Total number of wrapper lifecycle transitions.",
		},
		[]string{"to"},
	)

	engineRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "simnet_engine_run_duration_seconds",
			Help:    "Wall-clock duration of engine runs.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"engine_type"},
	)
)

func init() {
	prometheus.MustRegister(wrappersCreatedTotal)
	prometheus.MustRegister(stateTransitionsTotal)
	prometheus.MustRegister(engineRunDuration)
}
