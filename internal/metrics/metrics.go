package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds probe instrumentation for direct use in the verifier.
type Metrics struct {
	ProbesTotal   *prometheus.CounterVec
	ProbeFailures *prometheus.CounterVec
	ProbeDuration prometheus.Histogram
	FetchedBytes  prometheus.Counter
	CacheHits     prometheus.Counter
	PassesTotal   prometheus.Counter
}

// New creates and registers probe metrics with the given registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ProbesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hoarderwatch",
			Subsystem: "probe",
			Name:      "probes_total",
			Help:      "Total completed network probes by container format.",
		}, []string{"container"}),
		ProbeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hoarderwatch",
			Subsystem: "probe",
			Name:      "failures_total",
			Help:      "Probe attempts that produced no duration, by reason.",
		}, []string{"reason"}),
		ProbeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hoarderwatch",
			Subsystem: "probe",
			Name:      "duration_seconds",
			Help:      "Wall time of a single recording probe.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		FetchedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hoarderwatch",
			Subsystem: "probe",
			Name:      "fetched_bytes_total",
			Help:      "Total bytes fetched from the PVR stream endpoint.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hoarderwatch",
			Subsystem: "probe",
			Name:      "cache_hits_total",
			Help:      "Recordings classified from the duration cache without a fetch.",
		}),
		PassesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hoarderwatch",
			Subsystem: "verify",
			Name:      "passes_total",
			Help:      "Completed verification passes.",
		}),
	}

	reg.MustRegister(
		m.ProbesTotal,
		m.ProbeFailures,
		m.ProbeDuration,
		m.FetchedBytes,
		m.CacheHits,
		m.PassesTotal,
	)

	return m
}
