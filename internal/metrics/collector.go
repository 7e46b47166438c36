package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// VerdictSource supplies current verification state at scrape time.
type VerdictSource interface {
	// VerdictCounts returns how many recordings are tracked and how each
	// breaks down by current verdict.
	VerdictCounts() (tracked, verified, mismatched, unverified int)
}

// VerifierCollector implements prometheus.Collector over the verifier's
// current state. It polls VerdictCounts lazily on each Prometheus scrape
// rather than maintaining duplicate state.
type VerifierCollector struct {
	source VerdictSource

	recordingsTracked    *prometheus.Desc
	recordingsVerified   *prometheus.Desc
	recordingsMismatched *prometheus.Desc
	recordingsUnverified *prometheus.Desc
}

// NewVerifierCollector creates a collector that scrapes verifier state on
// demand.
func NewVerifierCollector(source VerdictSource) *VerifierCollector {
	return &VerifierCollector{
		source: source,

		recordingsTracked: prometheus.NewDesc(
			"hoarderwatch_recordings_tracked",
			"Recordings currently tracked by the verifier.",
			nil, nil,
		),
		recordingsVerified: prometheus.NewDesc(
			"hoarderwatch_recordings_verified",
			"Recordings whose detected duration matches the schedule.",
			nil, nil,
		),
		recordingsMismatched: prometheus.NewDesc(
			"hoarderwatch_recordings_mismatched",
			"Recordings flagged with a duration mismatch.",
			nil, nil,
		),
		recordingsUnverified: prometheus.NewDesc(
			"hoarderwatch_recordings_unverified",
			"Recordings with no verdict yet.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *VerifierCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.recordingsTracked
	ch <- c.recordingsVerified
	ch <- c.recordingsMismatched
	ch <- c.recordingsUnverified
}

// Collect implements prometheus.Collector.
func (c *VerifierCollector) Collect(ch chan<- prometheus.Metric) {
	tracked, verified, mismatched, unverified := c.source.VerdictCounts()

	ch <- prometheus.MustNewConstMetric(c.recordingsTracked, prometheus.GaugeValue, float64(tracked))
	ch <- prometheus.MustNewConstMetric(c.recordingsVerified, prometheus.GaugeValue, float64(verified))
	ch <- prometheus.MustNewConstMetric(c.recordingsMismatched, prometheus.GaugeValue, float64(mismatched))
	ch <- prometheus.MustNewConstMetric(c.recordingsUnverified, prometheus.GaugeValue, float64(unverified))
}
