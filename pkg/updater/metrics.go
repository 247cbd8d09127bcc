package updater

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels of the updates counter.
const (
	OutcomeChanged   = "changed"
	OutcomeUnchanged = "unchanged"
	OutcomeFailed    = "failed"
	OutcomeBusy      = "busy"
	OutcomeDryRun    = "dry_run"
)

// Metrics holds the Prometheus collectors of page updates and discovery.
type Metrics struct {
	Updates         *prometheus.CounterVec
	UpdateDuration  prometheus.Histogram
	DiscoveredPages prometheus.Gauge
	RemovedPages    prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tabulist",
			Name:      "page_updates_total",
			Help:      "Page update runs by outcome.",
		}, []string{"outcome"}),
		UpdateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tabulist",
			Name:      "page_update_duration_seconds",
			Help:      "Duration of a single page update.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		DiscoveredPages: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tabulist",
			Name:      "discovered_pages",
			Help:      "Pages found by the last discovery run.",
		}),
		RemovedPages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tabulist",
			Name:      "removed_pages_total",
			Help:      "Status records dropped because their page no longer uses the template.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Updates, m.UpdateDuration, m.DiscoveredPages, m.RemovedPages)
	}
	return m
}
