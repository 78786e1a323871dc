package stats

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the counters exported by the stats service. A nil *Metrics
// records nothing.
type Metrics struct {
	EventsRecorded *prometheus.CounterVec
	Rollovers      *prometheus.CounterVec
	DedupRejected  *prometheus.CounterVec
	StorageErrors  *prometheus.CounterVec
}

// NewMetrics creates the service counters and registers them with registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_events_recorded_total",
				Help: "Total number of events counted",
			},
			[]string{"name"},
		),
		Rollovers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_rollovers_total",
				Help: "Total number of day rollovers",
			},
			[]string{"name"},
		),
		DedupRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_dedup_rejected_total",
				Help: "Total number of events treated as a continuing visit",
			},
			[]string{"name"},
		),
		StorageErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_storage_errors_total",
				Help: "Total number of failed storage operations",
			},
			[]string{"op"},
		),
	}

	if registry != nil {
		registry.MustRegister(m.EventsRecorded, m.Rollovers, m.DedupRejected, m.StorageErrors)
	}
	return m
}

func (m *Metrics) recorded(name string) {
	if m != nil {
		m.EventsRecorded.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) rollover(name string) {
	if m != nil {
		m.Rollovers.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) dedupRejected(name string) {
	if m != nil {
		m.DedupRejected.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) storageError(op string) {
	if m != nil {
		m.StorageErrors.WithLabelValues(op).Inc()
	}
}
