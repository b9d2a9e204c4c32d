package fetcher

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles Prometheus collectors for the fetch stage.
type Metrics struct {
	Registry      *prometheus.Registry
	PagesTotal    *prometheus.CounterVec
	RetriesTotal  prometheus.Counter
	InFlightPages prometheus.Gauge
}

// NewMetrics constructs and registers all collectors on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetcher_pages_total",
			Help: "Work items completed by the fetcher, by outcome.",
		},
		[]string{"outcome"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fetcher_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fetcher_inflight_pages",
			Help: "Pages currently in the in-flight state; bounded by the concurrency limit.",
		},
	)

	registry.MustRegister(pages, retries, inFlight)

	return &Metrics{
		Registry:      registry,
		PagesTotal:    pages,
		RetriesTotal:  retries,
		InFlightPages: inFlight,
	}
}

// IncPage records a completed work item by outcome label.
func (m *Metrics) IncPage(outcome string) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues(outcome).Inc()
}

// IncRetries increments the retry counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// PageStarted and PageFinished track the in-flight gauge.
func (m *Metrics) PageStarted() {
	if m == nil {
		return
	}
	m.InFlightPages.Inc()
}

func (m *Metrics) PageFinished() {
	if m == nil {
		return
	}
	m.InFlightPages.Dec()
}
