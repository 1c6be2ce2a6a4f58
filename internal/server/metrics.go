package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Page kinds used as the metrics label.
const (
	pageList             = "list"
	pageDetail           = "detail"
	pageFunctionNotFound = "function_not_found"
	pageDatabaseNotFound = "database_not_found"
	pageError            = "error"
)

// metrics holds the collectors for one server. Each server owns its registry
// so several can coexist in one process.
type metrics struct {
	registry *prometheus.Registry
	pages    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "proftree",
			Name:      "pages_total",
			Help:      "Viewer pages served, by page kind.",
		}, []string{"page"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "proftree",
			Name:      "page_duration_seconds",
			Help:      "Time to query and render a viewer page.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"page"}),
	}
	m.registry.MustRegister(
		m.pages,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// observe counts a served page. A zero start skips the duration sample.
func (m *metrics) observe(page string, start time.Time) {
	m.pages.WithLabelValues(page).Inc()
	if !start.IsZero() {
		m.duration.WithLabelValues(page).Observe(time.Since(start).Seconds())
	}
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
