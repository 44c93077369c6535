package singularity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// metrics holds the per-app Prometheus registry and the site's own counters.
// HTTP request metrics are added by the echoprometheus middleware on the same
// registry.
type metrics struct {
	registry         *prometheus.Registry
	pageRenders      *prometheus.CounterVec
	imageRequests    *prometheus.CounterVec
	strictMismatches prometheus.Counter
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		pageRenders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "singularity",
			Name:      "page_renders_total",
			Help:      "Rendered pages by page name.",
		}, []string{"page"}),
		imageRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "singularity",
			Name:      "image_requests_total",
			Help:      "Image optimizer requests by result (hit, miss, rejected, limited, error).",
		}, []string{"result"}),
		strictMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "singularity",
			Name:      "strict_mode_mismatches_total",
			Help:      "Pages whose two strict-mode renders differed.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.pageRenders,
		m.imageRequests,
		m.strictMismatches,
	)
	return m
}
