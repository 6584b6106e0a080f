package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dashboard"

type PrometheusRecorder struct {
	registry *prometheus.Registry
	events   *prometheus.CounterVec
	refresh  *prometheus.CounterVec
	active   prometheus.Gauge
	sections *prometheus.CounterVec
}

func NewPrometheusRecorder(registry *prometheus.Registry) *PrometheusRecorder {
	r := &PrometheusRecorder{
		registry: registry,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_observed_total",
			Help:      "Observed events by kind and whether they were stored.",
		}, []string{"kind", "result"}),
		refresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Dashboard refreshes by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active",
			Help:      "Dashboards with a running refresh task.",
		}),
		sections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "section_failures_total",
			Help:      "Rendered sections replaced by a placeholder.",
		}, []string{"section"}),
	}
	registry.MustRegister(r.events, r.refresh, r.active, r.sections)
	return r
}

func (r *PrometheusRecorder) EventObserved(kind string, inserted bool) {
	result := "duplicate"
	if inserted {
		result = "inserted"
	}
	r.events.WithLabelValues(kind, result).Inc()
}

func (r *PrometheusRecorder) RefreshFinished(trigger string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.refresh.WithLabelValues(trigger, outcome).Inc()
}

func (r *PrometheusRecorder) ActiveDashboards(n int) {
	r.active.Set(float64(n))
}

func (r *PrometheusRecorder) SectionFailed(section string) {
	r.sections.WithLabelValues(section).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
