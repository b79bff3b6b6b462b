package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer, every method becomes a no-op.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	postsPublished prometheus.Counter
	postsArchived  prometheus.Counter
	conflicts      prometheus.Counter
	cacheLookups   *prometheus.CounterVec
	events         *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "currents_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "currents_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		postsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "currents_posts_published_total",
			Help: "Posts that became their author's active post.",
		}),
		postsArchived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "currents_posts_archived_total",
			Help: "Posts archived by a replacement.",
		}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "currents_publish_conflicts_total",
			Help: "Replacements rejected by a concurrent writer.",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "currents_cache_lookups_total",
			Help: "Cache lookups by result.",
		}, []string{"result"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "currents_events_total",
			Help: "Broker messages by queue and outcome.",
		}, []string{"queue", "outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.postsPublished,
		m.postsArchived,
		m.conflicts,
		m.cacheLookups,
		m.events,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveHTTP(route, method, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, status).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func (m *Metrics) PostPublished(archived bool) {
	if m == nil {
		return
	}
	m.postsPublished.Inc()
	if archived {
		m.postsArchived.Inc()
	}
}

func (m *Metrics) PublishConflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("hit").Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

func (m *Metrics) Event(queue, outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(queue, outcome).Inc()
}
