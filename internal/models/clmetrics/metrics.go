package clmetrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics regroupe les compteurs exposés sur /metrics. Un *Metrics nil est
// accepté par toutes les méthodes.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	PageViewsTotal      prometheus.Counter
	SessionsEndedTotal  *prometheus.CounterVec
	SummaryCacheTotal   *prometheus.CounterVec
	APIKeyAuthTotal     *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blogcms_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "blogcms_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		PageViewsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "blogcms_analytics_page_views_total",
				Help: "Total number of recorded page views",
			},
		),
		SessionsEndedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blogcms_analytics_sessions_ended_total",
				Help: "Total number of ended sessions",
			},
			[]string{"reason"},
		),
		SummaryCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blogcms_analytics_summary_cache_total",
				Help: "Summary cache lookups by result",
			},
			[]string{"result"},
		),
		APIKeyAuthTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blogcms_apikey_auth_total",
				Help: "API key authentications by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PageViewsTotal,
		m.SessionsEndedTotal,
		m.SummaryCacheTotal,
		m.APIKeyAuthTotal,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordHTTPRequest(method, path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordPageView() {
	if m == nil {
		return
	}
	m.PageViewsTotal.Inc()
}

func (m *Metrics) RecordSessionEnded(reason string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.SessionsEndedTotal.WithLabelValues(reason).Add(float64(count))
}

func (m *Metrics) RecordSummaryCache(result string) {
	if m == nil {
		return
	}
	m.SummaryCacheTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordAPIKeyAuth(result string) {
	if m == nil {
		return
	}
	m.APIKeyAuthTotal.WithLabelValues(result).Inc()
}
