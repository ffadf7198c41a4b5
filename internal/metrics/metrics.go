package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	llmCalls       *prometheus.CounterVec
	llmLatency     *prometheus.HistogramVec
	generations    *prometheus.CounterVec
	attempts       prometheus.Histogram
	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
	quotaRejected  prometheus.Counter
	cacheLookups   *prometheus.CounterVec
	deviceVerdicts *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ascend_llm_calls_total",
			Help: "Upstream model calls by candidate, operation and outcome.",
		}, []string{"candidate", "op", "outcome"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ascend_llm_call_duration_seconds",
			Help:    "Latency of upstream model calls.",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 40, 60},
		}, []string{"op"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ascend_generations_total",
			Help: "Blueprint generations by mode and terminal outcome.",
		}, []string{"mode", "outcome"}),
		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ascend_generation_attempts",
			Help:    "Candidates tried per generation before success or fallback.",
			Buckets: []float64{0, 1, 2, 3, 4, 6, 8, 12},
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ascend_http_requests_total",
			Help: "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ascend_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		quotaRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ascend_quota_rejections_total",
			Help: "Generations refused because the daily limit was reached.",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ascend_cache_lookups_total",
			Help: "Cache lookups by cache name and result.",
		}, []string{"cache", "result"}),
		deviceVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ascend_device_checks_total",
			Help: "Device anti-abuse checks by verdict.",
		}, []string{"verdict"}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.llmCalls, m.llmLatency, m.generations, m.attempts,
		m.httpRequests, m.httpLatency, m.quotaRejected, m.cacheLookups, m.deviceVerdicts,
	)
	return m
}

// ObserveCall records one upstream model call.
func (m *Metrics) ObserveCall(client, op string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.llmCalls.WithLabelValues(candidateLabel(client), op, outcome).Inc()
	m.llmLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// candidateLabel drops the key index so cardinality stays per model.
func candidateLabel(name string) string {
	if i := strings.LastIndexByte(name, '#'); i > 0 {
		return name[:i]
	}
	return name
}

func (m *Metrics) ObserveGeneration(mode, outcome string, attempts int) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(mode, outcome).Inc()
	m.attempts.Observe(float64(attempts))
}

func (m *Metrics) ObserveHTTP(route, method string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.httpLatency.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) QuotaRejected() {
	if m == nil {
		return
	}
	m.quotaRejected.Inc()
}

func (m *Metrics) CacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

func (m *Metrics) DeviceVerdict(verdict string) {
	if m == nil {
		return
	}
	m.deviceVerdicts.WithLabelValues(verdict).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
