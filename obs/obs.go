//go:build !nometrics

package obs

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

const defaultSampleRatio = 0.3

var (
	setupOnce sync.Once
	shutdown  = func(context.Context) error { return nil }
)

// Metrics holds the Prometheus collectors of the fusion service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration prometheus.Histogram
	fusionRuns      *prometheus.CounterVec
	fusionDuration  prometheus.Histogram
	insights        *prometheus.CounterVec
	dropped         prometheus.Counter
	scoringFailures prometheus.Counter
	budgetHits      prometheus.Counter
	rateLimited     prometheus.Counter

	gatherer prometheus.Gatherer
}

// MetricsOption customizes NewMetrics.
type MetricsOption func(*metricsConfig)

type metricsConfig struct {
	registerer prometheus.Registerer
	buckets    []float64
}

// WithRegisterer overrides the default Prometheus registerer. When r is also
// a Gatherer (e.g. *prometheus.Registry) Handler serves from it.
func WithRegisterer(r prometheus.Registerer) MetricsOption {
	return func(cfg *metricsConfig) {
		cfg.registerer = r
	}
}

// NewMetrics constructs and registers the service collectors. Registering
// twice against the same registerer reuses the existing collectors.
func NewMetrics(opts ...MetricsOption) *Metrics {
	cfg := metricsConfig{
		registerer: prometheus.DefaultRegisterer,
		buckets:    prometheus.ExponentialBuckets(1, 2, 12),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	m := &Metrics{
		requests: register(cfg.registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fusion_engine_requests_total",
			Help: "Total API requests by route and return code.",
		}, []string{"route", "code"})),
		requestDuration: register(cfg.registerer, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fusion_engine_request_duration_ms",
			Help:    "Histogram of API request latency in ms.",
			Buckets: cfg.buckets,
		})),
		fusionRuns: register(cfg.registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fusion_engine_fusion_runs_total",
			Help: "Fusion calls by outcome.",
		}, []string{"outcome"})),
		fusionDuration: register(cfg.registerer, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fusion_engine_fusion_duration_ms",
			Help:    "Histogram of engine fusion latency in ms.",
			Buckets: cfg.buckets,
		})),
		insights: register(cfg.registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fusion_engine_insights_total",
			Help: "Insights returned to callers by kind.",
		}, []string{"kind"})),
		dropped: register(cfg.registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fusion_engine_insights_dropped_total",
			Help: "Insights removed by the quality filter.",
		})),
		scoringFailures: register(cfg.registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fusion_engine_scoring_failures_total",
			Help: "Pairwise similarity computations that degraded to zero.",
		})),
		budgetHits: register(cfg.registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fusion_engine_budget_hit_total",
			Help: "Total requests that exhausted the configured budget.",
		})),
		rateLimited: register(cfg.registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fusion_engine_rate_limited_total",
			Help: "Total requests rejected by the rate limiter.",
		})),
		gatherer: prometheus.DefaultGatherer,
	}
	if g, ok := cfg.registerer.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// ObserveRequest records one API request. The latency sample carries the
// trace id as an exemplar when one is present.
func (m *Metrics) ObserveRequest(route, code string, duration time.Duration, traceID string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, code).Inc()
	ms := millis(duration)
	if eo, ok := m.requestDuration.(prometheus.ExemplarObserver); ok && traceID != "" {
		eo.ObserveWithExemplar(ms, prometheus.Labels{"trace_id": traceID})
		return
	}
	m.requestDuration.Observe(ms)
}

// ObserveFusion records one engine call and its outcome ("ok", "error",
// "cache_hit").
func (m *Metrics) ObserveFusion(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.fusionRuns.WithLabelValues(outcome).Inc()
	m.fusionDuration.Observe(millis(duration))
}

// RecordInsight counts one emitted insight of the given kind.
func (m *Metrics) RecordInsight(kind string) {
	if m == nil {
		return
	}
	m.insights.WithLabelValues(kind).Inc()
}

// AddDropped counts insights removed by the quality filter.
func (m *Metrics) AddDropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dropped.Add(float64(n))
}

// AddScoringFailures counts degraded similarity computations.
func (m *Metrics) AddScoringFailures(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.scoringFailures.Add(float64(n))
}

// IncBudgetHit records a budget exhaustion event.
func (m *Metrics) IncBudgetHit() {
	if m == nil {
		return
	}
	m.budgetHits.Inc()
}

// IncRateLimited records a rejected request.
func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// Handler serves the registry the metrics were registered with.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func register[T prometheus.Collector](registerer prometheus.Registerer, collector T) T {
	if registerer == nil {
		return collector
	}
	if err := registerer.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
			return collector
		}
		panic(err)
	}
	return collector
}

func millis(d time.Duration) float64 {
	if d < 0 {
		return 0
	}
	return float64(d.Microseconds()) / 1000
}

// InitTracer installs a global tracer provider sampling the given ratio of
// root spans. A ratio outside (0,1] falls back to 0.3. Only the first call
// has an effect.
func InitTracer(serviceName string, sampleRatio float64) (func(context.Context) error, error) {
	var initErr error
	setupOnce.Do(func() {
		res, err := resource.New(context.Background(),
			resource.WithAttributes(
				semconv.ServiceName(serviceName),
			),
		)
		if err != nil {
			initErr = err
			return
		}

		if sampleRatio <= 0 || sampleRatio > 1 {
			sampleRatio = defaultSampleRatio
		}
		provider := sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(provider)
		shutdown = provider.Shutdown
	})
	return shutdown, initErr
}
