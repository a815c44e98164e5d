//go:build nometrics

package obs

import (
	"context"
	"net/http"
	"time"
)

type Metrics struct{}

type MetricsOption func(*metricsConfig)

type metricsConfig struct{}

func NewMetrics(...MetricsOption) *Metrics {
	return nil
}

func WithRegisterer(_ any) MetricsOption {
	return func(*metricsConfig) {}
}

func (m *Metrics) ObserveRequest(string, string, time.Duration, string) {}

func (m *Metrics) ObserveFusion(string, time.Duration) {}

func (m *Metrics) RecordInsight(string) {}

func (m *Metrics) AddDropped(int) {}

func (m *Metrics) AddScoringFailures(int64) {}

func (m *Metrics) IncBudgetHit() {}

func (m *Metrics) IncRateLimited() {}

func (m *Metrics) Handler() http.Handler {
	return http.NotFoundHandler()
}

func InitTracer(string, float64) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}
