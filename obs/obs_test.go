//go:build !nometrics

package obs

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecordsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(WithRegisterer(reg))

	m.ObserveRequest("/v1/fuse", "OK", 12*time.Millisecond, "trace-1")
	m.ObserveRequest("/v1/fuse", "OK", 3*time.Millisecond, "")
	m.ObserveFusion("ok", time.Millisecond)
	m.RecordInsight("multi-source")
	m.RecordInsight("multi-source")
	m.RecordInsight("cross-category")
	m.AddDropped(2)
	m.AddDropped(0)
	m.AddScoringFailures(1)
	m.IncBudgetHit()
	m.IncRateLimited()

	if got := testutil.ToFloat64(m.requests.WithLabelValues("/v1/fuse", "OK")); got != 2 {
		t.Fatalf("expected 2 requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.insights.WithLabelValues("multi-source")); got != 2 {
		t.Fatalf("expected 2 multi-source insights, got %v", got)
	}
	if got := testutil.ToFloat64(m.dropped); got != 2 {
		t.Fatalf("expected 2 dropped, got %v", got)
	}
	if got := testutil.ToFloat64(m.scoringFailures); got != 1 {
		t.Fatalf("expected 1 scoring failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.budgetHits); got != 1 {
		t.Fatalf("expected 1 budget hit, got %v", got)
	}
	if got := testutil.ToFloat64(m.rateLimited); got != 1 {
		t.Fatalf("expected 1 rate limited, got %v", got)
	}
	if got := testutil.CollectAndCount(m.fusionRuns); got != 1 {
		t.Fatalf("expected one fusion outcome series, got %d", got)
	}
}

func TestNewMetricsReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewMetrics(WithRegisterer(reg))
	second := NewMetrics(WithRegisterer(reg))

	first.IncBudgetHit()
	second.IncBudgetHit()
	if got := testutil.ToFloat64(first.budgetHits); got != 2 {
		t.Fatalf("expected shared counter at 2, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("/", "OK", time.Millisecond, "x")
	m.ObserveFusion("ok", time.Millisecond)
	m.RecordInsight("single-source")
	m.AddDropped(1)
	m.AddScoringFailures(1)
	m.IncBudgetHit()
	m.IncRateLimited()
}

func TestHandlerServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(WithRegisterer(reg))
	m.IncRateLimited()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "fusion_engine_rate_limited_total 1") {
		t.Fatalf("expected rate limited counter in output, got:\n%s", rec.Body.String())
	}
}
