package contract

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/searchforge/fusion_engine/fuse"
)

const TraceIDHeader = "X-Trace-Id"

// Return codes carried in FuseResponse.RetCode.
const (
	RetOK             = "OK"
	RetBadRequest     = "BAD_REQUEST"
	RetRateLimited    = "RATE_LIMITED"
	RetBudgetExceeded = "BUDGET_EXCEEDED"
	RetFusionFailed   = "FUSION_FAILED"
)

// Thresholds overrides the quality floors for one request.
type Thresholds struct {
	MinPrimaryScore   *float64 `json:"min_primary_score,omitempty"`
	MinSecondaryScore *float64 `json:"min_secondary_score,omitempty"`
	MinConfidence     *float64 `json:"min_confidence,omitempty"`
}

// Apply returns base with every set threshold replaced.
func (t *Thresholds) Apply(base fuse.FilterConfig) fuse.FilterConfig {
	if t == nil {
		return base
	}
	if t.MinPrimaryScore != nil {
		base.MinPrimaryScore = *t.MinPrimaryScore
	}
	if t.MinSecondaryScore != nil {
		base.MinSecondaryScore = *t.MinSecondaryScore
	}
	if t.MinConfidence != nil {
		base.MinConfidence = *t.MinConfidence
	}
	return base
}

// FuseRequest is the body of POST /v1/fuse.
type FuseRequest struct {
	Sources      []fuse.DataSource `json:"sources"`
	ExternalData []json.RawMessage `json:"external_data,omitempty"`
	BudgetMS     int               `json:"budget_ms,omitempty"`
	Thresholds   *Thresholds       `json:"thresholds,omitempty"`
	TraceID      string            `json:"-"`
}

// Validate checks the request shape. Per-source checks are left to the
// engine.
func (r FuseRequest) Validate(maxSources int) error {
	if r.Sources == nil {
		return fmt.Errorf("sources required")
	}
	if maxSources > 0 && len(r.Sources) > maxSources {
		return fmt.Errorf("sources exceeds max (%d)", maxSources)
	}
	if r.BudgetMS < 0 {
		return fmt.Errorf("budget_ms must not be negative")
	}
	return nil
}

// Stats summarizes one fusion run.
type Stats struct {
	Sources         int        `json:"sources"`
	Groups          [][]string `json:"groups"`
	PreFilter       int        `json:"pre_filter"`
	Dropped         int        `json:"dropped"`
	ScoringFailures int64      `json:"scoring_failures"`
	ExternalRecords int        `json:"external_records"`
}

// Timings reports where the request spent its time.
type Timings struct {
	TotalMS  int64 `json:"total_ms"`
	FusionMS int64 `json:"fusion_ms"`
	CacheHit bool  `json:"cache_hit"`
}

// FuseResponse is the public response schema for /v1/fuse.
type FuseResponse struct {
	Insights []fuse.FusedInsight `json:"insights"`
	Stats    Stats               `json:"stats"`
	Timings  Timings             `json:"timings"`
	RetCode  string              `json:"ret_code"`
	Degraded bool                `json:"degraded"`
	Error    string              `json:"error,omitempty"`
	TraceURL string              `json:"trace_url,omitempty"`
}

// SimilarityRequest is the body of POST /v1/similarity.
type SimilarityRequest struct {
	A fuse.DataSource `json:"a"`
	B fuse.DataSource `json:"b"`
}

// SimilarityResponse carries the score and its components.
type SimilarityResponse struct {
	Similarity float64 `json:"similarity"`
	Content    float64 `json:"content"`
	Metadata   float64 `json:"metadata"`
	Primary    float64 `json:"primary"`
	Secondary  float64 `json:"secondary"`
	Clusters   bool    `json:"clusters"`
}

type contextKey string

const traceIDKey contextKey = "fusion_engine_trace_id"

// WithTraceID stores the trace identifier in context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext extracts the trace identifier.
func TraceIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value := ctx.Value(traceIDKey)
	if value == nil {
		return "", false
	}
	traceID, ok := value.(string)
	return traceID, ok
}
