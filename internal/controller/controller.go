package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/searchforge/fusion_engine/fuse"
	"github.com/searchforge/fusion_engine/internal/contract"
	"github.com/searchforge/fusion_engine/obs"
	"github.com/searchforge/fusion_engine/policy"
)

var (
	// ErrBadRequest indicates the request was invalid.
	ErrBadRequest = errors.New("bad request")
	// ErrSelfCheck indicates the readiness fusion produced an unexpected result.
	ErrSelfCheck = errors.New("engine self-check failed")
)

const (
	pingTimeout       = 200 * time.Millisecond
	defaultMaxSources = 1000
)

// Config groups controller dependencies. A non-nil Filter replaces the engine
// floors exactly, zeros included.
type Config struct {
	Engine          fuse.Options
	Filter          *fuse.FilterConfig
	Rate            policy.RateLimitConfig
	DefaultBudgetMS int
	MaxSources      int
	CacheTTL        time.Duration
	PolicyVersion   string
	LangfuseHost    string
	LangfuseProject string
	Metrics         *obs.Metrics
	Logger          *slog.Logger
	Clock           func() time.Time
}

// Controller coordinates policy, caching, and fusion.
type Controller struct {
	engine     *fuse.Engine
	guard      *policy.Guard
	cache      *Cache
	metrics    *obs.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
	maxSources int
	policyHash string
	host       string
	project    string
}

// New constructs a controller.
func New(cfg Config) (*Controller, error) {
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = defaultMaxSources
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Engine.Logger == nil {
		cfg.Engine.Logger = cfg.Logger
	}

	var recorder policy.Recorder
	if cfg.Metrics != nil {
		recorder = cfg.Metrics
	}
	guard, err := policy.NewGuard(policy.GuardConfig{
		Rate:            cfg.Rate,
		DefaultBudgetMS: cfg.DefaultBudgetMS,
		Clock:           cfg.Clock,
	}, recorder)
	if err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}

	engine := fuse.NewEngine(cfg.Engine)
	if cfg.Filter != nil {
		engine = engine.WithFilter(*cfg.Filter)
	}

	return &Controller{
		engine:     engine,
		guard:      guard,
		cache:      NewCache(cfg.CacheTTL),
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		tracer:     otel.Tracer("github.com/searchforge/fusion_engine/internal/controller"),
		maxSources: cfg.MaxSources,
		policyHash: cfg.PolicyVersion,
		host:       cfg.LangfuseHost,
		project:    cfg.LangfuseProject,
	}, nil
}

// MaxSources returns the per-request source limit.
func (c *Controller) MaxSources() int {
	return c.maxSources
}

// DefaultBudgetMS returns the budget applied when a request names none.
func (c *Controller) DefaultBudgetMS() int {
	return c.guard.DefaultBudgetMS()
}

// Fuse executes the fusion pipeline. The response is populated even on error
// so callers can report the return code.
func (c *Controller) Fuse(ctx context.Context, req contract.FuseRequest) (contract.FuseResponse, error) {
	traceID := requestTraceID(ctx, req.TraceID)
	ctx, span := c.tracer.Start(ctx, "controller.Fuse", trace.WithAttributes(
		attribute.Int("fusion.sources", len(req.Sources)),
		attribute.String("trace_id", traceID),
	))
	defer span.End()

	start := time.Now()
	resp := contract.FuseResponse{
		Insights: []fuse.FusedInsight{},
		RetCode:  contract.RetOK,
		TraceURL: c.BuildTraceURL(traceID),
	}
	resp.Stats.Sources = len(req.Sources)

	fail := func(code string, err error) (contract.FuseResponse, error) {
		resp.RetCode = code
		resp.Error = err.Error()
		resp.Timings.TotalMS = time.Since(start).Milliseconds()
		span.RecordError(err)
		span.SetStatus(codes.Error, code)
		c.logger.Warn("fuse request failed",
			slog.String("trace_id", traceID),
			slog.String("ret_code", code),
			slog.Any("error", err),
		)
		return resp, err
	}

	if err := req.Validate(c.maxSources); err != nil {
		return fail(contract.RetBadRequest, fmt.Errorf("%w: %w", ErrBadRequest, err))
	}

	filter := req.Thresholds.Apply(c.engine.FilterConfig())
	cacheKey, err := BuildCacheKey(req, filter, c.policyHash)
	if err != nil {
		c.logger.Debug("skipping cache", slog.Any("error", err))
	}
	if entry, ok := c.cache.Get(cacheKey); ok {
		resp.Insights = c.engine.Reissue(entry.Insights)
		resp.Stats = entry.Stats
		resp.Timings.FusionMS = entry.FusionMS
		resp.Timings.CacheHit = true
		resp.Timings.TotalMS = time.Since(start).Milliseconds()
		c.metrics.ObserveFusion("cache_hit", time.Since(start))
		span.SetAttributes(attribute.Bool("cache_hit", true))
		return resp, nil
	}

	var report fuse.Report
	engine := c.engine.WithFilter(filter)
	fusionStart := time.Now()
	err = c.guard.Execute(ctx, req.BudgetMS, func(callCtx context.Context) error {
		var fuseErr error
		report, fuseErr = engine.FuseWithReport(callCtx, req.Sources, req.ExternalData)
		return fuseErr
	})
	fusionTook := time.Since(fusionStart)
	resp.Timings.FusionMS = fusionTook.Milliseconds()

	if err != nil {
		code := RetCode(err)
		switch code {
		case contract.RetBudgetExceeded:
			resp.Degraded = true
			c.metrics.ObserveFusion("budget_exceeded", fusionTook)
		case contract.RetRateLimited:
		default:
			c.metrics.ObserveFusion("error", fusionTook)
		}
		return fail(code, err)
	}

	c.metrics.ObserveFusion("ok", fusionTook)
	c.metrics.AddDropped(report.Dropped)
	c.metrics.AddScoringFailures(report.ScoringFailures)
	for _, in := range report.Insights {
		c.metrics.RecordInsight(string(in.Kind))
	}

	resp.Insights = report.Insights
	resp.Stats = contract.Stats{
		Sources:         len(req.Sources),
		Groups:          report.Groups,
		PreFilter:       report.PreFilter,
		Dropped:         report.Dropped,
		ScoringFailures: report.ScoringFailures,
		ExternalRecords: report.ExternalRecords,
	}
	resp.Timings.TotalMS = time.Since(start).Milliseconds()
	span.SetAttributes(attribute.Int("fusion.insights", len(resp.Insights)))

	c.cache.Set(cacheKey, CacheEntry{
		Insights: cloneInsights(resp.Insights),
		Stats:    resp.Stats,
		FusionMS: resp.Timings.FusionMS,
	})
	return resp, nil
}

// Similarity scores the two sources of req.
func (c *Controller) Similarity(ctx context.Context, req contract.SimilarityRequest) (contract.SimilarityResponse, error) {
	traceID := requestTraceID(ctx, "")
	_, span := c.tracer.Start(ctx, "controller.Similarity", trace.WithAttributes(
		attribute.String("trace_id", traceID),
	))
	defer span.End()

	b := c.engine.Explain(req.A, req.B)
	return contract.SimilarityResponse{
		Similarity: b.Total,
		Content:    b.Content,
		Metadata:   b.Metadata,
		Primary:    b.Primary,
		Secondary:  b.Secondary,
		Clusters:   b.Total > fuse.ClusterThreshold,
	}, nil
}

// RetCode maps a Fuse error onto a response return code.
func RetCode(err error) string {
	switch {
	case err == nil:
		return contract.RetOK
	case errors.Is(err, policy.ErrRateLimited):
		return contract.RetRateLimited
	case errors.Is(err, policy.ErrBudgetExceeded):
		return contract.RetBudgetExceeded
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, policy.ErrInvalidBudget),
		errors.Is(err, fuse.ErrInvalidSource):
		return contract.RetBadRequest
	default:
		return contract.RetFusionFailed
	}
}

// BuildTraceURL builds a Langfuse trace if configured.
func (c *Controller) BuildTraceURL(traceID string) string {
	if c.host == "" || c.project == "" || traceID == "" {
		return ""
	}
	base := strings.TrimSuffix(c.host, "/")
	return fmt.Sprintf("%s/project/%s/traces?query=%s", base, c.project, url.QueryEscape(traceID))
}

var selfCheckSources = []fuse.DataSource{
	{ID: "ready-a", Category: "document", Name: "ready-a", Content: "readiness probe clause", PrimaryScore: 1, SecondaryScore: 1},
	{ID: "ready-b", Category: "document", Name: "ready-b", Content: "readiness probe clause", PrimaryScore: 1, SecondaryScore: 1},
}

// Ping runs a small fusion outside the rate limiter and checks it yields one
// multi-source insight.
func (c *Controller) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	insights, err := c.engine.WithFilter(fuse.DefaultFilterConfig()).Fuse(ctx, selfCheckSources, nil)
	if err != nil {
		return err
	}
	if len(insights) != 1 || insights[0].Kind != fuse.KindMultiSource {
		return fmt.Errorf("%w: got %d insights", ErrSelfCheck, len(insights))
	}
	return nil
}

// requestTraceID prefers the explicit id and falls back to the one carried by
// ctx.
func requestTraceID(ctx context.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	traceID, _ := contract.TraceIDFromContext(ctx)
	return traceID
}

func cloneInsights(in []fuse.FusedInsight) []fuse.FusedInsight {
	out := make([]fuse.FusedInsight, len(in))
	for i, insight := range in {
		out[i] = insight.Clone()
	}
	return out
}
