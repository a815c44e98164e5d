package fuse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/searchforge/fusion_engine/fuse"

// Options configures an Engine.
type Options struct {
	// Workers bounds parallel cross-category synthesis. 1 is sequential.
	Workers int
	Filter  FilterConfig
	IDs     IDGenerator
	Clock   func() time.Time
	Logger  *slog.Logger
}

// DefaultOptions returns sequential synthesis, the standard quality floors,
// UUID identifiers and the wall clock.
func DefaultOptions() Options {
	return Options{
		Workers: 1,
		Filter:  DefaultFilterConfig(),
		IDs:     UUIDGenerator,
		Clock:   time.Now,
	}
}

// Report is the full outcome of a fusion call.
type Report struct {
	Insights        []FusedInsight
	Groups          [][]string
	PreFilter       int
	Dropped         int
	ScoringFailures int64
	ExternalRecords int
}

// Engine turns sources into filtered insights. It keeps no state between
// calls and is safe for concurrent use.
type Engine struct {
	opts   Options
	tracer trace.Tracer
}

// NewEngine builds an Engine, filling unset options from DefaultOptions. A
// zero FilterConfig selects the default floors.
func NewEngine(opts Options) *Engine {
	defaults := DefaultOptions()
	if opts.Workers <= 0 {
		opts.Workers = defaults.Workers
	}
	if opts.Filter == (FilterConfig{}) {
		opts.Filter = defaults.Filter
	}
	if opts.IDs == nil {
		opts.IDs = defaults.IDs
	}
	if opts.Clock == nil {
		opts.Clock = defaults.Clock
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		opts:   opts,
		tracer: otel.Tracer(tracerName),
	}
}

// FilterConfig returns the floors applied by the engine.
func (e *Engine) FilterConfig() FilterConfig {
	return e.opts.Filter
}

// WithFilter returns a copy of e applying cfg exactly, zero floors included.
func (e *Engine) WithFilter(cfg FilterConfig) *Engine {
	cp := *e
	cp.opts.Filter = cfg
	return &cp
}

// Reissue returns deep copies of insights stamped with fresh ids and the
// current time, drawn in order. It is used to serve stored results.
func (e *Engine) Reissue(insights []FusedInsight) []FusedInsight {
	out := make([]FusedInsight, len(insights))
	now := e.opts.Clock()
	for i, in := range insights {
		out[i] = in.Clone()
		out[i].ID = e.opts.IDs(in.Kind)
		out[i].CreatedAt = now
	}
	return out
}

// Similarity scores a and b.
func (e *Engine) Similarity(a, b DataSource) float64 {
	return NewScorer(e.opts.Logger).Similarity(a, b)
}

// Explain returns the similarity signals for a and b.
func (e *Engine) Explain(a, b DataSource) Breakdown {
	return NewScorer(e.opts.Logger).Explain(a, b)
}

// Cluster partitions sources into seed-based groups in input order.
func (e *Engine) Cluster(ctx context.Context, sources []DataSource) ([][]DataSource, error) {
	return clusterSources(ctx, NewScorer(e.opts.Logger), sources)
}

// Fuse clusters sources, synthesizes group and cross-category insights and
// filters them. external is accepted for callers but not used. The call
// either returns every insight or fails with ErrFusionFailed.
func (e *Engine) Fuse(ctx context.Context, sources []DataSource, external []json.RawMessage) ([]FusedInsight, error) {
	report, err := e.FuseWithReport(ctx, sources, external)
	if err != nil {
		return nil, err
	}
	return report.Insights, nil
}

// FuseWithReport is Fuse returning the intermediate counts as well.
func (e *Engine) FuseWithReport(ctx context.Context, sources []DataSource, external []json.RawMessage) (report Report, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := e.tracer.Start(ctx, "fuse.Fuse", trace.WithAttributes(
		attribute.Int("fusion.sources", len(sources)),
		attribute.Int("fusion.external_records", len(external)),
	))
	defer span.End()

	logger := e.opts.Logger
	logger.Info("starting data fusion",
		slog.Int("source_count", len(sources)),
		slog.Int("external_data_count", len(external)),
	)

	defer func() {
		if r := recover(); r != nil {
			report = Report{}
			err = fmt.Errorf("%w: panic: %v", ErrFusionFailed, r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "fusion failed")
			logger.Error("data fusion failed", slog.Any("error", err))
		}
	}()

	report, err = e.run(ctx, sources, external)
	if err != nil {
		return Report{}, fmt.Errorf("%w: %w", ErrFusionFailed, err)
	}

	span.SetAttributes(
		attribute.Int("fusion.groups", len(report.Groups)),
		attribute.Int("fusion.insights", len(report.Insights)),
		attribute.Int("fusion.dropped", report.Dropped),
	)
	logger.Info("data fusion completed",
		slog.Int("fused_insights_count", len(report.Insights)),
		slog.Int("dropped_count", report.Dropped),
		slog.Int64("scoring_failures", report.ScoringFailures),
	)
	return report, nil
}

func (e *Engine) run(ctx context.Context, sources []DataSource, external []json.RawMessage) (Report, error) {
	if err := validateSources(sources); err != nil {
		return Report{}, err
	}

	scorer := NewScorer(e.opts.Logger)
	clusterCtx, clusterSpan := e.tracer.Start(ctx, "fuse.cluster")
	groups, err := clusterSources(clusterCtx, scorer, sources)
	clusterSpan.End()
	if err != nil {
		return Report{}, err
	}

	syn := synthesizer{ids: e.opts.IDs, now: e.opts.Clock}
	synthCtx, synthSpan := e.tracer.Start(ctx, "fuse.synthesize")
	insights, err := e.synthesize(synthCtx, syn, groups, sources)
	synthSpan.End()
	if err != nil {
		return Report{}, err
	}

	kept := FilterWith(insights, e.opts.Filter)

	return Report{
		Insights:        kept,
		Groups:          groupIDs(groups),
		PreFilter:       len(insights),
		Dropped:         len(insights) - len(kept),
		ScoringFailures: scorer.Failures(),
		ExternalRecords: len(external),
	}, nil
}

func (e *Engine) synthesize(ctx context.Context, syn synthesizer, groups [][]DataSource, sources []DataSource) ([]FusedInsight, error) {
	pairs := categoryPairs(sources)
	insights := make([]FusedInsight, 0, len(groups)+len(pairs))

	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		insight, err := syn.fromGroup(group)
		if err != nil {
			return nil, fmt.Errorf("group seeded by %q: %w", group[0].ID, err)
		}
		insights = append(insights, insight)
	}

	for i := range pairs {
		pairs[i].id = syn.ids(KindCrossCategory)
	}

	cross := make([]FusedInsight, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, pair := range pairs {
		i, pair := i, pair
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("cross-category %s/%s: panic: %v", pair.first, pair.second, r)
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			insight, err := syn.crossCategory(pair)
			if err != nil {
				return fmt.Errorf("cross-category %s/%s: %w", pair.first, pair.second, err)
			}
			cross[i] = insight
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return append(insights, cross...), nil
}

func validateSources(sources []DataSource) error {
	seen := make(map[string]int, len(sources))
	for i, src := range sources {
		if strings.TrimSpace(src.ID) == "" {
			return fmt.Errorf("%w: source at index %d has no id", ErrInvalidSource, i)
		}
		if prev, dup := seen[src.ID]; dup {
			return fmt.Errorf("%w: duplicate id %q at index %d and %d", ErrInvalidSource, src.ID, prev, i)
		}
		seen[src.ID] = i
		if strings.TrimSpace(string(src.Category)) == "" {
			return fmt.Errorf("%w: source %q has no category", ErrInvalidSource, src.ID)
		}
		if !finite(src.PrimaryScore) || !finite(src.SecondaryScore) {
			return fmt.Errorf("%w: source %q has a non-finite score", ErrInvalidSource, src.ID)
		}
	}
	return nil
}

func groupIDs(groups [][]DataSource) [][]string {
	out := make([][]string, len(groups))
	for i, g := range groups {
		out[i] = sourceIDs(g)
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
