package fuse

import (
	"log/slog"
	"math"
	"strings"
	"sync/atomic"

	"golang.org/x/text/unicode/norm"
)

const (
	contentWeight   = 0.4
	metadataWeight  = 0.2
	primaryWeight   = 0.2
	secondaryWeight = 0.2

	primarySpan   = 10.0
	secondarySpan = 100.0
)

// Breakdown holds the individual similarity signals and their weighted total.
type Breakdown struct {
	Content   float64 `json:"content"`
	Metadata  float64 `json:"metadata"`
	Primary   float64 `json:"primary"`
	Secondary float64 `json:"secondary"`
	Total     float64 `json:"total"`
}

// Scorer computes pairwise source similarity. Internal failures degrade the
// score to zero and are counted instead of propagated.
type Scorer struct {
	logger   *slog.Logger
	failures atomic.Int64
}

// NewScorer returns a Scorer logging to logger, or slog.Default when nil.
func NewScorer(logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{logger: logger}
}

// Similarity returns the weighted similarity of a and b in [0,1].
func (s *Scorer) Similarity(a, b DataSource) float64 {
	return s.Explain(a, b).Total
}

// Explain returns every similarity signal for a and b. On internal failure
// the whole breakdown is zero.
func (s *Scorer) Explain(a, b DataSource) (out Breakdown) {
	defer func() {
		if r := recover(); r != nil {
			s.fail(a, b, "panic", r)
			out = Breakdown{}
		}
	}()

	out = Breakdown{
		Content:   ContentSimilarity(a.Content, b.Content),
		Metadata:  MetadataSimilarity(a.Metadata, b.Metadata),
		Primary:   dimensionSimilarity(a.PrimaryScore, b.PrimaryScore, primarySpan),
		Secondary: dimensionSimilarity(a.SecondaryScore, b.SecondaryScore, secondarySpan),
	}
	out.Total = out.Content*contentWeight +
		out.Metadata*metadataWeight +
		out.Primary*primaryWeight +
		out.Secondary*secondaryWeight

	if math.IsNaN(out.Total) || math.IsInf(out.Total, 0) {
		s.fail(a, b, "non-finite similarity", out.Total)
		return Breakdown{}
	}
	out.Total = clamp01(out.Total)
	return out
}

// Failures reports how many comparisons degraded to zero.
func (s *Scorer) Failures() int64 {
	return s.failures.Load()
}

func (s *Scorer) fail(a, b DataSource, reason string, detail any) {
	s.failures.Add(1)
	s.logger.Warn("similarity calculation failed",
		slog.String("reason", reason),
		slog.Any("detail", detail),
		slog.String("source_a", a.ID),
		slog.String("source_b", b.ID),
	)
}

// Similarity scores a and b with a throwaway Scorer.
func Similarity(a, b DataSource) float64 {
	return NewScorer(nil).Similarity(a, b)
}

// ContentSimilarity is the Jaccard index of the NFKC-folded, lower-cased
// whitespace tokens of a and b. Empty content on either side scores zero.
func ContentSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return jaccard(tokenSet(a), tokenSet(b))
}

// MetadataSimilarity is the Jaccard index of the two key sets. Values are
// ignored. Empty metadata on either side scores zero.
func MetadataSimilarity(a, b Metadata) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	left := make(map[string]struct{}, len(a))
	for k := range a {
		left[k] = struct{}{}
	}
	right := make(map[string]struct{}, len(b))
	for k := range b {
		right[k] = struct{}{}
	}
	return jaccard(left, right)
}

func dimensionSimilarity(a, b, span float64) float64 {
	return math.Max(0, 1-math.Abs(a-b)/span)
}

func tokenSet(content string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(norm.NFKC.String(content)))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	intersection := 0
	for k := range small {
		if _, ok := large[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
