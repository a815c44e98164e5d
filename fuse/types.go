package fuse

import (
	"slices"
	"time"
)

// Category is the caller-defined kind of a source, e.g. "document" or
// "external-reference".
type Category string

// InsightKind describes how an insight was synthesized.
type InsightKind string

const (
	KindSingleSource  InsightKind = "single-source"
	KindMultiSource   InsightKind = "multi-source"
	KindCrossCategory InsightKind = "cross-category"
)

// InsightCategory is the closed taxonomy assigned to every insight.
type InsightCategory string

const (
	CategoryLegal    InsightCategory = "legal"
	CategoryDerived  InsightCategory = "derived"
	CategoryExternal InsightCategory = "external"
	CategoryBridging InsightCategory = "bridging"
)

// Relatedness is the nested structure carried by sources and combined into
// insights. The engine only reads it during aggregation.
type Relatedness struct {
	Level       float64  `json:"level"`
	Patterns    []string `json:"patterns,omitempty"`
	Connections []string `json:"connections,omitempty"`
	Evolution   []string `json:"evolution,omitempty"`
}

// Clone returns a deep copy of r. A nil receiver yields nil.
func (r *Relatedness) Clone() *Relatedness {
	if r == nil {
		return nil
	}
	return &Relatedness{
		Level:       r.Level,
		Patterns:    cloneStrings(r.Patterns),
		Connections: cloneStrings(r.Connections),
		Evolution:   cloneStrings(r.Evolution),
	}
}

// DataSource is one input unit to be fused. Sources are never mutated by the
// engine.
type DataSource struct {
	ID             string       `json:"id"`
	Category       Category     `json:"category"`
	Name           string       `json:"name"`
	Content        string       `json:"content,omitempty"`
	Metadata       Metadata     `json:"metadata,omitempty"`
	PrimaryScore   float64      `json:"primary_score"`
	SecondaryScore float64      `json:"secondary_score"`
	Relatedness    *Relatedness `json:"relatedness,omitempty"`
	Tags           []string     `json:"tags,omitempty"`
}

// Evidence is a snapshot of one source's contribution to an insight.
type Evidence struct {
	SourceID       string   `json:"source_id"`
	Category       Category `json:"category"`
	Content        string   `json:"content"`
	Confidence     float64  `json:"confidence"`
	PrimaryScore   float64  `json:"primary_score"`
	SecondaryScore float64  `json:"secondary_score"`
}

// Prospect is a forward-looking possibility attached to an insight.
type Prospect struct {
	ID                     string  `json:"id"`
	Description            string  `json:"description"`
	PrimaryScore           float64 `json:"primary_score"`
	SecondaryScore         float64 `json:"secondary_score"`
	RealizationProbability float64 `json:"realization_probability"`
}

// FusedInsight is the unit returned to callers.
type FusedInsight struct {
	ID             string          `json:"id"`
	Kind           InsightKind     `json:"kind"`
	Category       InsightCategory `json:"category"`
	SourceIDs      []string        `json:"source_ids"`
	Confidence     float64         `json:"confidence"`
	PrimaryScore   float64         `json:"primary_score"`
	SecondaryScore float64         `json:"secondary_score"`
	Relatedness    *Relatedness    `json:"relatedness,omitempty"`
	Tags           []string        `json:"tags"`
	Description    string          `json:"description"`
	Evidence       []Evidence      `json:"evidence"`
	Prospects      []Prospect      `json:"prospects,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Clone returns a deep copy of in that shares no slices with it.
func (in FusedInsight) Clone() FusedInsight {
	out := in
	out.SourceIDs = slices.Clone(in.SourceIDs)
	out.Relatedness = in.Relatedness.Clone()
	out.Tags = slices.Clone(in.Tags)
	out.Evidence = slices.Clone(in.Evidence)
	out.Prospects = slices.Clone(in.Prospects)
	return out
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
