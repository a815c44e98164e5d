package testutil

import (
	"time"

	"github.com/searchforge/fusion_engine/fuse"
)

// SourceOption customizes a fixture source.
type SourceOption func(*fuse.DataSource)

// WithMetadataKeys sets one string metadata value per key.
func WithMetadataKeys(keys ...string) SourceOption {
	return func(s *fuse.DataSource) {
		s.Metadata = make(fuse.Metadata, len(keys))
		for _, k := range keys {
			s.Metadata[k] = fuse.String(k)
		}
	}
}

// WithTags sets the source tags.
func WithTags(tags ...string) SourceOption {
	return func(s *fuse.DataSource) {
		s.Tags = tags
	}
}

// WithRelatedness attaches a relatedness structure.
func WithRelatedness(level float64, patterns, connections []string) SourceOption {
	return func(s *fuse.DataSource) {
		s.Relatedness = &fuse.Relatedness{
			Level:       level,
			Patterns:    patterns,
			Connections: connections,
		}
	}
}

// Source builds a fixture source named after its id.
func Source(id string, category fuse.Category, content string, primary, secondary float64, opts ...SourceOption) fuse.DataSource {
	src := fuse.DataSource{
		ID:             id,
		Category:       category,
		Name:           id + ".txt",
		Content:        content,
		PrimaryScore:   primary,
		SecondaryScore: secondary,
	}
	for _, opt := range opts {
		opt(&src)
	}
	return src
}

// ThreeSourceScenario returns two near-identical documents followed by one
// unrelated external reference.
func ThreeSourceScenario() []fuse.DataSource {
	return []fuse.DataSource{
		Source("doc-1", "document", "the tenant must give written notice before the lease ends", 7, 70,
			WithMetadataKeys("author", "jurisdiction"), WithTags("lease", "notice")),
		Source("doc-2", "document", "the tenant must give written notice before the lease ends today", 7.5, 72,
			WithMetadataKeys("author", "jurisdiction"), WithTags("lease", "tenancy")),
		Source("ext-1", "external-reference", "court ruling on commercial shipping contracts", 2, 10,
			WithMetadataKeys("url"), WithTags("precedent")),
	}
}

// FixedClock returns a clock that always reports t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// DeterministicOptions returns engine options with sequential ids and a
// fixed clock.
func DeterministicOptions() fuse.Options {
	opts := fuse.DefaultOptions()
	opts.IDs = fuse.NewSequentialIDs()
	opts.Clock = FixedClock(time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC))
	return opts
}
