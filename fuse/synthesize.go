package fuse

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	singleSourceConfidence  = 0.8
	multiSourceConfidence   = 0.9
	crossCategoryConfidence = 0.7

	memberEvidenceConfidence = 0.8
	crossEvidenceConfidence  = 0.7

	prospectProbability = 0.1
)

// fusionMarkers is the evolution list of every combined relatedness structure.
var fusionMarkers = []string{"data_fusion", "cross_source_integration"}

var categoryRules = map[Category]InsightCategory{
	"document":           CategoryLegal,
	"prd":                CategoryLegal,
	"txt":                CategoryLegal,
	"pdf":                CategoryLegal,
	"docx":               CategoryLegal,
	"derived-analysis":   CategoryDerived,
	"ai_analysis":        CategoryDerived,
	"external-reference": CategoryExternal,
	"external_link":      CategoryExternal,
	"api":                CategoryExternal,
	"api-payload":        CategoryExternal,
}

// Classify maps a source category onto the insight taxonomy. Unknown
// categories are bridging.
func Classify(c Category) InsightCategory {
	key := Category(strings.ToLower(strings.TrimSpace(string(c))))
	if ic, ok := categoryRules[key]; ok {
		return ic
	}
	return CategoryBridging
}

type synthesizer struct {
	ids IDGenerator
	now func() time.Time
}

// categoryPair is an unordered pair of distinct input categories together
// with every source belonging to either of them, in input order. id is
// assigned before synthesis so numbering does not depend on scheduling.
type categoryPair struct {
	first, second Category
	members       []DataSource
	id            string
}

func (s synthesizer) fromGroup(group []DataSource) (FusedInsight, error) {
	switch len(group) {
	case 0:
		return FusedInsight{}, fmt.Errorf("cannot synthesize an empty group")
	case 1:
		return s.singleSource(group[0])
	default:
		return s.multiSource(group)
	}
}

func (s synthesizer) singleSource(src DataSource) (FusedInsight, error) {
	if err := checkRelatedness(src); err != nil {
		return FusedInsight{}, err
	}
	members := []DataSource{src}
	return FusedInsight{
		ID:             s.ids(KindSingleSource),
		Kind:           KindSingleSource,
		Category:       Classify(src.Category),
		SourceIDs:      sourceIDs(members),
		Confidence:     singleSourceConfidence,
		PrimaryScore:   src.PrimaryScore,
		SecondaryScore: src.SecondaryScore,
		Relatedness:    src.Relatedness.Clone(),
		Tags:           unionTags(members),
		Description:    fmt.Sprintf("Insight from %s source: %s", src.Category, src.Name),
		Evidence:       buildEvidence(members, memberEvidenceConfidence),
		Prospects:      sourceProspects(members),
		CreatedAt:      s.now(),
	}, nil
}

func (s synthesizer) multiSource(group []DataSource) (FusedInsight, error) {
	relatedness, err := combineRelatedness(group)
	if err != nil {
		return FusedInsight{}, err
	}
	primary, secondary := meanScores(group)
	return FusedInsight{
		ID:             s.ids(KindMultiSource),
		Kind:           KindMultiSource,
		Category:       dominantCategory(group),
		SourceIDs:      sourceIDs(group),
		Confidence:     multiSourceConfidence,
		PrimaryScore:   primary,
		SecondaryScore: secondary,
		Relatedness:    relatedness,
		Tags:           unionTags(group),
		Description:    fmt.Sprintf("Fused insight from %s sources", joinCategories(distinctCategories(group))),
		Evidence:       buildEvidence(group, memberEvidenceConfidence),
		Prospects:      sourceProspects(group),
		CreatedAt:      s.now(),
	}, nil
}

func (s synthesizer) crossCategory(pair categoryPair) (FusedInsight, error) {
	relatedness, err := combineRelatedness(pair.members)
	if err != nil {
		return FusedInsight{}, err
	}
	primary, secondary := meanScores(pair.members)

	prospects := sourceProspects(pair.members)
	prospects = append(prospects, Prospect{
		ID:                     fmt.Sprintf("cross_prospect_%s_%s", pair.first, pair.second),
		Description:            fmt.Sprintf("Prospect for bridging %s and %s", pair.first, pair.second),
		PrimaryScore:           1,
		SecondaryScore:         1,
		RealizationProbability: prospectProbability,
	})

	return FusedInsight{
		ID:             pair.id,
		Kind:           KindCrossCategory,
		Category:       CategoryBridging,
		SourceIDs:      sourceIDs(pair.members),
		Confidence:     crossCategoryConfidence,
		PrimaryScore:   primary,
		SecondaryScore: secondary,
		Relatedness:    relatedness,
		Tags:           unionTags(pair.members),
		Description:    fmt.Sprintf("Cross-category insight connecting %s and %s sources", pair.first, pair.second),
		Evidence:       buildEvidence(pair.members, crossEvidenceConfidence),
		Prospects:      prospects,
		CreatedAt:      s.now(),
	}, nil
}

// categoryPairs enumerates every unordered pair of distinct categories in
// sources, categories ordered by first appearance.
func categoryPairs(sources []DataSource) []categoryPair {
	categories := distinctCategories(sources)
	if len(categories) < 2 {
		return nil
	}
	pairs := make([]categoryPair, 0, len(categories)*(len(categories)-1)/2)
	for i := 0; i < len(categories); i++ {
		for j := i + 1; j < len(categories); j++ {
			first, second := categories[i], categories[j]
			var members []DataSource
			for _, src := range sources {
				if src.Category == first || src.Category == second {
					members = append(members, src)
				}
			}
			pairs = append(pairs, categoryPair{first: first, second: second, members: members})
		}
	}
	return pairs
}

// dominantCategory is the majority insight category of group. Ties go to the
// category classified first in group order.
func dominantCategory(group []DataSource) InsightCategory {
	counts := make(map[InsightCategory]int, len(group))
	order := make([]InsightCategory, 0, len(group))
	for _, src := range group {
		c := Classify(src.Category)
		if _, seen := counts[c]; !seen {
			order = append(order, c)
		}
		counts[c]++
	}
	if len(order) == 0 {
		return CategoryBridging
	}
	best := order[0]
	for _, c := range order[1:] {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}

// combineRelatedness merges the relatedness of every member carrying one.
// Level is the mean over those members; pattern and connection lists are
// concatenated as-is.
func combineRelatedness(members []DataSource) (*Relatedness, error) {
	out := &Relatedness{Evolution: cloneStrings(fusionMarkers)}
	var (
		levelSum float64
		counted  int
	)
	for _, src := range members {
		if err := checkRelatedness(src); err != nil {
			return nil, err
		}
		r := src.Relatedness
		if r == nil {
			continue
		}
		levelSum += r.Level
		counted++
		out.Patterns = append(out.Patterns, r.Patterns...)
		out.Connections = append(out.Connections, r.Connections...)
	}
	if counted > 0 {
		out.Level = levelSum / float64(counted)
	}
	return out, nil
}

func checkRelatedness(src DataSource) error {
	if src.Relatedness == nil {
		return nil
	}
	level := src.Relatedness.Level
	if math.IsNaN(level) || math.IsInf(level, 0) {
		return fmt.Errorf("%w: source %q has level %v", ErrMalformedRelatedness, src.ID, level)
	}
	return nil
}

func meanScores(sources []DataSource) (primary, secondary float64) {
	if len(sources) == 0 {
		return 0, 0
	}
	for _, src := range sources {
		primary += src.PrimaryScore
		secondary += src.SecondaryScore
	}
	n := float64(len(sources))
	return primary / n, secondary / n
}

func buildEvidence(sources []DataSource, confidence float64) []Evidence {
	out := make([]Evidence, 0, len(sources))
	for _, src := range sources {
		out = append(out, Evidence{
			SourceID:       src.ID,
			Category:       src.Category,
			Content:        src.Content,
			Confidence:     confidence,
			PrimaryScore:   src.PrimaryScore,
			SecondaryScore: src.SecondaryScore,
		})
	}
	return out
}

func sourceProspects(sources []DataSource) []Prospect {
	out := make([]Prospect, 0, len(sources)+1)
	for _, src := range sources {
		out = append(out, Prospect{
			ID:                     "prospect_" + src.ID,
			Description:            fmt.Sprintf("Prospect for %s evolution", src.Category),
			PrimaryScore:           src.PrimaryScore,
			SecondaryScore:         src.SecondaryScore,
			RealizationProbability: prospectProbability,
		})
	}
	return out
}

func sourceIDs(sources []DataSource) []string {
	ids := make([]string, len(sources))
	for i, src := range sources {
		ids[i] = src.ID
	}
	return ids
}

// unionTags returns the distinct tags of sources in first-seen order.
func unionTags(sources []DataSource) []string {
	seen := make(map[string]struct{})
	tags := []string{}
	for _, src := range sources {
		for _, tag := range src.Tags {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			tags = append(tags, tag)
		}
	}
	return tags
}

func distinctCategories(sources []DataSource) []Category {
	seen := make(map[Category]struct{})
	var out []Category
	for _, src := range sources {
		if _, ok := seen[src.Category]; ok {
			continue
		}
		seen[src.Category] = struct{}{}
		out = append(out, src.Category)
	}
	return out
}

func joinCategories(categories []Category) string {
	parts := make([]string, len(categories))
	for i, c := range categories {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}
