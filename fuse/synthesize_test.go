package fuse

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"
)

func testSynthesizer() synthesizer {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return synthesizer{ids: NewSequentialIDs(), now: func() time.Time { return at }}
}

func TestClassify(t *testing.T) {
	cases := map[Category]InsightCategory{
		"document":           CategoryLegal,
		" PDF ":              CategoryLegal,
		"ai_analysis":        CategoryDerived,
		"derived-analysis":   CategoryDerived,
		"external-reference": CategoryExternal,
		"API":                CategoryExternal,
		"spreadsheet":        CategoryBridging,
		"":                   CategoryBridging,
	}
	for in, want := range cases {
		if got := Classify(in); got != want {
			t.Fatalf("Classify(%q): expected %s, got %s", in, want, got)
		}
	}
}

func TestSingleSourceInsight(t *testing.T) {
	src := DataSource{
		ID: "s1", Category: "document", Name: "lease.pdf", Content: "text",
		PrimaryScore: 6, SecondaryScore: 60, Tags: []string{"lease"},
		Relatedness: &Relatedness{Level: 0.4, Patterns: []string{"p"}},
	}
	in, err := testSynthesizer().fromGroup([]DataSource{src})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Kind != KindSingleSource || in.Confidence != 0.8 {
		t.Fatalf("unexpected kind/confidence: %s %v", in.Kind, in.Confidence)
	}
	if in.Category != CategoryLegal {
		t.Fatalf("expected legal, got %s", in.Category)
	}
	if in.PrimaryScore != 6 || in.SecondaryScore != 60 {
		t.Fatalf("expected source scores, got %v/%v", in.PrimaryScore, in.SecondaryScore)
	}
	if in.Description != "Insight from document source: lease.pdf" {
		t.Fatalf("unexpected description %q", in.Description)
	}
	if in.ID != "insight_000001" {
		t.Fatalf("unexpected id %q", in.ID)
	}
	if !reflect.DeepEqual(in.Relatedness, src.Relatedness) || in.Relatedness == src.Relatedness {
		t.Fatal("expected a deep copy of the source relatedness")
	}
	if len(in.Evidence) != 1 || in.Evidence[0].Confidence != 0.8 || in.Evidence[0].SourceID != "s1" {
		t.Fatalf("unexpected evidence %+v", in.Evidence)
	}
	if len(in.Prospects) != 1 || in.Prospects[0].ID != "prospect_s1" || in.Prospects[0].RealizationProbability != 0.1 {
		t.Fatalf("unexpected prospects %+v", in.Prospects)
	}
}

func TestMultiSourceInsight(t *testing.T) {
	group := []DataSource{
		{ID: "a", Category: "document", PrimaryScore: 4, SecondaryScore: 40, Tags: []string{"x", "y"}},
		{ID: "b", Category: "pdf", PrimaryScore: 8, SecondaryScore: 80, Tags: []string{"y", "z"}},
		{ID: "c", Category: "api", PrimaryScore: 6, SecondaryScore: 30},
	}
	in, err := testSynthesizer().fromGroup(group)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Kind != KindMultiSource || in.Confidence != 0.9 {
		t.Fatalf("unexpected kind/confidence: %s %v", in.Kind, in.Confidence)
	}
	if in.PrimaryScore != 6 || in.SecondaryScore != 50 {
		t.Fatalf("expected mean scores 6/50, got %v/%v", in.PrimaryScore, in.SecondaryScore)
	}
	if in.Category != CategoryLegal {
		t.Fatalf("expected majority legal, got %s", in.Category)
	}
	if !reflect.DeepEqual(in.SourceIDs, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected source ids %v", in.SourceIDs)
	}
	if !reflect.DeepEqual(in.Tags, []string{"x", "y", "z"}) {
		t.Fatalf("unexpected tags %v", in.Tags)
	}
	if in.Description != "Fused insight from document, pdf, api sources" {
		t.Fatalf("unexpected description %q", in.Description)
	}
	if len(in.Evidence) != 3 || len(in.Prospects) != 3 {
		t.Fatalf("expected one evidence and prospect per member, got %d/%d", len(in.Evidence), len(in.Prospects))
	}
}

func TestDominantCategoryTieGoesToFirstSeen(t *testing.T) {
	group := []DataSource{
		{ID: "a", Category: "api"},
		{ID: "b", Category: "document"},
		{ID: "c", Category: "document"},
		{ID: "d", Category: "external_link"},
	}
	if got := dominantCategory(group); got != CategoryExternal {
		t.Fatalf("expected external on tie, got %s", got)
	}
	if got := dominantCategory(group[1:3]); got != CategoryLegal {
		t.Fatalf("expected legal, got %s", got)
	}
}

func TestCombineRelatedness(t *testing.T) {
	members := []DataSource{
		{ID: "a", Relatedness: &Relatedness{Level: 0.2, Patterns: []string{"p1"}, Connections: []string{"c1"}, Evolution: []string{"e1"}}},
		{ID: "b"},
		{ID: "c", Relatedness: &Relatedness{Level: 0.6, Patterns: []string{"p2", "p1"}}},
	}
	got, err := combineRelatedness(members)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got.Level-0.4) > 1e-12 {
		t.Fatalf("expected mean level 0.4, got %v", got.Level)
	}
	if !reflect.DeepEqual(got.Patterns, []string{"p1", "p2", "p1"}) {
		t.Fatalf("unexpected patterns %v", got.Patterns)
	}
	if !reflect.DeepEqual(got.Connections, []string{"c1"}) {
		t.Fatalf("unexpected connections %v", got.Connections)
	}
	if !reflect.DeepEqual(got.Evolution, []string{"data_fusion", "cross_source_integration"}) {
		t.Fatalf("unexpected evolution %v", got.Evolution)
	}

	got.Evolution[0] = "mutated"
	if fusionMarkers[0] != "data_fusion" {
		t.Fatal("combined relatedness must not alias the marker list")
	}
}

func TestCombineRelatednessWithoutStructures(t *testing.T) {
	got, err := combineRelatedness([]DataSource{{ID: "a"}, {ID: "b"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Level != 0 || len(got.Patterns) != 0 || len(got.Connections) != 0 {
		t.Fatalf("expected empty combination, got %+v", got)
	}
}

func TestMalformedRelatedness(t *testing.T) {
	group := []DataSource{
		{ID: "a", Category: "document", Relatedness: &Relatedness{Level: math.Inf(1)}},
		{ID: "b", Category: "document"},
	}
	_, err := testSynthesizer().fromGroup(group)
	if !errors.Is(err, ErrMalformedRelatedness) {
		t.Fatalf("expected ErrMalformedRelatedness, got %v", err)
	}
	_, err = testSynthesizer().fromGroup(group[:1])
	if !errors.Is(err, ErrMalformedRelatedness) {
		t.Fatalf("expected ErrMalformedRelatedness for single source, got %v", err)
	}
}

func TestEmptyGroupIsAnError(t *testing.T) {
	if _, err := testSynthesizer().fromGroup(nil); err == nil {
		t.Fatal("expected error for empty group")
	}
}

func TestCategoryPairs(t *testing.T) {
	sources := []DataSource{
		{ID: "a", Category: "document"},
		{ID: "b", Category: "api"},
		{ID: "c", Category: "document"},
		{ID: "d", Category: "ai_analysis"},
	}
	pairs := categoryPairs(sources)
	if len(pairs) != 3 {
		t.Fatalf("expected 3 pairs, got %d", len(pairs))
	}
	want := []struct {
		first, second Category
		members       []string
	}{
		{"document", "api", []string{"a", "b", "c"}},
		{"document", "ai_analysis", []string{"a", "c", "d"}},
		{"api", "ai_analysis", []string{"b", "d"}},
	}
	for i, w := range want {
		p := pairs[i]
		if p.first != w.first || p.second != w.second {
			t.Fatalf("pair %d: expected %s/%s, got %s/%s", i, w.first, w.second, p.first, p.second)
		}
		if got := sourceIDs(p.members); !reflect.DeepEqual(got, w.members) {
			t.Fatalf("pair %d: expected members %v, got %v", i, w.members, got)
		}
	}

	if categoryPairs(sources[:1]) != nil {
		t.Fatal("expected no pairs for a single category")
	}
}

func TestCrossCategoryInsight(t *testing.T) {
	sources := []DataSource{
		{ID: "a", Category: "document", PrimaryScore: 3, SecondaryScore: 30},
		{ID: "b", Category: "api", PrimaryScore: 9, SecondaryScore: 90},
	}
	syn := testSynthesizer()
	pair := categoryPairs(sources)[0]
	pair.id = syn.ids(KindCrossCategory)
	in, err := syn.crossCategory(pair)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Kind != KindCrossCategory || in.Category != CategoryBridging || in.Confidence != 0.7 {
		t.Fatalf("unexpected kind/category/confidence: %s %s %v", in.Kind, in.Category, in.Confidence)
	}
	if in.ID != "cross_insight_000001" {
		t.Fatalf("unexpected id %q", in.ID)
	}
	if in.PrimaryScore != 6 || in.SecondaryScore != 60 {
		t.Fatalf("expected mean scores 6/60, got %v/%v", in.PrimaryScore, in.SecondaryScore)
	}
	if in.Description != "Cross-category insight connecting document and api sources" {
		t.Fatalf("unexpected description %q", in.Description)
	}
	for _, ev := range in.Evidence {
		if ev.Confidence != 0.7 {
			t.Fatalf("expected evidence confidence 0.7, got %v", ev.Confidence)
		}
	}
	if len(in.Prospects) != 3 {
		t.Fatalf("expected 3 prospects, got %d", len(in.Prospects))
	}
	last := in.Prospects[2]
	if last.ID != "cross_prospect_document_api" || last.PrimaryScore != 1 || last.SecondaryScore != 1 {
		t.Fatalf("unexpected bridging prospect %+v", last)
	}
}
