package sources

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchforge/fusion_engine/fuse"
)

const yamlDocument = `
sources:
  - id: doc-1
    category: document
    name: lease.pdf
    content: "the tenant   must give\nwritten notice"
    primary_score: 7
    secondary_score: 70
    metadata:
      author: kim
      pages: 12
      final: true
    tags: [lease, " notice "]
  - id: ext-1
    category: external-reference
    name: ruling
    content: court ruling
    primary_score: 2.5
    secondary_score: 10
    relatedness:
      level: 0.4
      patterns: [precedent]
external_data:
  - {feed: court, count: 2}
  - [1, 2, 3]
`

func TestDecodeYAMLDocument(t *testing.T) {
	doc, err := Decode([]byte(yamlDocument))
	require.NoError(t, err)
	require.Len(t, doc.Sources, 2)
	require.Len(t, doc.ExternalData, 2)

	first := doc.Sources[0]
	assert.Equal(t, "doc-1", first.ID)
	assert.Equal(t, fuse.Category("document"), first.Category)
	assert.Equal(t, "the tenant   must give\nwritten notice", first.Content)
	assert.Equal(t, 7.0, first.PrimaryScore)
	assert.Equal(t, []string{"lease", "notice"}, first.Tags)
	assert.Equal(t, []string{"author", "final", "pages"}, first.Metadata.Keys())
	assert.Equal(t, "kim", first.Metadata["author"].Value())
	assert.Equal(t, 12.0, first.Metadata["pages"].Value())

	second := doc.Sources[1]
	assert.Equal(t, 2.5, second.PrimaryScore)
	require.NotNil(t, second.Relatedness)
	assert.Equal(t, 0.4, second.Relatedness.Level)
	assert.Equal(t, []string{"precedent"}, second.Relatedness.Patterns)
}

func TestDecodeBareList(t *testing.T) {
	doc, err := Decode([]byte(`[{"id":"a","category":"api","primary_score":1,"secondary_score":2}]`))
	require.NoError(t, err)
	require.Len(t, doc.Sources, 1)
	assert.Equal(t, "a", doc.Sources[0].ID)
	assert.Empty(t, doc.ExternalData)

	src, ok := doc.Find("a")
	assert.True(t, ok)
	assert.Equal(t, fuse.Category("api"), src.Category)
	_, ok = doc.Find("missing")
	assert.False(t, ok)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "empty", input: "  \n", wantErr: ErrEmptyDocument},
		{name: "nested metadata", input: `[{"id":"a","category":"api","metadata":{"x":{"y":1}}}]`, wantErr: fuse.ErrNonScalarMetadata},
		{name: "malformed yaml", input: "sources: [\n  - id: a"},
		{name: "wrong shape", input: `{"sources": "nope"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.input))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestDecodeMissingSourcesYieldsEmptySet(t *testing.T) {
	doc, err := Decode([]byte(`external_data: [{}]`))
	require.NoError(t, err)
	assert.NotNil(t, doc.Sources)
	assert.Empty(t, doc.Sources)
}

func TestNormalizeAppliesNFKCToNameAndTags(t *testing.T) {
	src := Normalize(fuse.DataSource{
		ID:       " ｄｏｃ-1 ",
		Category: "ｄｏｃｕｍｅｎｔ",
		Name:     "ﬁle.txt",
		Content:  "  ｗｒｉｔｔｅｎ\t\tnotice ",
		Tags:     []string{"", " Ｌｅａｓｅ"},
	})
	assert.Equal(t, "file.txt", src.Name)
	assert.Equal(t, []string{"Lease"}, src.Tags)
}

func TestNormalizeKeepsIdentityAndContent(t *testing.T) {
	in := fuse.DataSource{
		ID:       " ｄｏｃ-1 ",
		Category: "ｄｏｃｕｍｅｎｔ",
		Content:  "  ｗｒｉｔｔｅｎ\t\tnotice ",
	}
	out := Normalize(in)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Category, out.Category)
	assert.Equal(t, in.Content, out.Content)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlDocument), 0o600))

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, doc.Sources, 2)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
