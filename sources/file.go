// Package sources loads fusion inputs from YAML or JSON documents and
// normalizes their text fields.
package sources

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"golang.org/x/text/unicode/norm"

	"github.com/searchforge/fusion_engine/fuse"
)

// ErrEmptyDocument indicates an input file with no content.
var ErrEmptyDocument = errors.New("empty source document")

// Document is a source set plus the opaque external records passed with it.
type Document struct {
	Sources      []fuse.DataSource `json:"sources"`
	ExternalData []json.RawMessage `json:"external_data,omitempty"`
}

// Find returns the source with the given id.
func (d Document) Find(id string) (fuse.DataSource, bool) {
	for _, src := range d.Sources {
		if src.ID == id {
			return src, true
		}
	}
	return fuse.DataSource{}, false
}

// Load reads and decodes the document at path.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := Decode(data)
	if err != nil {
		return Document{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return doc, nil
}

// Decode parses a YAML or JSON document. The top level is either an object
// with "sources" and optional "external_data", or a bare list of sources.
// Names and tags are normalized; ids and content are kept as written.
func Decode(data []byte) (Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Document{}, ErrEmptyDocument
	}
	raw, err := yaml.YAMLToJSON(data)
	if err != nil {
		return Document{}, fmt.Errorf("failed to convert YAML: %w", err)
	}
	raw = bytes.TrimSpace(raw)

	var doc Document
	if bytes.HasPrefix(raw, []byte("[")) {
		if err := json.Unmarshal(raw, &doc.Sources); err != nil {
			return Document{}, fmt.Errorf("failed to decode sources: %w", err)
		}
	} else if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("failed to decode document: %w", err)
	}
	if doc.Sources == nil {
		doc.Sources = []fuse.DataSource{}
	}
	doc.Sources = NormalizeAll(doc.Sources)
	return doc, nil
}

// Normalize returns src with an NFKC-normalized, trimmed name and tag list.
// Empty tags are dropped. ID, category and content are identity and evidence
// fields and pass through unchanged; the engine folds content itself when
// tokenizing.
func Normalize(src fuse.DataSource) fuse.DataSource {
	src.Name = normalizeText(src.Name)
	if len(src.Tags) > 0 {
		tags := make([]string, 0, len(src.Tags))
		for _, tag := range src.Tags {
			if tag = normalizeText(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
		src.Tags = tags
	}
	return src
}

// NormalizeAll normalizes every source into a new slice.
func NormalizeAll(in []fuse.DataSource) []fuse.DataSource {
	if in == nil {
		return nil
	}
	out := make([]fuse.DataSource, len(in))
	for i, src := range in {
		out[i] = Normalize(src)
	}
	return out
}

func normalizeText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	return norm.NFKC.String(s)
}
