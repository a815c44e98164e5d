package fuse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// ScalarKind enumerates the value types permitted in source metadata.
type ScalarKind int

const (
	ScalarNull ScalarKind = iota
	ScalarString
	ScalarNumber
	ScalarBool
)

// Scalar is a single metadata value. The zero value is null.
type Scalar struct {
	kind ScalarKind
	str  string
	num  float64
	b    bool
}

// String returns a string scalar.
func String(v string) Scalar { return Scalar{kind: ScalarString, str: v} }

// Number returns a numeric scalar.
func Number(v float64) Scalar { return Scalar{kind: ScalarNumber, num: v} }

// Bool returns a boolean scalar.
func Bool(v bool) Scalar { return Scalar{kind: ScalarBool, b: v} }

// Null returns the null scalar.
func Null() Scalar { return Scalar{} }

// Kind reports the scalar type.
func (s Scalar) Kind() ScalarKind { return s.kind }

// Value returns the scalar as a plain Go value (string, float64, bool or nil).
func (s Scalar) Value() any {
	switch s.kind {
	case ScalarString:
		return s.str
	case ScalarNumber:
		return s.num
	case ScalarBool:
		return s.b
	default:
		return nil
	}
}

func (s Scalar) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Value())
}

// UnmarshalJSON accepts strings, numbers, booleans and null. Objects and
// arrays are rejected with ErrNonScalarMetadata.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*s = Null()
	case string:
		*s = String(v)
	case bool:
		*s = Bool(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return fmt.Errorf("metadata number %q: %w", v.String(), err)
		}
		*s = Number(f)
	default:
		return fmt.Errorf("%w: got %T", ErrNonScalarMetadata, raw)
	}
	return nil
}

// Metadata is an unordered map of scalar attributes.
type Metadata map[string]Scalar

// Keys returns the metadata keys in sorted order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
