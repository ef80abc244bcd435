// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package entity

import (
	"strings"
)

// Record is one entity's fetched fields. The zero value (nil map) is a
// valid record with no fields. Accessors never mutate the map.
type Record map[string]any

// Value returns the record's value for field. The second result is
// false when the field was not fetched.
func (r Record) Value(field string) (any, bool) {
	v, ok := r[field]
	return v, ok
}

// Deep resolves a field path. A plain field name reads directly; a
// dotted path "link.Type.field" follows the linked-entity field
// "link", asserts the nested record's type, and continues. Paths may
// nest to arbitrary depth ("a.Shot.b.Sequence.c").
//
// Search projections return deep-linked fields as flat keys under the
// full dotted name, so that form is honored before walking links.
//
// A missing field, nil link, non-record link, or type mismatch
// resolves to (nil, false), never an error: templates treat all of
// those as an absent value.
func (r Record) Deep(path string) (any, bool) {
	if v, ok := r[path]; ok {
		return v, true
	}
	segments := strings.Split(path, ".")
	// A deep path alternates field, type, field, ... and ends on a
	// field, so the segment count is always odd.
	if len(segments)%2 == 0 {
		return nil, false
	}
	current := r
	for i := 0; i+1 < len(segments); i += 2 {
		next, ok := asRecord(current[segments[i]])
		if !ok {
			return nil, false
		}
		if typeName, _ := next["type"].(string); typeName != segments[i+1] {
			return nil, false
		}
		current = next
	}
	v, ok := current[segments[len(segments)-1]]
	return v, ok
}

// Type returns the record's entity type name, or "" when absent.
func (r Record) Type() string {
	s, _ := r["type"].(string)
	return s
}

// ID returns the record's id, or 0 when absent.
func (r Record) ID() int64 {
	n, _ := Int(r["id"])
	return n
}

// Name returns the record's display name. The tracking service is not
// consistent about which field carries it, so this falls back across
// the conventional candidates in order.
func (r Record) Name() string {
	for _, field := range []string{"name", "code", "title", "content"} {
		if s, ok := r[field].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Ref returns the record's own minimal reference.
func (r Record) Ref() Ref {
	return Ref{Type: r.Type(), ID: r.ID(), Name: r.Name()}
}

// RecordFrom views a decoded value as a Record. Nested maps arrive as
// map[string]any from both JSON and CBOR decoding, but fixtures and
// callers also build them as Record directly.
func RecordFrom(v any) (Record, bool) {
	return asRecord(v)
}

func asRecord(v any) (Record, bool) {
	switch m := v.(type) {
	case Record:
		return m, true
	case map[string]any:
		return m, true
	default:
		return nil, false
	}
}

// IsEmpty reports whether a resolved value counts as empty for display
// purposes: nil, an empty string, an empty slice or map, or an entity
// reference with no display name. Numbers and booleans are never
// empty.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case Record:
		return t.Name() == ""
	case map[string]any:
		return Record(t).Name() == ""
	case Ref:
		return t.Name == ""
	default:
		return false
	}
}

// Int coerces a decoded numeric value to int64. JSON decoding yields
// float64, CBOR yields int64 or uint64; plain Go ints appear in
// fixtures.
func Int(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint32:
		return int64(n), true
	default:
		return 0, false
	}
}

// String coerces a decoded value to string, reporting false for
// non-strings rather than formatting them.
func String(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}
