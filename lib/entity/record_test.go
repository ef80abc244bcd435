// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package entity

import (
	"encoding/json"
	"testing"
)

func TestRecordValue(t *testing.T) {
	r := Record{"code": "ABC123", "version_number": float64(4)}

	v, ok := r.Value("code")
	if !ok || v != "ABC123" {
		t.Fatalf("Value(code) = %v, %v; want ABC123, true", v, ok)
	}
	if _, ok := r.Value("missing"); ok {
		t.Fatal("Value(missing) reported present")
	}
}

func TestRecordDeep(t *testing.T) {
	record := Record{
		"code": "bunny_010_0040_layout.v003.ma",
		"entity": map[string]any{
			"type": "Shot",
			"id":   float64(1234),
			"name": "010_0040",
			"sg_sequence": map[string]any{
				"type": "Sequence",
				"id":   float64(9),
				"code": "010",
			},
		},
		"task":                      nil,
		"created_by.HumanUser.name": "J Doe",
	}

	tests := []struct {
		name   string
		path   string
		want   any
		wantOK bool
	}{
		{name: "plain field", path: "code", want: "bunny_010_0040_layout.v003.ma", wantOK: true},
		{name: "one hop", path: "entity.Shot.name", want: "010_0040", wantOK: true},
		{name: "two hops", path: "entity.Shot.sg_sequence.Sequence.code", want: "010", wantOK: true},
		{name: "type mismatch", path: "entity.Asset.name", wantOK: false},
		{name: "missing link", path: "project.Project.name", wantOK: false},
		{name: "nil link", path: "task.Task.content", wantOK: false},
		{name: "missing leaf", path: "entity.Shot.description", wantOK: false},
		{name: "even segment count", path: "entity.Shot", wantOK: false},
		{name: "flat projected key", path: "created_by.HumanUser.name", wantOK: true, want: "J Doe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := record.Deep(tt.path)
			if ok != tt.wantOK {
				t.Fatalf("Deep(%q) ok = %v, want %v", tt.path, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Fatalf("Deep(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestRecordDeepOnJSONDecodedRecord(t *testing.T) {
	var r Record
	wire := `{"id": 7, "type": "PublishedFile", "entity": {"type": "Shot", "id": 2, "name": "010_0040"}}`
	if err := json.Unmarshal([]byte(wire), &r); err != nil {
		t.Fatalf("decoding fixture: %v", err)
	}
	got, ok := r.Deep("entity.Shot.name")
	if !ok || got != "010_0040" {
		t.Fatalf("Deep over decoded JSON = %v, %v; want 010_0040, true", got, ok)
	}
}

func TestRecordIdentity(t *testing.T) {
	r := Record{"type": "PublishedFile", "id": float64(88), "code": "render.v012.exr"}
	if r.Type() != "PublishedFile" {
		t.Fatalf("Type() = %q", r.Type())
	}
	if r.ID() != 88 {
		t.Fatalf("ID() = %d", r.ID())
	}
	if r.Name() != "render.v012.exr" {
		t.Fatalf("Name() = %q", r.Name())
	}
	ref := r.Ref()
	if ref.Type != "PublishedFile" || ref.ID != 88 || ref.Name != "render.v012.exr" {
		t.Fatalf("Ref() = %+v", ref)
	}
}

func TestRecordNameFallbackOrder(t *testing.T) {
	tests := []struct {
		name   string
		record Record
		want   string
	}{
		{name: "name wins", record: Record{"name": "a", "code": "b"}, want: "a"},
		{name: "code next", record: Record{"code": "b", "title": "c"}, want: "b"},
		{name: "title next", record: Record{"title": "c", "content": "d"}, want: "c"},
		{name: "content last", record: Record{"content": "d"}, want: "d"},
		{name: "empty name skipped", record: Record{"name": "", "code": "b"}, want: "b"},
		{name: "nothing", record: Record{"id": float64(1)}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.record.Name(); got != tt.want {
				t.Fatalf("Name() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsEmpty(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want bool
	}{
		{name: "nil", v: nil, want: true},
		{name: "empty string", v: "", want: true},
		{name: "string", v: "x", want: false},
		{name: "zero int", v: float64(0), want: false},
		{name: "false", v: false, want: false},
		{name: "empty list", v: []any{}, want: true},
		{name: "list", v: []any{"a"}, want: false},
		{name: "nameless ref map", v: map[string]any{"type": "Shot", "id": float64(1)}, want: true},
		{name: "named ref map", v: map[string]any{"type": "Shot", "id": float64(1), "name": "010"}, want: false},
		{name: "zero Ref", v: Ref{}, want: true},
		{name: "named Ref", v: Ref{Type: "Shot", ID: 1, Name: "010"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEmpty(tt.v); got != tt.want {
				t.Fatalf("IsEmpty(%v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}

func TestIntCoercion(t *testing.T) {
	tests := []struct {
		name   string
		v      any
		want   int64
		wantOK bool
	}{
		{name: "json float", v: float64(12), want: 12, wantOK: true},
		{name: "cbor int64", v: int64(12), want: 12, wantOK: true},
		{name: "cbor uint64", v: uint64(12), want: 12, wantOK: true},
		{name: "go int", v: 12, want: 12, wantOK: true},
		{name: "string", v: "12", wantOK: false},
		{name: "nil", v: nil, wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Int(tt.v)
			if ok != tt.wantOK || got != tt.want {
				t.Fatalf("Int(%v) = %d, %v; want %d, %v", tt.v, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestRefFrom(t *testing.T) {
	ref, ok := RefFrom(map[string]any{"type": "Task", "id": float64(55), "content": "layout"})
	if !ok {
		t.Fatal("RefFrom reported not a reference")
	}
	if ref.Type != "Task" || ref.ID != 55 || ref.Name != "layout" {
		t.Fatalf("RefFrom = %+v", ref)
	}

	if _, ok := RefFrom("not a record"); ok {
		t.Fatal("RefFrom accepted a string")
	}
	if _, ok := RefFrom(map[string]any{"name": "no identity"}); ok {
		t.Fatal("RefFrom accepted a record without type and id")
	}
}

func TestRecordFrom(t *testing.T) {
	// Unlike RefFrom, no id is needed: embedded records often carry
	// only a type and a name field.
	rec, ok := RecordFrom(map[string]any{"type": "Sequence", "code": "ABC123"})
	if !ok {
		t.Fatal("RecordFrom rejected a map")
	}
	if rec.Type() != "Sequence" || rec.Name() != "ABC123" {
		t.Fatalf("RecordFrom = type %q, name %q", rec.Type(), rec.Name())
	}

	if rec, ok := RecordFrom(Record{"type": "Shot"}); !ok || rec.Type() != "Shot" {
		t.Fatal("RecordFrom rejected a Record value")
	}
	if _, ok := RecordFrom("not a record"); ok {
		t.Fatal("RecordFrom accepted a string")
	}
}

func TestLocalPath(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want string
	}{
		{
			name: "nested record",
			v:    map[string]any{"local_path": "/prod/shots/010/layout.v003.ma", "url": "file:///prod"},
			want: "/prod/shots/010/layout.v003.ma",
		},
		{name: "bare string", v: "/prod/shots/010/layout.v003.ma", want: "/prod/shots/010/layout.v003.ma"},
		{name: "no local path", v: map[string]any{"url": "https://example.com"}, want: ""},
		{name: "nil", v: nil, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LocalPath(tt.v); got != tt.want {
				t.Fatalf("LocalPath = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDisplay(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want string
	}{
		{name: "string", v: "ABC123", want: "ABC123"},
		{name: "integral float", v: float64(42), want: "42"},
		{name: "fractional float", v: 2.5, want: "2.5"},
		{name: "int64", v: int64(7), want: "7"},
		{name: "nil", v: nil, want: ""},
		{name: "ref map", v: map[string]any{"type": "Shot", "id": float64(1), "name": "010_0040"}, want: "010_0040"},
		{name: "list", v: []any{"a", "b"}, want: "a, b"},
		{name: "bool", v: true, want: "true"},
		{name: "non-timestamp string", v: "2026 review notes", want: "2026 review notes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Display(tt.v); got != tt.want {
				t.Fatalf("Display(%v) = %q, want %q", tt.v, got, tt.want)
			}
		})
	}
}

func TestDisplayWireTimestamp(t *testing.T) {
	got := Display("2026-03-01T12:30:00Z")
	// Rendered in local time; only assert the shape to keep the test
	// timezone-independent.
	if len(got) != len("2006-01-02 15:04") {
		t.Fatalf("Display(timestamp) = %q, want short datetime form", got)
	}
}
