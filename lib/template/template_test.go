// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"fmt"
	"strings"
	"testing"

	"github.com/pipeline-foundation/breakdown/lib/entity"
)

func mustParse(t *testing.T, src string) *Template {
	t.Helper()
	tmpl, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return tmpl
}

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		template string
		record   entity.Record
		want     string
	}{
		{
			name:     "plain field",
			template: "{code}",
			record:   entity.Record{"code": "ABC123"},
			want:     "ABC123",
		},
		{
			name:     "deep link",
			template: "{sg_sequence.Sequence.code}",
			record:   entity.Record{"sg_sequence": map[string]any{"type": "Sequence", "code": "ABC123"}},
			want:     "ABC123",
		},
		{
			name:     "fallback skips null",
			template: "{artist|created_by}",
			record:   entity.Record{"artist": nil, "created_by": "jdoe"},
			want:     "jdoe",
		},
		{
			name:     "fallback skips absent",
			template: "{artist|created_by}",
			record:   entity.Record{"created_by": "jdoe"},
			want:     "jdoe",
		},
		{
			name:     "fallback skips empty string",
			template: "{artist|created_by}",
			record:   entity.Record{"artist": "", "created_by": "jdoe"},
			want:     "jdoe",
		},
		{
			name:     "first non-empty wins",
			template: "{artist|created_by}",
			record:   entity.Record{"artist": "asmith", "created_by": "jdoe"},
			want:     "asmith",
		},
		{
			name:     "showtype",
			template: "{sg_sequence::showtype}",
			record:   entity.Record{"sg_sequence": map[string]any{"type": "Sequence", "code": "ABC123"}},
			want:     "Sequence ABC123",
		},
		{
			name:     "showtype with full reference",
			template: "{sg_sequence::showtype}",
			record:   entity.Record{"sg_sequence": map[string]any{"type": "Sequence", "id": float64(2), "name": "ABC123"}},
			want:     "Sequence ABC123",
		},
		{
			name:     "showtype on plain value is inert",
			template: "{code::showtype}",
			record:   entity.Record{"code": "ABC123"},
			want:     "ABC123",
		},
		{
			name:     "preroll dropped when null",
			template: "{[Name: ]code}",
			record:   entity.Record{"code": nil},
			want:     "",
		},
		{
			name:     "preroll kept when set",
			template: "{[Name: ]code}",
			record:   entity.Record{"code": "X"},
			want:     "Name: X",
		},
		{
			name:     "pre and postroll",
			template: "{[Name: ]code[<br>]}",
			record:   entity.Record{"code": "X"},
			want:     "Name: X<br>",
		},
		{
			name:     "roll wraps whole fallback chain",
			template: "{[by ]artist|created_by}",
			record:   entity.Record{"artist": nil, "created_by": "jdoe"},
			want:     "by jdoe",
		},
		{
			name:     "literal text around tokens",
			template: "Version {version_number} of {name}",
			record:   entity.Record{"version_number": float64(3), "name": "layout"},
			want:     "Version 3 of layout",
		},
		{
			name:     "absent renders empty",
			template: "x{missing}y",
			record:   entity.Record{},
			want:     "xy",
		},
		{
			name:     "entity value renders by name",
			template: "{entity}",
			record:   entity.Record{"entity": map[string]any{"type": "Shot", "id": float64(4), "name": "010_0040"}},
			want:     "010_0040",
		},
		{
			name:     "nameless entity is empty and drops rolls",
			template: "{[for ]entity}",
			record:   entity.Record{"entity": map[string]any{"type": "Shot", "id": float64(4)}},
			want:     "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustParse(t, tt.template).Render(tt.record, RenderOptions{})
			if got != tt.want {
				t.Fatalf("Render(%q) = %q, want %q", tt.template, got, tt.want)
			}
		})
	}
}

func TestRenderItemTokens(t *testing.T) {
	tmpl := mustParse(t, "<b>{<NODE_NAME>}</b> {name|<PATH>}")
	record := entity.Record{"name": ""}
	got := tmpl.Render(record, RenderOptions{
		Item: map[string]string{"NODE_NAME": "refNode1", "PATH": "/prod/layout.v003.ma"},
	})
	want := "<b>refNode1</b> /prod/layout.v003.ma"
	if got != want {
		t.Fatalf("Render = %q, want %q", got, want)
	}
}

func TestRenderLinks(t *testing.T) {
	record := entity.Record{
		"entity":     map[string]any{"type": "Shot", "id": float64(4), "name": "010_0040"},
		"created_by": map[string]any{"type": "HumanUser", "id": float64(9), "name": "J Doe"},
	}
	link := func(ref entity.Ref, text string) string {
		return fmt.Sprintf("<link:%s/%d>%s</link>", ref.Type, ref.ID, text)
	}

	got := mustParse(t, "{entity}").Render(record, RenderOptions{Link: link})
	if want := "<link:Shot/4>010_0040</link>"; got != want {
		t.Fatalf("linked render = %q, want %q", got, want)
	}

	got = mustParse(t, "{entity::nolink}").Render(record, RenderOptions{Link: link})
	if want := "010_0040"; got != want {
		t.Fatalf("nolink render = %q, want %q", got, want)
	}

	// showtype prefixes outside the link wrapping.
	got = mustParse(t, "{entity::showtype}").Render(record, RenderOptions{Link: link})
	if want := "Shot <link:Shot/4>010_0040</link>"; got != want {
		t.Fatalf("showtype+link render = %q, want %q", got, want)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{name: "unterminated token", src: "abc {code", wantErr: "unterminated token at offset 4"},
		{name: "empty token", src: "{}", wantErr: "empty field"},
		{name: "unknown directive", src: "{code::bold}", wantErr: `unknown directive "bold"`},
		{name: "empty directive", src: "{code::}", wantErr: "empty directive"},
		{name: "empty fallback", src: "{code|}", wantErr: "empty field"},
		{name: "bad field path", src: "{co de}", wantErr: `malformed field path "co de"`},
		{name: "bad item token", src: "{<NODE NAME>}", wantErr: "malformed item token"},
		{name: "unterminated preroll", src: "{[Name: code}", wantErr: "unterminated preroll"},
		{name: "digit-led field", src: "{9code}", wantErr: "malformed field path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Parse(%q) = %v, want error containing %q", tt.src, err, tt.wantErr)
			}
		})
	}
}

func TestFields(t *testing.T) {
	tmpl := mustParse(t, "{name|code} v{version_number} {entity.Shot.sg_sequence.Sequence.code} {<NODE_NAME>} {name}")
	got := tmpl.Fields()
	want := []string{"name", "code", "version_number", "entity.Shot.sg_sequence.Sequence.code"}
	if len(got) != len(want) {
		t.Fatalf("Fields() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Fields()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRenderIsTotalOverOddRecords(t *testing.T) {
	// Every token shape over a record with hostile values: rendering
	// must never panic and empty means empty.
	record := entity.Record{
		"zero":  float64(0),
		"list":  []any{},
		"bool":  false,
		"weird": map[string]any{"no": "identity"},
	}
	for _, src := range []string{"{zero}", "{list}", "{bool}", "{weird}", "{[x]list[y]}", "{list|zero}"} {
		tmpl := mustParse(t, src)
		_ = tmpl.Render(record, RenderOptions{})
	}
	if got := mustParse(t, "{list|zero}").Render(record, RenderOptions{}); got != "0" {
		t.Fatalf("fallback over empty list = %q, want \"0\"", got)
	}
}
