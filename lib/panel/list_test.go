// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package panel

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"

	"github.com/pipeline-foundation/breakdown/lib/breakdown"
	"github.com/pipeline-foundation/breakdown/lib/entity"
)

func testItem(node string, current, latest int64) *breakdown.FileItem {
	item := &breakdown.FileItem{
		NodeName: node,
		Path:     "/prod/" + node + ".ma",
		Record: entity.Record{
			"type": "PublishedFile", "id": float64(1),
			"version_number": float64(current),
			"project":        map[string]any{"type": "Project", "id": float64(7), "name": "Iris"},
		},
	}
	if latest > 0 {
		item.Latest = entity.Record{"id": float64(2), "version_number": float64(latest)}
	}
	return item
}

func testGroups() []breakdown.Group {
	return breakdown.GroupBy([]*breakdown.FileItem{
		testItem("shot010_anim", 3, 5),
		testItem("shot010_layout", 2, 2),
		testItem("shot020_fx", 1, 1),
	}, "project")
}

func rowNodeNames(rows []row) []string {
	var names []string
	for _, r := range rows {
		if r.kind == rowItem {
			names = append(names, r.item.NodeName)
		}
	}
	return names
}

func TestBuildRowsHeadersAndItems(t *testing.T) {
	rows := buildRows(testGroups(), nil, FilterAll, nil, nil)
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want 1 header + 3 items", len(rows))
	}
	if rows[0].kind != rowGroup {
		t.Error("first row should be a group header")
	}
	if rows[0].visible != 3 {
		t.Errorf("header visible = %d, want 3", rows[0].visible)
	}
}

func TestBuildRowsFolded(t *testing.T) {
	groups := testGroups()
	folded := map[string]bool{groups[0].Key: true}
	rows := buildRows(groups, folded, FilterAll, nil, nil)
	if len(rows) != 1 {
		t.Fatalf("folded group should keep only its header, got %d rows", len(rows))
	}
}

func TestBuildRowsStatusFilter(t *testing.T) {
	rows := buildRows(testGroups(), nil, FilterOutOfDate, nil, nil)
	names := rowNodeNames(rows)
	if len(names) != 1 || names[0] != "shot010_anim" {
		t.Errorf("out-of-date filter kept %v", names)
	}
}

func TestBuildRowsFuzzyDropsEmptyGroups(t *testing.T) {
	rows := buildRows(testGroups(), nil, FilterAll, []rune("layout"), nil)
	names := rowNodeNames(rows)
	if len(names) != 1 || names[0] != "shot010_layout" {
		t.Errorf("fuzzy filter kept %v", names)
	}
	for _, r := range rows {
		if r.kind == rowItem && !r.match.Matched() {
			t.Error("filtered row carries no match")
		}
	}
}

func TestBuildRowsFuzzyIgnoresFold(t *testing.T) {
	groups := testGroups()
	folded := map[string]bool{groups[0].Key: true}
	rows := buildRows(groups, folded, FilterAll, []rune("anim"), nil)
	if len(rowNodeNames(rows)) != 1 {
		t.Error("an active filter should search inside folded groups")
	}
}

func TestStatusFilterCycle(t *testing.T) {
	order := []StatusFilter{FilterAll, FilterOutOfDate, FilterLocked, FilterUpToDate, FilterAll}
	current := FilterAll
	for index := 1; index < len(order); index++ {
		current = current.Next()
		if current != order[index] {
			t.Fatalf("cycle step %d = %v, want %v", index, current, order[index])
		}
	}
}

func TestStatusFilterAdmits(t *testing.T) {
	if !FilterAll.Admits(breakdown.StatusLocked) {
		t.Error("FilterAll should admit everything")
	}
	if FilterOutOfDate.Admits(breakdown.StatusUpToDate) {
		t.Error("FilterOutOfDate should reject up-to-date items")
	}
	if !FilterLocked.Admits(breakdown.StatusLocked) {
		t.Error("FilterLocked should admit locked items")
	}
}

func TestVersionSpan(t *testing.T) {
	if got := versionSpan(testItem("a", 3, 5)); got != "v003 → v005" {
		t.Errorf("out-of-date span = %q", got)
	}
	if got := versionSpan(testItem("a", 2, 2)); got != "v002" {
		t.Errorf("current span = %q", got)
	}
	if got := versionSpan(&breakdown.FileItem{NodeName: "stray"}); got != "—" {
		t.Errorf("unresolved span = %q", got)
	}
}

func TestHeaderSubtitle(t *testing.T) {
	items := []*breakdown.FileItem{
		testItem("a", 3, 5),
		testItem("b", 2, 2),
	}
	got := headerSubtitle(items, 2)
	if got != "2 files / 1 out of date" {
		t.Errorf("subtitle = %q", got)
	}
	if got := headerSubtitle(items[1:], 1); got != "1 file" {
		t.Errorf("single-file subtitle = %q", got)
	}
	if got := headerSubtitle(items, 1); !strings.Contains(got, "(1 shown)") {
		t.Errorf("partial subtitle = %q", got)
	}
}

func TestRenderGroupHeaderContent(t *testing.T) {
	groups := testGroups()
	renderer := NewListRenderer(DefaultTheme, 60)
	plain := ansi.Strip(renderer.RenderGroupHeader(groups[0], 3, false, false))
	if !strings.Contains(plain, "Iris") {
		t.Errorf("header missing label: %q", plain)
	}
	if !strings.Contains(plain, "3 files") {
		t.Errorf("header missing subtitle: %q", plain)
	}
	if !strings.Contains(plain, "▼") {
		t.Errorf("expanded header missing indicator: %q", plain)
	}
	foldedPlain := ansi.Strip(renderer.RenderGroupHeader(groups[0], 3, true, false))
	if !strings.Contains(foldedPlain, "▶") {
		t.Errorf("folded header missing indicator: %q", foldedPlain)
	}
}

func TestRenderItemContent(t *testing.T) {
	renderer := NewListRenderer(DefaultTheme, 60)
	plain := ansi.Strip(renderer.RenderItem(testItem("shot010_anim", 3, 5), false, nil))
	if !strings.Contains(plain, "shot010_anim") {
		t.Errorf("row missing node name: %q", plain)
	}
	if !strings.Contains(plain, "v003 → v005") {
		t.Errorf("row missing version span: %q", plain)
	}
	if !strings.Contains(plain, "▲") {
		t.Errorf("out-of-date row missing glyph: %q", plain)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate widened %q", got)
	}
	got := truncate("a_very_long_node_name", 10)
	if !strings.HasSuffix(got, "…") {
		t.Errorf("truncated text should end in ellipsis: %q", got)
	}
}

func TestStatusGlyphs(t *testing.T) {
	cases := map[breakdown.Status]string{
		breakdown.StatusUpToDate:  "●",
		breakdown.StatusOutOfDate: "▲",
		breakdown.StatusLocked:    "◆",
		breakdown.StatusNone:      "○",
	}
	for status, want := range cases {
		if got := StatusGlyph(status); got != want {
			t.Errorf("StatusGlyph(%v) = %q, want %q", status, got, want)
		}
	}
}
