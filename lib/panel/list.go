// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package panel

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/junegunn/fzf/src/util"

	"github.com/pipeline-foundation/breakdown/lib/breakdown"
)

// StatusFilter restricts the list to items in one status. Cycling
// order: everything, out of date, locked, up to date.
type StatusFilter int

const (
	FilterAll StatusFilter = iota
	FilterOutOfDate
	FilterLocked
	FilterUpToDate
)

// Next returns the filter after this one in cycling order.
func (f StatusFilter) Next() StatusFilter {
	switch f {
	case FilterAll:
		return FilterOutOfDate
	case FilterOutOfDate:
		return FilterLocked
	case FilterLocked:
		return FilterUpToDate
	default:
		return FilterAll
	}
}

// Label names the filter for the status bar.
func (f StatusFilter) Label() string {
	switch f {
	case FilterOutOfDate:
		return "out of date"
	case FilterLocked:
		return "locked"
	case FilterUpToDate:
		return "up to date"
	default:
		return "all"
	}
}

// Admits reports whether an item in the given status passes the filter.
func (f StatusFilter) Admits(status breakdown.Status) bool {
	switch f {
	case FilterOutOfDate:
		return status == breakdown.StatusOutOfDate
	case FilterLocked:
		return status == breakdown.StatusLocked
	case FilterUpToDate:
		return status == breakdown.StatusUpToDate
	default:
		return true
	}
}

// rowKind distinguishes the two row shapes in the flattened list.
type rowKind int

const (
	rowGroup rowKind = iota
	rowItem
)

// row is one visible line of the list: a group header or a file item.
type row struct {
	kind rowKind

	// group is the index into the current group slice. Set for both
	// kinds; item rows know which header they sit under.
	group int

	// item is the file item for rowItem, nil on headers.
	item *breakdown.FileItem

	// visible is the number of item rows under a header after
	// filtering, which may be fewer than the group holds.
	visible int

	// match holds the fuzzy positions in the item's node name when a
	// filter pattern is active.
	match FuzzyResult
}

// buildRows flattens groups into the visible row list. Folded groups
// keep their header and drop their items. The status filter and the
// fuzzy pattern drop items; a group whose items all drop keeps its
// header only when no fuzzy pattern is active, so filtering shows
// matches and nothing else. With a pattern, rows order by match score
// within each group.
func buildRows(groups []breakdown.Group, folded map[string]bool, status StatusFilter, pattern []rune, slab *util.Slab) []row {
	var rows []row
	filtering := len(pattern) > 0
	for groupIndex, group := range groups {
		var items []row
		for _, item := range group.Items {
			if !status.Admits(item.Status()) {
				continue
			}
			var match FuzzyResult
			if filtering {
				match = fuzzyMatch(item.NodeName, pattern, slab)
				if !match.Matched() {
					continue
				}
			}
			items = append(items, row{kind: rowItem, group: groupIndex, item: item, match: match})
		}
		if filtering {
			if len(items) == 0 {
				continue
			}
			// Highest score first; equal scores keep scan order.
			for i := 1; i < len(items); i++ {
				for j := i; j > 0 && items[j].match.Score > items[j-1].match.Score; j-- {
					items[j], items[j-1] = items[j-1], items[j]
				}
			}
		} else if len(items) == 0 && status != FilterAll {
			continue
		}
		rows = append(rows, row{kind: rowGroup, group: groupIndex, visible: len(items)})
		if folded[group.Key] && !filtering {
			continue
		}
		rows = append(rows, items...)
	}
	return rows
}

// ListRenderer renders the flattened rows within a fixed width.
type ListRenderer struct {
	theme Theme
	width int
}

// NewListRenderer creates a ListRenderer for the given width.
func NewListRenderer(theme Theme, width int) ListRenderer {
	return ListRenderer{theme: theme, width: width}
}

// RenderGroupHeader renders a group header: fold indicator, rollup
// status glyph, label, and a count subtitle.
//
//	▼ ▲ 010_0040            4 files / 2 out of date
func (renderer ListRenderer) RenderGroupHeader(group breakdown.Group, visible int, folded, selected bool) string {
	indicator := "▼"
	if folded {
		indicator = "▶"
	}
	glyph := StatusGlyph(group.Status)
	subtitle := headerSubtitle(group.Items, visible)

	if selected {
		style := lipgloss.NewStyle().
			Background(renderer.theme.SelectedBackground).
			Foreground(renderer.theme.SelectedForeground).
			Bold(true)
		line := " " + indicator + " " + glyph + " " +
			renderer.fitLabel(group.Label, subtitle) + "  " + subtitle
		return style.Width(renderer.width).MaxWidth(renderer.width).Render(line)
	}

	headerStyle := lipgloss.NewStyle().
		Foreground(renderer.theme.HeaderForeground).
		Bold(true)
	if folded {
		headerStyle = headerStyle.Foreground(renderer.theme.FaintText)
	}
	glyphStyled := lipgloss.NewStyle().
		Foreground(renderer.theme.StatusColor(group.Status)).
		Render(glyph)
	subtitleStyled := lipgloss.NewStyle().
		Foreground(renderer.theme.FaintText).
		Render(subtitle)

	line := " " + headerStyle.Render(indicator) + " " + glyphStyled + " " +
		headerStyle.Render(renderer.fitLabel(group.Label, subtitle)) + "  " + subtitleStyled
	return lipgloss.NewStyle().Width(renderer.width).MaxWidth(renderer.width).Render(line)
}

// headerSubtitle summarizes a group: total file count and how many of
// the visible items are out of date.
func headerSubtitle(items []*breakdown.FileItem, visible int) string {
	outOfDate := 0
	for _, item := range items {
		if item.Status() == breakdown.StatusOutOfDate {
			outOfDate++
		}
	}
	noun := "files"
	if len(items) == 1 {
		noun = "file"
	}
	subtitle := fmt.Sprintf("%d %s", len(items), noun)
	if outOfDate > 0 {
		subtitle += fmt.Sprintf(" / %d out of date", outOfDate)
	}
	if visible < len(items) {
		subtitle += fmt.Sprintf(" (%d shown)", visible)
	}
	return subtitle
}

// fitLabel truncates a group label so the header never wraps. Reserve:
// prefix " ▼ ● " (5 cells) plus the subtitle and its gap.
func (renderer ListRenderer) fitLabel(label, subtitle string) string {
	available := renderer.width - 5 - lipgloss.Width(subtitle) - 2
	if available < 8 {
		available = 8
	}
	return truncate(label, available)
}

// RenderItem renders one file item row: status glyph, node name, and
// the version span. matchPositions highlights fuzzy filter hits in the
// node name.
//
//	   ▲ shot010_anim                         v003 → v005
func (renderer ListRenderer) RenderItem(item *breakdown.FileItem, selected bool, matchPositions []int) string {
	status := item.Status()
	glyph := StatusGlyph(status)
	span := versionSpan(item)

	// Prefix "   ● " is 5 cells; the span sits right-aligned.
	nameWidth := renderer.width - 5 - lipgloss.Width(span) - 2
	if nameWidth < 10 {
		nameWidth = 10
	}
	name := truncate(item.NodeName, nameWidth)
	padding := nameWidth - lipgloss.Width(name)

	if selected {
		style := lipgloss.NewStyle().
			Background(renderer.theme.SelectedBackground).
			Foreground(renderer.theme.SelectedForeground)
		var rendered string
		if len(matchPositions) > 0 {
			rendered = highlightMatches(name, matchPositions, style, style.Bold(true).Underline(true))
		} else {
			rendered = style.Render(name)
		}
		line := "   " + style.Render(glyph) + " " + rendered +
			style.Render(strings.Repeat(" ", padding+2)+span)
		return style.Width(renderer.width).MaxWidth(renderer.width).Render(line)
	}

	nameStyle := lipgloss.NewStyle().Foreground(renderer.theme.NormalText)
	var rendered string
	if len(matchPositions) > 0 {
		highlight := nameStyle.Background(renderer.theme.MatchBackground)
		rendered = highlightMatches(name, matchPositions, nameStyle, highlight)
	} else {
		rendered = nameStyle.Render(name)
	}
	glyphStyled := lipgloss.NewStyle().
		Foreground(renderer.theme.StatusColor(status)).
		Render(glyph)
	spanStyle := lipgloss.NewStyle().Foreground(renderer.theme.FaintText)
	if status == breakdown.StatusOutOfDate {
		spanStyle = spanStyle.Foreground(renderer.theme.StatusOutOfDate)
	}

	line := "   " + glyphStyled + " " + rendered +
		strings.Repeat(" ", padding+2) + spanStyle.Render(span)
	return lipgloss.NewStyle().Width(renderer.width).MaxWidth(renderer.width).Render(line)
}

// versionSpan formats the item's version position: "v003" when
// current, "v003 → v005" when behind, "—" while unresolved.
func versionSpan(item *breakdown.FileItem) string {
	current := item.CurrentVersion()
	if current == 0 {
		return "—"
	}
	highest := item.HighestVersion()
	if highest > current {
		return fmt.Sprintf("v%03d → v%03d", current, highest)
	}
	return fmt.Sprintf("v%03d", current)
}

// highlightMatches renders text with the runes at the given positions
// in highlightStyle and everything else in baseStyle. Runs of
// same-style runes are batched into one Render call.
func highlightMatches(text string, positions []int, baseStyle, highlightStyle lipgloss.Style) string {
	if len(positions) == 0 {
		return baseStyle.Render(text)
	}
	positionSet := make(map[int]bool, len(positions))
	for _, position := range positions {
		positionSet[position] = true
	}

	runes := []rune(text)
	var out strings.Builder
	runStart := 0
	highlighted := positionSet[0]
	for index := 1; index <= len(runes); index++ {
		current := index < len(runes) && positionSet[index]
		if current != highlighted || index == len(runes) {
			chunk := string(runes[runStart:index])
			if highlighted {
				out.WriteString(highlightStyle.Render(chunk))
			} else {
				out.WriteString(baseStyle.Render(chunk))
			}
			runStart = index
			highlighted = current
		}
	}
	return out.String()
}

// truncate cuts text to maxWidth cells, ellipsis included.
func truncate(text string, maxWidth int) string {
	if lipgloss.Width(text) <= maxWidth {
		return text
	}
	runes := []rune(text)
	for length := len(runes) - 1; length >= 0; length-- {
		candidate := string(runes[:length])
		if lipgloss.Width(candidate) <= maxWidth-1 {
			return candidate + "…"
		}
	}
	return ""
}
