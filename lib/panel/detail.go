// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package panel

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/pipeline-foundation/breakdown/lib/actions"
	"github.com/pipeline-foundation/breakdown/lib/breakdown"
	"github.com/pipeline-foundation/breakdown/lib/entity"
	"github.com/pipeline-foundation/breakdown/lib/hook"
	"github.com/pipeline-foundation/breakdown/lib/template"
)

// templateCache memoizes parsed detail templates. Block strings come
// from configuration and hooks, so the working set is a handful of
// entries for the life of the process.
var templateCache sync.Map // string -> *template.Template

func cachedTemplate(src string) *template.Template {
	if cached, ok := templateCache.Load(src); ok {
		return cached.(*template.Template)
	}
	parsed, err := template.Parse(src)
	if err != nil {
		// Load paths validate every block, so a parse failure here
		// means the string never went through validation. Render it as
		// nothing rather than crashing the panel.
		return nil
	}
	templateCache.Store(src, parsed)
	return parsed
}

// DetailRenderer renders the selected item's detail pane: the
// hook-configured header block, the markdown description, and the
// version history rows.
type DetailRenderer struct {
	theme Theme
	width int
	ui    hook.UIConfig

	// siteURL makes entity references terminal hyperlinks to the
	// tracking site. Empty renders plain text.
	siteURL string
}

// NewDetailRenderer builds a renderer for the given pane width.
func NewDetailRenderer(theme Theme, width int, ui hook.UIConfig, siteURL string) DetailRenderer {
	return DetailRenderer{theme: theme, width: width, ui: ui, siteURL: siteURL}
}

// RenderHeader renders the main detail block for the selected item,
// followed by the record's description as markdown when present.
func (renderer DetailRenderer) RenderHeader(item *breakdown.FileItem) string {
	if item == nil {
		return ""
	}
	if item.Record == nil {
		faint := lipgloss.NewStyle().Foreground(renderer.theme.FaintText)
		return faint.Render("Not published") + "\n" +
			faint.Render(truncate(item.Path, renderer.width))
	}

	var sections []string
	block := renderer.blockFor(item)
	if rendered := renderer.renderBlock(block, item.Record, item); rendered != "" {
		sections = append(sections, rendered)
	}
	if description, ok := entity.String(item.Record["description"]); ok && description != "" {
		if rendered := renderMarkdown(description, renderer.theme, renderer.width); rendered != "" {
			sections = append(sections, rendered)
		}
	}
	return strings.Join(sections, "\n\n")
}

// blockFor picks the header block: the main history block when the
// hook configures one, the per-item block otherwise.
func (renderer DetailRenderer) blockFor(item *breakdown.FileItem) hook.Block {
	if renderer.ui == nil {
		return hook.Block{}
	}
	if block := renderer.ui.MainFileHistoryDetails(); !block.IsZero() {
		return block
	}
	return renderer.ui.FileItemDetails()
}

// RenderHistoryRow renders one version-history record using the
// hook-configured history block. selected highlights the row for
// keyboard version picking; current marks the version loaded in the
// scene.
func (renderer DetailRenderer) RenderHistoryRow(item *breakdown.FileItem, record entity.Record, selected, current bool) string {
	var block hook.Block
	if renderer.ui != nil {
		block = renderer.ui.FileHistoryDetails()
	}
	rendered := renderer.renderBlock(block, record, item)
	if rendered == "" {
		version, _ := entity.Int(record["version_number"])
		rendered = versionLabel(version)
	}
	if current {
		marker := lipgloss.NewStyle().
			Foreground(renderer.theme.StatusUpToDate).
			Render(" ◀ in scene")
		lines := strings.SplitN(rendered, "\n", 2)
		lines[0] += marker
		rendered = strings.Join(lines, "\n")
	}
	if selected {
		style := lipgloss.NewStyle().
			Background(renderer.theme.SelectedBackground).
			Foreground(renderer.theme.SelectedForeground)
		var out []string
		for _, line := range strings.Split(rendered, "\n") {
			out = append(out, style.Width(renderer.width).MaxWidth(renderer.width).Render(line))
		}
		return strings.Join(out, "\n")
	}
	return rendered
}

// renderBlock renders one templated block: the top-left and top-right
// panes share the first line, the body follows line by line. Lines
// whose every token resolved empty drop out.
func (renderer DetailRenderer) renderBlock(block hook.Block, record entity.Record, item *breakdown.FileItem) string {
	opts := template.RenderOptions{
		Item: itemTokens(item),
		Link: renderer.link,
	}

	var lines []string
	topLeft := renderer.renderPane(block.TopLeft, record, opts)
	topRight := renderer.renderPane(block.TopRight, record, opts)
	if topLeft != "" || topRight != "" {
		headStyle := lipgloss.NewStyle().
			Foreground(renderer.theme.HeaderForeground).
			Bold(true)
		line := headStyle.Render(topLeft)
		if topRight != "" {
			gap := renderer.width - lipgloss.Width(topLeft) - lipgloss.Width(topRight)
			if gap < 1 {
				gap = 1
			}
			line += strings.Repeat(" ", gap) +
				lipgloss.NewStyle().Foreground(renderer.theme.FaintText).Render(topRight)
		}
		lines = append(lines, line)
	}

	if block.Body != "" {
		bodyStyle := lipgloss.NewStyle().Foreground(renderer.theme.NormalText)
		for _, src := range strings.Split(block.Body, "\n") {
			rendered := renderer.renderPane(src, record, opts)
			if strings.TrimSpace(rendered) == "" {
				continue
			}
			lines = append(lines, bodyStyle.Render(truncate(rendered, renderer.width)))
		}
	}
	return strings.Join(lines, "\n")
}

func (renderer DetailRenderer) renderPane(src string, record entity.Record, opts template.RenderOptions) string {
	if src == "" {
		return ""
	}
	parsed := cachedTemplate(src)
	if parsed == nil {
		return ""
	}
	return parsed.Render(record, opts)
}

// link wraps an entity reference's display text in an OSC 8 terminal
// hyperlink to its tracking-site detail page.
func (renderer DetailRenderer) link(ref entity.Ref, text string) string {
	url := actions.TrackerURL(renderer.siteURL, entity.Record{
		"type": ref.Type,
		"id":   ref.ID,
	})
	if url == "" {
		return text
	}
	styled := lipgloss.NewStyle().
		Foreground(renderer.theme.LinkForeground).
		Underline(true).
		Render(text)
	return termenv.Hyperlink(url, styled)
}

// itemTokens supplies the scene-side template tokens for an item.
func itemTokens(item *breakdown.FileItem) map[string]string {
	if item == nil {
		return nil
	}
	return map[string]string{
		"NODE_NAME": item.NodeName,
		"NODE_TYPE": item.NodeType,
		"PATH":      item.Path,
	}
}

// versionLabel formats a bare version number for history rows with no
// configured template.
func versionLabel(version int64) string {
	if version == 0 {
		return "Version —"
	}
	return fmt.Sprintf("Version v%03d", version)
}
