// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"strings"

	"github.com/pipeline-foundation/breakdown/lib/entity"
)

// RenderOptions carries the per-render context a template may need.
// The zero value renders plain text with no item tokens and no links.
type RenderOptions struct {
	// Item supplies values for scene-item tokens: Item["NODE_NAME"]
	// answers {<NODE_NAME>}. A missing name resolves as empty.
	Item map[string]string

	// Link wraps an entity reference's display text, typically in a
	// terminal hyperlink to the tracking site. Nil leaves the text
	// bare. Tokens carrying ::nolink bypass it.
	Link func(ref entity.Ref, text string) string
}

// Render resolves the template against a record. Rendering is total:
// absent and empty values produce "" and take their pre/post-roll with
// them.
func (t *Template) Render(r entity.Record, opts RenderOptions) string {
	var out strings.Builder
	for _, seg := range t.segments {
		if seg.token == nil {
			out.WriteString(seg.literal)
			continue
		}
		out.WriteString(renderToken(seg.token, r, opts))
	}
	return out.String()
}

func renderToken(tok *token, r entity.Record, opts RenderOptions) string {
	value, ok := resolveChain(tok, r, opts)
	if !ok {
		return ""
	}

	text := entity.Display(value)
	if ref, ok := entity.RefFrom(value); ok && opts.Link != nil && !tok.noLink {
		text = opts.Link(ref, text)
	}
	// The type prefix needs only the record's type field; linking
	// above still demands a full reference with an id.
	if tok.showType {
		if rec, ok := entity.RecordFrom(value); ok && rec.Type() != "" {
			text = rec.Type() + " " + text
		}
	}
	if text == "" {
		return ""
	}
	return tok.pre + text + tok.post
}

// resolveChain walks the fallback chain and returns the first
// non-empty value. Absent fields and present-but-empty values are both
// passed over.
func resolveChain(tok *token, r entity.Record, opts RenderOptions) (any, bool) {
	for _, alt := range tok.alternatives {
		if alt.item {
			if s := opts.Item[alt.path]; s != "" {
				return s, true
			}
			continue
		}
		v, ok := r.Deep(alt.path)
		if !ok || entity.IsEmpty(v) {
			continue
		}
		return v, true
	}
	return nil, false
}
