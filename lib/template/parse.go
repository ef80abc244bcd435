// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"fmt"
	"strings"
)

// Template is a compiled display template. Templates are immutable and
// safe for concurrent use.
type Template struct {
	src      string
	segments []segment
}

// segment is either literal text or one token.
type segment struct {
	literal string
	token   *token
}

type token struct {
	pre, post    string
	alternatives []fieldRef
	showType     bool
	noLink       bool
}

// fieldRef is one alternative in a token's fallback chain: either a
// record field path or a scene-item token like <NODE_NAME>.
type fieldRef struct {
	path string
	item bool
}

// Source returns the template text the Template was compiled from.
func (t *Template) Source() string { return t.src }

// Parse compiles a template. Errors carry the byte offset of the
// offending token.
func Parse(src string) (*Template, error) {
	t := &Template{src: src}
	var literal strings.Builder

	for i := 0; i < len(src); {
		if src[i] != '{' {
			literal.WriteByte(src[i])
			i++
			continue
		}
		if literal.Len() > 0 {
			t.segments = append(t.segments, segment{literal: literal.String()})
			literal.Reset()
		}
		end := strings.IndexByte(src[i:], '}')
		if end < 0 {
			return nil, fmt.Errorf("template: unterminated token at offset %d", i)
		}
		tok, err := parseToken(src[i+1 : i+end])
		if err != nil {
			return nil, fmt.Errorf("template: token at offset %d: %w", i, err)
		}
		t.segments = append(t.segments, segment{token: tok})
		i += end + 1
	}
	if literal.Len() > 0 {
		t.segments = append(t.segments, segment{literal: literal.String()})
	}
	return t, nil
}

// parseToken parses the text between one { } pair.
func parseToken(body string) (*token, error) {
	tok := &token{}

	if strings.HasPrefix(body, "[") {
		end := strings.IndexByte(body, ']')
		if end < 0 {
			return nil, fmt.Errorf("unterminated preroll")
		}
		tok.pre = body[1:end]
		body = body[end+1:]
	}
	if strings.HasSuffix(body, "]") {
		start := strings.LastIndexByte(body, '[')
		if start < 0 {
			return nil, fmt.Errorf("unterminated postroll")
		}
		tok.post = body[start+1 : len(body)-1]
		body = body[:start]
	}

	head, directiveText, hasDirectives := strings.Cut(body, "::")
	if hasDirectives {
		for _, name := range strings.Split(directiveText, "::") {
			switch strings.TrimSpace(name) {
			case "":
				return nil, fmt.Errorf("empty directive")
			case "showtype":
				tok.showType = true
			case "nolink":
				tok.noLink = true
			default:
				return nil, fmt.Errorf("unknown directive %q", strings.TrimSpace(name))
			}
		}
	}

	for _, alt := range strings.Split(head, "|") {
		ref, err := parseFieldRef(strings.TrimSpace(alt))
		if err != nil {
			return nil, err
		}
		tok.alternatives = append(tok.alternatives, ref)
	}
	return tok, nil
}

func parseFieldRef(s string) (fieldRef, error) {
	if s == "" {
		return fieldRef{}, fmt.Errorf("empty field")
	}
	if strings.HasPrefix(s, "<") {
		if !strings.HasSuffix(s, ">") || len(s) < 3 {
			return fieldRef{}, fmt.Errorf("malformed item token %q", s)
		}
		name := s[1 : len(s)-1]
		if !isIdentifier(name) {
			return fieldRef{}, fmt.Errorf("malformed item token %q", s)
		}
		return fieldRef{path: name, item: true}, nil
	}
	for _, part := range strings.Split(s, ".") {
		if !isIdentifier(part) {
			return fieldRef{}, fmt.Errorf("malformed field path %q", s)
		}
	}
	return fieldRef{path: s}, nil
}

// isIdentifier matches the service's field and type names: letters,
// digits, and underscores, not starting with a digit.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Fields returns the record field paths the template reads, in first
// appearance order without duplicates. Deep-link paths are returned
// whole; the service accepts the dotted form in query field lists.
// Scene-item tokens are not record fields and are excluded.
func (t *Template) Fields() []string {
	var fields []string
	seen := make(map[string]bool)
	for _, seg := range t.segments {
		if seg.token == nil {
			continue
		}
		for _, alt := range seg.token.alternatives {
			if alt.item || seen[alt.path] {
				continue
			}
			seen[alt.path] = true
			fields = append(fields, alt.path)
		}
	}
	return fields
}
