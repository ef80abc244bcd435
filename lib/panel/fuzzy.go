// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package panel

import (
	"strings"
	"unicode"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

func init() {
	algo.Init("default")
}

// FuzzyResult is the outcome of matching one row against the filter
// pattern. Score is fzf's match quality (higher is better, 0 means no
// match); Positions are the matched rune indexes for highlighting.
type FuzzyResult struct {
	Score     int
	Positions []int
}

// Matched reports whether the pattern matched at all.
func (r FuzzyResult) Matched() bool { return r.Score > 0 }

// fuzzyMatch runs fzf's V2 matcher over text. Matching is smart-case:
// an all-lowercase pattern matches case-insensitively, any uppercase
// letter in the pattern makes it exact. The slab is reused across
// calls to avoid per-row allocation; pass the same one for a whole
// filter pass.
func fuzzyMatch(text string, pattern []rune, slab *util.Slab) FuzzyResult {
	if len(pattern) == 0 {
		return FuzzyResult{}
	}
	caseSensitive := false
	for _, r := range pattern {
		if unicode.IsUpper(r) {
			caseSensitive = true
			break
		}
	}
	chars := util.ToChars([]byte(text))
	result, positions := algo.FuzzyMatchV2(caseSensitive, true, true, &chars, pattern, true, slab)
	if result.Score <= 0 {
		return FuzzyResult{}
	}
	out := FuzzyResult{Score: result.Score}
	if positions != nil {
		out.Positions = *positions
	}
	return out
}

// filterPattern normalizes the raw filter input for matching.
func filterPattern(input string) []rune {
	return []rune(strings.TrimSpace(input))
}
