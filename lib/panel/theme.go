// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package panel

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/pipeline-foundation/breakdown/lib/breakdown"
)

// Theme defines the color palette for the breakdown panel. All colors
// use lipgloss ANSI 256-color codes for broad terminal compatibility.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Selected row.
	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	// Status colors.
	StatusUpToDate  lipgloss.Color
	StatusOutOfDate lipgloss.Color
	StatusLocked    lipgloss.Color
	StatusNone      lipgloss.Color

	// UI chrome.
	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color

	// Fuzzy filter match highlighting.
	MatchBackground lipgloss.Color

	// Inline code and code blocks in markdown.
	CodeForeground lipgloss.Color

	// Entity reference links.
	LinkForeground lipgloss.Color
}

// StatusColor returns the color for an item or group status.
func (theme Theme) StatusColor(status breakdown.Status) lipgloss.Color {
	switch status {
	case breakdown.StatusUpToDate:
		return theme.StatusUpToDate
	case breakdown.StatusOutOfDate:
		return theme.StatusOutOfDate
	case breakdown.StatusLocked:
		return theme.StatusLocked
	default:
		return theme.StatusNone
	}
}

// StatusGlyph returns the one-cell marker rendered before an item or
// group label.
func StatusGlyph(status breakdown.Status) string {
	switch status {
	case breakdown.StatusUpToDate:
		return "●"
	case breakdown.StatusOutOfDate:
		return "▲"
	case breakdown.StatusLocked:
		return "◆"
	default:
		return "○"
	}
}

// DefaultTheme is the built-in dark-terminal color scheme.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),

	StatusUpToDate:  lipgloss.Color("114"), // green
	StatusOutOfDate: lipgloss.Color("214"), // amber
	StatusLocked:    lipgloss.Color("110"), // blue-grey
	StatusNone:      lipgloss.Color("240"), // dim

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),

	MatchBackground: lipgloss.Color("58"), // dark amber

	CodeForeground: lipgloss.Color("180"),

	LinkForeground: lipgloss.Color("75"), // blue
}
