// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package panel

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all key bindings for the breakdown panel.
type KeyMap struct {
	// Navigation (context-sensitive: list movement or history-row
	// movement depending on focus).
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Home     key.Binding
	End      key.Binding

	// Focus switching between the list and the detail pane.
	FocusToggle key.Binding

	// Group fold.
	Fold key.Binding

	// Filter.
	FilterActivate key.Binding
	FilterClear    key.Binding

	// Status filter cycling (all / out-of-date / locked / up-to-date).
	StatusCycle key.Binding

	// Update flows.
	UpdateItem key.Binding // selected item or group
	UpdateAll  key.Binding // everything out of date
	PickHere   key.Binding // history row: update to that version

	// Lock toggle on the selected item.
	ToggleLock key.Binding

	Refresh key.Binding
	Quit    key.Binding
}

// DefaultKeyMap is the built-in key binding set. Vim-style navigation
// alongside standard arrow keys.
var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("ctrl+u", "pgup"),
		key.WithHelp("C-u", "page up"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("ctrl+d", "pgdown"),
		key.WithHelp("C-d", "page down"),
	),
	Home: key.NewBinding(
		key.WithKeys("g", "home"),
		key.WithHelp("g", "top"),
	),
	End: key.NewBinding(
		key.WithKeys("G", "end"),
		key.WithHelp("G", "bottom"),
	),
	FocusToggle: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("Tab", "switch pane"),
	),
	Fold: key.NewBinding(
		key.WithKeys("z", "enter"),
		key.WithHelp("z", "fold group"),
	),
	FilterActivate: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "filter"),
	),
	FilterClear: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("Esc", "clear filter"),
	),
	StatusCycle: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "status filter"),
	),
	UpdateItem: key.NewBinding(
		key.WithKeys("u"),
		key.WithHelp("u", "update"),
	),
	UpdateAll: key.NewBinding(
		key.WithKeys("U"),
		key.WithHelp("U", "update all"),
	),
	PickHere: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("Enter", "use this version"),
	),
	ToggleLock: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "lock"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}
