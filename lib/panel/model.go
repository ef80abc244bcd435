// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package panel

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/junegunn/fzf/src/util"

	"github.com/pipeline-foundation/breakdown/lib/breakdown"
	"github.com/pipeline-foundation/breakdown/lib/entity"
	"github.com/pipeline-foundation/breakdown/lib/hook"
	"github.com/pipeline-foundation/breakdown/lib/refresh"
)

// FocusRegion identifies where keyboard input routes.
type FocusRegion int

const (
	// FocusList means navigation moves the item list cursor.
	FocusList FocusRegion = iota
	// FocusHistory means navigation moves the version-history cursor
	// in the detail pane.
	FocusHistory
	// FocusFilter means keystrokes edit the fuzzy filter input.
	FocusFilter
	// FocusConfirm means a confirmation modal holds all input.
	FocusConfirm
)

// pauser is the optional slice of a Source that can suspend background
// polling while a modal holds the screen.
type pauser interface {
	Pause()
	Resume()
}

// scanDoneMsg delivers a completed scan.
type scanDoneMsg struct {
	items  []*breakdown.FileItem
	groups []breakdown.Group
	err    error
}

// historyDoneMsg delivers one item's version history.
type historyDoneMsg struct {
	itemKey string
	history []entity.Record
	err     error
}

// updateDoneMsg delivers the outcome of an update flow. A successful
// update triggers a re-scan.
type updateDoneMsg struct {
	updated int
	err     error
}

// refreshEventMsg wraps a staleness event for the message loop.
type refreshEventMsg struct {
	event refresh.Event
}

// confirmState is the pending mutation behind the confirmation modal.
type confirmState struct {
	prompt  string
	pending tea.Cmd
}

// Options configures a panel model.
type Options struct {
	// Source supplies the data. Required.
	Source Source

	// Title is shown in the header bar. Defaults to "Scene Breakdown".
	Title string

	// InteractiveUpdate gates every mutating flow behind a
	// confirmation modal.
	InteractiveUpdate bool

	// UI supplies the detail templates. nil renders minimal details.
	UI hook.UIConfig

	// SiteURL makes entity references hyperlinks to the tracking site.
	SiteURL string

	Theme Theme
	Keys  KeyMap
}

// Model is the top-level bubbletea model for the breakdown panel.
type Model struct {
	source  Source
	mutator Mutator // nil when the source is read-only
	theme   Theme
	keys    KeyMap

	title             string
	interactiveUpdate bool
	ui                hook.UIConfig
	siteURL           string

	width  int
	height int
	ready  bool

	// Scan state. groups are rebuilt from items after every change;
	// rows is the flattened visible list.
	items  []*breakdown.FileItem
	groups []breakdown.Group
	rows   []row

	cursor       int
	scrollOffset int
	selectedKey  string // stable focus across rebuilds, by node name
	folded       map[string]bool

	statusFilter StatusFilter
	filterInput  []rune
	priorFocus   FocusRegion
	slab         *util.Slab

	focus FocusRegion

	// Detail pane state for the selected item.
	history       []entity.Record
	historyFor    string
	historyCursor int

	confirm *confirmState

	scanning bool
	notice   string
	lastErr  error

	eventChannel <-chan refresh.Event
}

// NewModel builds a panel model over the given source. The first scan
// starts from Init.
func NewModel(opts Options) Model {
	if opts.Title == "" {
		opts.Title = "Scene Breakdown"
	}
	if opts.Theme == (Theme{}) {
		opts.Theme = DefaultTheme
	}
	if len(opts.Keys.Quit.Keys()) == 0 {
		opts.Keys = DefaultKeyMap
	}
	model := Model{
		source:            opts.Source,
		theme:             opts.Theme,
		keys:              opts.Keys,
		title:             opts.Title,
		interactiveUpdate: opts.InteractiveUpdate,
		ui:                opts.UI,
		siteURL:           opts.SiteURL,
		folded:            make(map[string]bool),
		slab:              util.MakeSlab(100*1024, 2048),
		scanning:          true,
		eventChannel:      opts.Source.Events(),
	}
	model.mutator, _ = opts.Source.(Mutator)
	return model
}

// Init implements tea.Model: kick off the first scan and, when the
// source is live, the event listener.
func (model Model) Init() tea.Cmd {
	cmds := []tea.Cmd{scanCmd(model.source)}
	if model.eventChannel != nil {
		cmds = append(cmds, listenForEvent(model.eventChannel))
	}
	return tea.Batch(cmds...)
}

// scanCmd scans in the background and delivers the result as one
// message, transferring item ownership to the model.
func scanCmd(source Source) tea.Cmd {
	return func() tea.Msg {
		items, err := source.Scan(context.Background())
		if err != nil {
			return scanDoneMsg{err: err}
		}
		return scanDoneMsg{items: items, groups: source.Group(items)}
	}
}

func historyCmd(source Source, item *breakdown.FileItem) tea.Cmd {
	itemKey := item.NodeName
	return func() tea.Msg {
		history, err := source.History(context.Background(), item)
		return historyDoneMsg{itemKey: itemKey, history: history, err: err}
	}
}

func updateLatestCmd(mutator Mutator, items []*breakdown.FileItem) tea.Cmd {
	return func() tea.Msg {
		updated, err := mutator.UpdateToLatest(context.Background(), items)
		return updateDoneMsg{updated: len(updated), err: err}
	}
}

func updateVersionCmd(mutator Mutator, item *breakdown.FileItem, record entity.Record) tea.Cmd {
	return func() tea.Msg {
		changed, err := mutator.UpdateToVersion(context.Background(), item, record)
		updated := 0
		if changed {
			updated = 1
		}
		if err == nil && !changed {
			err = fmt.Errorf("panel: %s: target version has no local path", item.NodeName)
		}
		return updateDoneMsg{updated: updated, err: err}
	}
}

func listenForEvent(channel <-chan refresh.Event) tea.Cmd {
	return func() tea.Msg {
		event, open := <-channel
		if !open {
			return nil
		}
		return refreshEventMsg{event: event}
	}
}

// Update implements tea.Model.
func (model Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		model.width = msg.Width
		model.height = msg.Height
		model.ready = true
		return model, nil

	case scanDoneMsg:
		model.scanning = false
		if msg.err != nil {
			model.lastErr = msg.err
			return model, nil
		}
		model.lastErr = nil
		model.items = msg.items
		model.groups = msg.groups
		model.history = nil
		model.historyFor = ""
		model.rebuildRows()
		model.restoreSelection()
		return model, nil

	case historyDoneMsg:
		if msg.err != nil {
			model.lastErr = msg.err
			return model, nil
		}
		if item := model.selectedItem(); item == nil || item.NodeName != msg.itemKey {
			// Selection moved while the query ran.
			return model, nil
		}
		model.history = msg.history
		model.historyFor = msg.itemKey
		model.historyCursor = 0
		return model, nil

	case updateDoneMsg:
		if msg.err != nil {
			model.lastErr = msg.err
		} else {
			model.lastErr = nil
			if msg.updated == 1 {
				model.notice = "1 file updated"
			} else {
				model.notice = fmt.Sprintf("%d files updated", msg.updated)
			}
		}
		// Re-scan so the list reflects the new scene state.
		model.scanning = true
		return model, scanCmd(model.source)

	case refreshEventMsg:
		model.applyEvent(msg.event)
		var cmds []tea.Cmd
		if msg.event.Kind == refresh.KindSceneChange && !model.scanning {
			model.scanning = true
			cmds = append(cmds, scanCmd(model.source))
		}
		if model.eventChannel != nil {
			cmds = append(cmds, listenForEvent(model.eventChannel))
		}
		return model, tea.Batch(cmds...)

	case tea.KeyMsg:
		return model.handleKey(msg)
	}
	return model, nil
}

// applyEvent folds a staleness event into the displayed items.
func (model *Model) applyEvent(event refresh.Event) {
	if event.Kind != refresh.KindLatest {
		return
	}
	touched := false
	for _, item := range model.items {
		if item.NodeName == event.ItemKey {
			item.Latest = event.Latest
			touched = true
		}
	}
	if touched {
		model.groups = model.source.Group(model.items)
		model.rebuildRows()
		model.restoreSelection()
	}
}

func (model Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch model.focus {
	case FocusConfirm:
		return model.handleConfirmKey(msg)
	case FocusFilter:
		return model.handleFilterKey(msg)
	case FocusHistory:
		return model.handleHistoryKey(msg)
	default:
		return model.handleListKey(msg)
	}
}

func (model Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		pending := model.confirm.pending
		model.confirm = nil
		model.focus = FocusList
		model.resumePolling()
		return model, pending
	case "n", "esc", "q":
		model.confirm = nil
		model.focus = FocusList
		model.resumePolling()
		return model, nil
	}
	return model, nil
}

func (model Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEscape:
		model.filterInput = nil
		model.focus = model.priorFocus
		model.rebuildRows()
		model.clampCursor()
		return model, nil
	case tea.KeyEnter:
		model.focus = FocusList
		return model, nil
	case tea.KeyBackspace:
		if len(model.filterInput) > 0 {
			model.filterInput = model.filterInput[:len(model.filterInput)-1]
			model.rebuildRows()
			model.clampCursor()
		}
		return model, nil
	case tea.KeyRunes, tea.KeySpace:
		model.filterInput = append(model.filterInput, msg.Runes...)
		model.rebuildRows()
		model.cursor = 0
		model.scrollOffset = 0
		return model, nil
	}
	return model, nil
}

func (model Model) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, model.keys.Quit):
		return model, tea.Quit
	case key.Matches(msg, model.keys.Up):
		if model.historyCursor > 0 {
			model.historyCursor--
		}
	case key.Matches(msg, model.keys.Down):
		if model.historyCursor < len(model.history)-1 {
			model.historyCursor++
		}
	case key.Matches(msg, model.keys.FocusToggle), msg.Type == tea.KeyEscape:
		model.focus = FocusList
	case key.Matches(msg, model.keys.PickHere):
		item := model.selectedItem()
		if item == nil || model.mutator == nil ||
			model.historyCursor >= len(model.history) {
			return model, nil
		}
		record := model.history[model.historyCursor]
		version, _ := entity.Int(record["version_number"])
		return model.requestMutation(
			fmt.Sprintf("Update %s to v%03d?", item.NodeName, version),
			updateVersionCmd(model.mutator, item, record))
	}
	return model, nil
}

func (model Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, model.keys.Quit):
		return model, tea.Quit

	case key.Matches(msg, model.keys.Up):
		model.moveCursor(-1)
	case key.Matches(msg, model.keys.Down):
		model.moveCursor(1)
	case key.Matches(msg, model.keys.PageUp):
		model.moveCursor(-model.listHeight() / 2)
	case key.Matches(msg, model.keys.PageDown):
		model.moveCursor(model.listHeight() / 2)
	case key.Matches(msg, model.keys.Home):
		model.cursor = 0
		model.scrollOffset = 0
		model.noteSelection()
	case key.Matches(msg, model.keys.End):
		model.cursor = len(model.rows) - 1
		model.clampCursor()
		model.noteSelection()

	case key.Matches(msg, model.keys.Fold):
		if current := model.currentRow(); current != nil && current.kind == rowGroup {
			groupKey := model.groups[current.group].Key
			model.folded[groupKey] = !model.folded[groupKey]
			model.rebuildRows()
			model.clampCursor()
			return model, nil
		}
		if key.Matches(msg, model.keys.PickHere) {
			// Enter on an item opens its history.
			return model.openHistory()
		}

	case key.Matches(msg, model.keys.FocusToggle):
		if model.selectedItem() != nil {
			return model.openHistory()
		}

	case key.Matches(msg, model.keys.FilterActivate):
		model.priorFocus = model.focus
		model.focus = FocusFilter
		return model, nil
	case key.Matches(msg, model.keys.FilterClear):
		if len(model.filterInput) > 0 {
			model.filterInput = nil
			model.rebuildRows()
			model.clampCursor()
		}
		return model, nil

	case key.Matches(msg, model.keys.StatusCycle):
		model.statusFilter = model.statusFilter.Next()
		model.rebuildRows()
		model.cursor = 0
		model.scrollOffset = 0
		return model, nil

	case key.Matches(msg, model.keys.Refresh):
		if !model.scanning {
			model.scanning = true
			return model, scanCmd(model.source)
		}

	case key.Matches(msg, model.keys.ToggleLock):
		if item := model.selectedItem(); item != nil {
			item.Locked = !item.Locked
			model.groups = model.source.Group(model.items)
			model.rebuildRows()
			model.restoreSelection()
		}

	case key.Matches(msg, model.keys.UpdateItem):
		return model.updateSelection()
	case key.Matches(msg, model.keys.UpdateAll):
		return model.updateAllOutOfDate()
	}
	return model, nil
}

// openHistory moves focus to the detail pane, loading the selected
// item's history when it is not already loaded.
func (model Model) openHistory() (tea.Model, tea.Cmd) {
	item := model.selectedItem()
	if item == nil {
		return model, nil
	}
	model.focus = FocusHistory
	model.historyCursor = 0
	if model.historyFor == item.NodeName {
		return model, nil
	}
	model.history = nil
	return model, historyCmd(model.source, item)
}

// updateSelection updates the selected item, or every out-of-date item
// in the selected group when the cursor sits on a header.
func (model Model) updateSelection() (tea.Model, tea.Cmd) {
	if model.mutator == nil {
		model.notice = "read-only view"
		return model, nil
	}
	current := model.currentRow()
	if current == nil {
		return model, nil
	}
	if current.kind == rowGroup {
		group := model.groups[current.group]
		targets := outOfDateUnlocked(group.Items)
		if len(targets) == 0 {
			model.notice = "nothing to update in " + group.Label
			return model, nil
		}
		return model.requestMutation(
			fmt.Sprintf("Update %d files in %s?", len(targets), group.Label),
			updateLatestCmd(model.mutator, targets))
	}
	item := current.item
	if item.Status() != breakdown.StatusOutOfDate {
		model.notice = item.NodeName + " is not out of date"
		return model, nil
	}
	return model.requestMutation(
		fmt.Sprintf("Update %s to v%03d?", item.NodeName, item.HighestVersion()),
		updateLatestCmd(model.mutator, []*breakdown.FileItem{item}))
}

// updateAllOutOfDate updates every out-of-date, unlocked item.
func (model Model) updateAllOutOfDate() (tea.Model, tea.Cmd) {
	if model.mutator == nil {
		model.notice = "read-only view"
		return model, nil
	}
	targets := outOfDateUnlocked(model.items)
	if len(targets) == 0 {
		model.notice = "everything is up to date"
		return model, nil
	}
	return model.requestMutation(
		fmt.Sprintf("Update all %d out-of-date files?", len(targets)),
		updateLatestCmd(model.mutator, targets))
}

// requestMutation runs the command directly, or parks it behind the
// confirmation modal when interactive updates are configured. The
// modal pauses polling so a status change cannot repaint under it.
func (model Model) requestMutation(prompt string, pending tea.Cmd) (tea.Model, tea.Cmd) {
	if !model.interactiveUpdate {
		return model, pending
	}
	model.confirm = &confirmState{prompt: prompt, pending: pending}
	model.focus = FocusConfirm
	if p, ok := model.source.(pauser); ok {
		p.Pause()
	}
	return model, nil
}

func (model *Model) resumePolling() {
	if p, ok := model.source.(pauser); ok {
		p.Resume()
	}
}

// outOfDateUnlocked selects the items a bulk update touches. Locked
// items are pinned and stay behind.
func outOfDateUnlocked(items []*breakdown.FileItem) []*breakdown.FileItem {
	var targets []*breakdown.FileItem
	for _, item := range items {
		if !item.Locked && item.Status() == breakdown.StatusOutOfDate {
			targets = append(targets, item)
		}
	}
	return targets
}

// --- cursor and row bookkeeping ---

func (model *Model) rebuildRows() {
	model.rows = buildRows(model.groups, model.folded, model.statusFilter,
		filterPattern(string(model.filterInput)), model.slab)
}

func (model *Model) moveCursor(delta int) {
	model.cursor += delta
	model.clampCursor()
	model.noteSelection()
}

func (model *Model) clampCursor() {
	if model.cursor >= len(model.rows) {
		model.cursor = len(model.rows) - 1
	}
	if model.cursor < 0 {
		model.cursor = 0
	}
	height := model.listHeight()
	if model.cursor < model.scrollOffset {
		model.scrollOffset = model.cursor
	}
	if height > 0 && model.cursor >= model.scrollOffset+height {
		model.scrollOffset = model.cursor - height + 1
	}
}

// noteSelection records the selected item's key so a rebuild can put
// the cursor back on it.
func (model *Model) noteSelection() {
	if current := model.currentRow(); current != nil && current.kind == rowItem {
		model.selectedKey = current.item.NodeName
	}
}

func (model *Model) restoreSelection() {
	if model.selectedKey != "" {
		for index, r := range model.rows {
			if r.kind == rowItem && r.item.NodeName == model.selectedKey {
				model.cursor = index
				model.clampCursor()
				return
			}
		}
	}
	model.clampCursor()
}

func (model *Model) currentRow() *row {
	if model.cursor < 0 || model.cursor >= len(model.rows) {
		return nil
	}
	return &model.rows[model.cursor]
}

// selectedItem returns the file item under the cursor, or the first
// item of the selected group when the cursor sits on a header.
func (model *Model) selectedItem() *breakdown.FileItem {
	current := model.currentRow()
	if current == nil {
		return nil
	}
	if current.kind == rowItem {
		return current.item
	}
	group := model.groups[current.group]
	if len(group.Items) > 0 {
		return group.Items[0]
	}
	return nil
}

// --- view ---

// Layout constants: header line, status line, help line.
const chromeHeight = 3

func (model Model) listHeight() int {
	height := model.height - chromeHeight
	if height < 1 {
		height = 1
	}
	return height
}

func (model Model) listWidth() int {
	width := model.width / 2
	if width < 30 {
		width = model.width
	}
	return width
}

// View implements tea.Model.
func (model Model) View() string {
	if !model.ready {
		return "loading..."
	}

	listWidth := model.listWidth()
	detailWidth := model.width - listWidth - 3
	height := model.listHeight()

	listPane := model.renderList(listWidth, height)
	var body string
	if detailWidth >= 20 {
		detailPane := model.renderDetail(detailWidth, height)
		divider := model.renderDivider(height)
		body = lipgloss.JoinHorizontal(lipgloss.Top, listPane, divider, detailPane)
	} else {
		body = listPane
	}

	sections := []string{
		model.renderHeader(),
		body,
		model.renderStatusBar(),
	}
	view := strings.Join(sections, "\n")
	if model.confirm != nil {
		view += "\n" + model.renderConfirm()
	}
	return view
}

func (model Model) renderHeader() string {
	titleStyle := lipgloss.NewStyle().
		Foreground(model.theme.HeaderForeground).
		Bold(true)
	line := " " + titleStyle.Render(model.title)
	if model.scanning {
		line += lipgloss.NewStyle().
			Foreground(model.theme.FaintText).
			Render("  scanning…")
	}
	return lipgloss.NewStyle().Width(model.width).MaxWidth(model.width).Render(line)
}

func (model Model) renderList(width, height int) string {
	renderer := NewListRenderer(model.theme, width)
	var lines []string

	end := model.scrollOffset + height
	if end > len(model.rows) {
		end = len(model.rows)
	}
	for index := model.scrollOffset; index < end; index++ {
		r := model.rows[index]
		selected := index == model.cursor && model.focus != FocusHistory
		switch r.kind {
		case rowGroup:
			group := model.groups[r.group]
			lines = append(lines, renderer.RenderGroupHeader(group, r.visible, model.folded[group.Key], selected))
		case rowItem:
			lines = append(lines, renderer.RenderItem(r.item, selected, r.match.Positions))
		}
	}
	if len(model.rows) == 0 {
		empty := "no files in scene"
		if model.scanning {
			empty = "scanning scene…"
		} else if len(model.filterInput) > 0 || model.statusFilter != FilterAll {
			empty = "no matches"
		}
		lines = append(lines, lipgloss.NewStyle().
			Foreground(model.theme.FaintText).
			Render("  "+empty))
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return lipgloss.NewStyle().Width(width).Render(strings.Join(lines, "\n"))
}

func (model Model) renderDivider(height int) string {
	divider := lipgloss.NewStyle().Foreground(model.theme.BorderColor)
	column := make([]string, height)
	for index := range column {
		column[index] = divider.Render(" │ ")
	}
	return strings.Join(column, "\n")
}

func (model Model) renderDetail(width, height int) string {
	item := model.selectedItem()
	renderer := NewDetailRenderer(model.theme, width, model.ui, model.siteURL)

	var sections []string
	if header := renderer.RenderHeader(item); header != "" {
		sections = append(sections, header)
	}
	if item != nil && model.historyFor == item.NodeName && len(model.history) > 0 {
		historyTitle := lipgloss.NewStyle().
			Foreground(model.theme.FaintText).
			Render("History")
		sections = append(sections, historyTitle)
		current := item.Record.ID()
		for index, record := range model.history {
			selected := model.focus == FocusHistory && index == model.historyCursor
			sections = append(sections, renderer.RenderHistoryRow(item, record, selected, record.ID() == current))
		}
	}

	content := strings.Join(sections, "\n\n")
	lines := strings.Split(content, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	return lipgloss.NewStyle().Width(width).Render(strings.Join(lines, "\n"))
}

func (model Model) renderStatusBar() string {
	faint := lipgloss.NewStyle().Foreground(model.theme.FaintText)
	var parts []string

	if model.focus == FocusFilter || len(model.filterInput) > 0 {
		parts = append(parts, "/"+string(model.filterInput))
	}
	if model.statusFilter != FilterAll {
		parts = append(parts, "showing: "+model.statusFilter.Label())
	}
	if model.lastErr != nil {
		errStyle := lipgloss.NewStyle().Foreground(model.theme.StatusOutOfDate)
		parts = append(parts, errStyle.Render(model.lastErr.Error()))
	} else if model.notice != "" {
		parts = append(parts, model.notice)
	}

	help := "j/k move · tab details · u update · U update all · s status · / filter · q quit"
	if model.mutator == nil {
		help = "j/k move · tab details · s status · / filter · q quit"
	}
	left := " " + strings.Join(parts, "  ")
	return lipgloss.NewStyle().Width(model.width).MaxWidth(model.width).
		Render(left + "\n " + faint.Render(help))
}

func (model Model) renderConfirm() string {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(model.theme.BorderColor).
		Padding(0, 2)
	prompt := model.confirm.prompt + "  [y/n]"
	return style.Render(prompt)
}

// Run drives the panel to completion. altScreen selects the dedicated
// panel mode; inline mode leaves the scrollback intact for embedding
// in a DCC-side terminal.
func Run(ctx context.Context, model Model, altScreen bool) error {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if altScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	program := tea.NewProgram(model, opts...)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("panel: %w", err)
	}
	return nil
}
