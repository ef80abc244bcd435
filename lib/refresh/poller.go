// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

// Package refresh keeps breakdown results current: a clock-driven
// poller re-queries the latest published file for the items on screen,
// and scene-change notifications are forwarded into the same event
// stream, so consumers watch one channel for both kinds of staleness.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pipeline-foundation/breakdown/lib/breakdown"
	"github.com/pipeline-foundation/breakdown/lib/clock"
	"github.com/pipeline-foundation/breakdown/lib/entity"
	"github.com/pipeline-foundation/breakdown/lib/hook"
	"github.com/pipeline-foundation/breakdown/lib/scene"
)

// Kind says what an event reports.
type Kind int

const (
	// KindLatest reports a change in the newest known version of one
	// item's published file.
	KindLatest Kind = iota

	// KindSceneChange reports that the scene itself changed and a
	// re-scan is warranted.
	KindSceneChange
)

// Event is one staleness notification.
type Event struct {
	Kind Kind

	// ItemKey is the node name of the affected item. Set for
	// KindLatest.
	ItemKey string

	// Latest is the item's newest published file, nil when no version
	// matches the configured filters anymore. Set for KindLatest.
	Latest entity.Record
}

// Options configures a Poller.
type Options struct {
	// Manager answers the latest-version queries.
	Manager *breakdown.Manager

	// Interval between polls. Zero or negative disables polling; Run
	// returns immediately and only scene-change forwarding remains.
	Interval time.Duration

	// Clock defaults to the system clock.
	Clock clock.Clock

	Logger *slog.Logger
}

// Poller re-queries the latest published file for a set of items on a
// fixed interval and emits an Event whenever an answer changes. Items
// resolved to the same version chain share one query per tick.
//
// The event channel is never closed; consumers stop reading when
// their context ends.
type Poller struct {
	manager  *breakdown.Manager
	interval time.Duration
	clk      clock.Clock
	logger   *slog.Logger
	events   chan Event

	mu       sync.Mutex
	paused   bool
	items    []polledItem
	lastSeen map[string]string
}

// polledItem is the slice of a FileItem the poller needs: which event
// key to emit under, and the record whose chain to re-query.
type polledItem struct {
	key      string
	chainKey string
	record   entity.Record
}

// NewPoller validates opts and builds a Poller.
func NewPoller(opts Options) (*Poller, error) {
	if opts.Manager == nil {
		return nil, fmt.Errorf("refresh: Options.Manager is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Poller{
		manager:  opts.Manager,
		interval: opts.Interval,
		clk:      opts.Clock,
		logger:   opts.Logger,
		events:   make(chan Event, 16),
		lastSeen: make(map[string]string),
	}, nil
}

// Events is the stream Run and WatchScene emit into.
func (poller *Poller) Events() <-chan Event { return poller.events }

// SetItems replaces the polled set. Items the scan could not resolve
// are ignored; they have no chain to re-query. Answers already known
// for surviving chains carry over, so replacing the set does not
// re-announce them.
func (poller *Poller) SetItems(items []*breakdown.FileItem) {
	poller.mu.Lock()
	defer poller.mu.Unlock()

	seen := make(map[string]string, len(items))
	polled := make([]polledItem, 0, len(items))
	for _, item := range items {
		if item.Record == nil {
			continue
		}
		chain := hook.ChainKey(item.Record)
		polled = append(polled, polledItem{key: item.NodeName, chainKey: chain, record: item.Record})
		if previous, known := poller.lastSeen[chain]; known {
			seen[chain] = previous
		} else if len(item.Latest) > 0 {
			seen[chain] = fingerprint(item.Latest)
		}
	}
	poller.items = polled
	poller.lastSeen = seen
}

// Pause makes ticks no-ops until Resume. The ticker keeps running, so
// a resume does not reset the interval phase.
func (poller *Poller) Pause() {
	poller.mu.Lock()
	defer poller.mu.Unlock()
	poller.paused = true
}

// Resume undoes Pause.
func (poller *Poller) Resume() {
	poller.mu.Lock()
	defer poller.mu.Unlock()
	poller.paused = false
}

// Run polls until ctx ends. Polls run one at a time on this
// goroutine; a poll that outlasts the interval delays the next tick
// rather than overlapping it.
func (poller *Poller) Run(ctx context.Context) error {
	if poller.interval <= 0 {
		poller.logger.Debug("status polling disabled")
		return nil
	}
	ticker := poller.clk.NewTicker(poller.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if poller.isPaused() {
			continue
		}
		poller.poll(ctx)
	}
}

// WatchScene forwards scene-change notifications into the event
// stream until ctx ends or the notifier stops. Run it alongside Run.
func (poller *Poller) WatchScene(ctx context.Context, notifier scene.ChangeNotifier) error {
	changes, stop, err := notifier.WatchChanges()
	if err != nil {
		return fmt.Errorf("refresh: watching scene: %w", err)
	}
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, open := <-changes:
			if !open {
				return nil
			}
		}
		select {
		case poller.events <- Event{Kind: KindSceneChange}:
		case <-ctx.Done():
			return nil
		}
	}
}

func (poller *Poller) isPaused() bool {
	poller.mu.Lock()
	defer poller.mu.Unlock()
	return poller.paused
}

// poll re-queries one representative record per chain, then fans any
// changed answers out to every item in the chain.
func (poller *Poller) poll(ctx context.Context) {
	poller.mu.Lock()
	items := poller.items
	poller.mu.Unlock()

	latestByChain := make(map[string]entity.Record)
	failed := make(map[string]bool)
	for _, item := range items {
		if _, queried := latestByChain[item.chainKey]; queried || failed[item.chainKey] {
			continue
		}
		probe := breakdown.FileItem{NodeName: item.key, Record: item.record}
		latest, err := poller.manager.LatestPublishedFile(ctx, &probe)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			poller.logger.Warn("status poll failed", "node", item.key, "error", err)
			failed[item.chainKey] = true
			continue
		}
		latestByChain[item.chainKey] = latest
	}

	changed := make(map[string]entity.Record)
	poller.mu.Lock()
	for chain, latest := range latestByChain {
		print := fingerprint(latest)
		if previous, known := poller.lastSeen[chain]; known && previous == print {
			continue
		}
		poller.lastSeen[chain] = print
		changed[chain] = latest
	}
	poller.mu.Unlock()

	for _, item := range items {
		latest, ok := changed[item.chainKey]
		if !ok {
			continue
		}
		select {
		case poller.events <- Event{Kind: KindLatest, ItemKey: item.key, Latest: latest}:
		case <-ctx.Done():
			return
		}
	}
}

// fingerprint reduces a latest answer to a comparable token. Nil, no
// version matching anymore, is a real answer and gets its own token.
func fingerprint(record entity.Record) string {
	if len(record) == 0 {
		return "none"
	}
	version, _ := entity.Int(record["version_number"])
	return fmt.Sprintf("%d@%d", record.ID(), version)
}
