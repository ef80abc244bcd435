// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package panel

import (
	"context"
	"fmt"

	"github.com/pipeline-foundation/breakdown/lib/breakdown"
	"github.com/pipeline-foundation/breakdown/lib/entity"
	"github.com/pipeline-foundation/breakdown/lib/refresh"
	"github.com/pipeline-foundation/breakdown/lib/snapshot"
)

// Source abstracts breakdown data access for the panel. The live
// implementation talks to the scene backend and the tracking service;
// the snapshot implementation replays a stored scan. The model is
// identical regardless of backend.
type Source interface {
	// Scan produces the current file items with their latest versions
	// resolved, ready for display.
	Scan(ctx context.Context) ([]*breakdown.FileItem, error)

	// Group buckets items by the configured grouping field.
	Group(items []*breakdown.FileItem) []breakdown.Group

	// History returns the item's version history, newest first. A
	// backend with no history access returns nil without error.
	History(ctx context.Context, item *breakdown.FileItem) ([]entity.Record, error)

	// Events is the staleness stream, nil when the backend cannot
	// report changes.
	Events() <-chan refresh.Event
}

// Mutator is the optional half of a Source that can change the scene.
// The model checks for it via type assertion; without it the update
// keys are disabled and the session is read-only.
//
// LiveSource implements this interface; SnapshotSource does not.
type Mutator interface {
	// UpdateToLatest repoints every updatable item at its newest
	// version, returning the items actually changed.
	UpdateToLatest(ctx context.Context, items []*breakdown.FileItem) ([]*breakdown.FileItem, error)

	// UpdateToVersion repoints one item at one specific published
	// file, reporting whether the scene changed.
	UpdateToVersion(ctx context.Context, item *breakdown.FileItem, record entity.Record) (bool, error)
}

// LiveSource serves the panel from a breakdown manager, keeping the
// refresh poller's item set in step with each scan.
type LiveSource struct {
	manager *breakdown.Manager
	poller  *refresh.Poller
}

// NewLiveSource wraps manager for panel use. poller may be nil when
// auto-refresh is off.
func NewLiveSource(manager *breakdown.Manager, poller *refresh.Poller) *LiveSource {
	return &LiveSource{manager: manager, poller: poller}
}

// Scan scans the scene, resolves the latest version for every
// published item, and hands the result to the poller.
func (source *LiveSource) Scan(ctx context.Context) ([]*breakdown.FileItem, error) {
	items, err := source.manager.ScanScene(ctx, nil)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.Record == nil {
			continue
		}
		if _, err := source.manager.LatestPublishedFile(ctx, item); err != nil {
			return nil, err
		}
	}
	if source.poller != nil {
		source.poller.SetItems(items)
	}
	return items, nil
}

// Group buckets items by the manager's configured grouping field.
func (source *LiveSource) Group(items []*breakdown.FileItem) []breakdown.Group {
	return source.manager.GroupItems(items)
}

// History returns the item's version history, newest first.
func (source *LiveSource) History(ctx context.Context, item *breakdown.FileItem) ([]entity.Record, error) {
	return source.manager.FileHistory(ctx, item)
}

// Events is the poller's event stream, nil when polling is off.
func (source *LiveSource) Events() <-chan refresh.Event {
	if source.poller == nil {
		return nil
	}
	return source.poller.Events()
}

// Pause suspends status polling, typically while a modal holds the
// screen. No-op without a poller.
func (source *LiveSource) Pause() {
	if source.poller != nil {
		source.poller.Pause()
	}
}

// Resume undoes Pause.
func (source *LiveSource) Resume() {
	if source.poller != nil {
		source.poller.Resume()
	}
}

// UpdateToLatest implements [Mutator].
func (source *LiveSource) UpdateToLatest(ctx context.Context, items []*breakdown.FileItem) ([]*breakdown.FileItem, error) {
	return source.manager.UpdateToLatest(ctx, items)
}

// UpdateToVersion implements [Mutator].
func (source *LiveSource) UpdateToVersion(ctx context.Context, item *breakdown.FileItem, record entity.Record) (bool, error) {
	return source.manager.UpdateToVersion(ctx, item, record)
}

// SnapshotSource replays a stored scan. It never contacts the scene or
// the tracking service, has no history beyond what the capture stored,
// and offers no mutations.
type SnapshotSource struct {
	snap    *snapshot.Snapshot
	groupBy string
}

// NewSnapshotSource wraps a loaded snapshot. groupBy defaults to
// "project" when empty.
func NewSnapshotSource(snap *snapshot.Snapshot, groupBy string) *SnapshotSource {
	if groupBy == "" {
		groupBy = "project"
	}
	return &SnapshotSource{snap: snap, groupBy: groupBy}
}

// Scan rebuilds the captured items. The context is unused; nothing
// blocks.
func (source *SnapshotSource) Scan(ctx context.Context) ([]*breakdown.FileItem, error) {
	if source.snap == nil {
		return nil, fmt.Errorf("panel: no snapshot loaded")
	}
	return source.snap.FileItems(), nil
}

// Group buckets items by the configured grouping field.
func (source *SnapshotSource) Group(items []*breakdown.FileItem) []breakdown.Group {
	return breakdown.GroupBy(items, source.groupBy)
}

// History reports nothing: the capture stores only the current and
// latest records.
func (source *SnapshotSource) History(ctx context.Context, item *breakdown.FileItem) ([]entity.Record, error) {
	return nil, nil
}

// Events returns nil; snapshots do not change.
func (source *SnapshotSource) Events() <-chan refresh.Event { return nil }
