// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

// Package snapshot persists scan results so a later run can render
// breakdown state without opening the scene or contacting the
// tracking service.
//
// A snapshot freezes the items of one scan: per scene reference the
// node identity, the published file its path resolved to, the latest
// version known at capture time, and the status verdict. The scene
// manifest's content fingerprint is recorded alongside, so a reader
// can tell whether the scene changed since the capture and mark the
// snapshot stale.
//
// On disk a snapshot is the CBOR encoding of [Snapshot], compressed
// with the configured codec behind a small tagged header. See
// [Write] and [Load].
package snapshot

import (
	"fmt"
	"time"

	"github.com/pipeline-foundation/breakdown/lib/breakdown"
	"github.com/pipeline-foundation/breakdown/lib/entity"
	"github.com/pipeline-foundation/breakdown/lib/scene"
)

// Snapshot is the persisted result of one scene scan.
type Snapshot struct {
	// ScenePath is the manifest the scan ran against.
	ScenePath string `cbor:"scene_path"`

	// Fingerprint is the manifest content hash at capture time.
	Fingerprint string `cbor:"fingerprint"`

	// TakenAt is the capture time as Unix seconds.
	TakenAt int64 `cbor:"taken_at"`

	// Items holds one entry per scene reference, in scan order.
	Items []Item `cbor:"items"`
}

// Item is one scene reference and everything resolved for it.
type Item struct {
	NodeName string         `cbor:"node_name"`
	NodeType string         `cbor:"node_type,omitempty"`
	Path     string         `cbor:"path"`
	Extra    map[string]any `cbor:"extra,omitempty"`

	// Record is the published file the path resolved to, nil when
	// the reference is unpublished.
	Record entity.Record `cbor:"record,omitempty"`

	// Latest is the newest version known at capture time.
	Latest entity.Record `cbor:"latest,omitempty"`

	// Status is the verdict at capture time, as rendered by
	// [breakdown.Status.String].
	Status string `cbor:"status"`

	Locked bool `cbor:"locked,omitempty"`
}

// Capture freezes items as a snapshot of the scene at scenePath whose
// manifest content hashes to fingerprint.
func Capture(scenePath, fingerprint string, items []*breakdown.FileItem, takenAt time.Time) *Snapshot {
	snap := &Snapshot{
		ScenePath:   scenePath,
		Fingerprint: fingerprint,
		TakenAt:     takenAt.Unix(),
		Items:       make([]Item, 0, len(items)),
	}
	for _, item := range items {
		snap.Items = append(snap.Items, Item{
			NodeName: item.NodeName,
			NodeType: item.NodeType,
			Path:     item.Path,
			Extra:    item.Extra,
			Record:   item.Record,
			Latest:   item.Latest,
			Status:   item.Status().String(),
			Locked:   item.Locked,
		})
	}
	return snap
}

// Taken returns the capture time.
func (s *Snapshot) Taken() time.Time {
	return time.Unix(s.TakenAt, 0)
}

// FileItems rebuilds breakdown items from the stored state. Status is
// derived from the stored records rather than read back from the
// stored verdict, so the two agree unless the file was edited by hand.
func (s *Snapshot) FileItems() []*breakdown.FileItem {
	items := make([]*breakdown.FileItem, 0, len(s.Items))
	for _, stored := range s.Items {
		items = append(items, &breakdown.FileItem{
			NodeName: stored.NodeName,
			NodeType: stored.NodeType,
			Path:     stored.Path,
			Extra:    stored.Extra,
			Record:   stored.Record,
			Latest:   stored.Latest,
			Locked:   stored.Locked,
		})
	}
	return items
}

// Stale reports whether the scene manifest changed since the capture.
// The check reads the manifest from disk; the tracking service is
// never contacted.
func (s *Snapshot) Stale() (bool, error) {
	current, err := scene.FingerprintFile(s.ScenePath)
	if err != nil {
		return false, fmt.Errorf("snapshot: checking freshness: %w", err)
	}
	return current != s.Fingerprint, nil
}
