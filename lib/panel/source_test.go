// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package panel

import (
	"context"
	"testing"
	"time"

	"github.com/pipeline-foundation/breakdown/lib/breakdown"
	"github.com/pipeline-foundation/breakdown/lib/snapshot"
)

// LiveSource mutates; SnapshotSource must not.
var (
	_ Source  = (*LiveSource)(nil)
	_ Mutator = (*LiveSource)(nil)
	_ Source  = (*SnapshotSource)(nil)
)

func TestSnapshotSourceIsReadOnly(t *testing.T) {
	var source Source = NewSnapshotSource(&snapshot.Snapshot{}, "")
	if _, ok := source.(Mutator); ok {
		t.Fatal("SnapshotSource must not implement Mutator")
	}
}

func TestSnapshotSourceScan(t *testing.T) {
	items := []*breakdown.FileItem{
		testItem("shot010_anim", 3, 5),
		testItem("shot010_layout", 2, 2),
	}
	snap := snapshot.Capture("/prod/scene.jsonc", "abc", items, time.Unix(1700000000, 0))
	source := NewSnapshotSource(snap, "project")

	got, err := source.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Scan returned %d items, want 2", len(got))
	}
	if got[0].Status() != breakdown.StatusOutOfDate {
		t.Errorf("replayed item status = %v, want out of date", got[0].Status())
	}

	groups := source.Group(got)
	if len(groups) != 1 || groups[0].Label != "Iris" {
		t.Errorf("groups = %+v, want one Iris group", groups)
	}

	if source.Events() != nil {
		t.Error("snapshot source should have no event stream")
	}
	history, err := source.History(context.Background(), got[0])
	if err != nil || history != nil {
		t.Errorf("snapshot history = %v, %v; want nil, nil", history, err)
	}
}

func TestSnapshotSourceNilSnapshot(t *testing.T) {
	source := NewSnapshotSource(nil, "")
	if _, err := source.Scan(context.Background()); err == nil {
		t.Fatal("expected an error scanning a nil snapshot")
	}
}
