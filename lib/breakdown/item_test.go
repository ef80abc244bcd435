// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package breakdown_test

import (
	"testing"

	"github.com/pipeline-foundation/breakdown/lib/breakdown"
	"github.com/pipeline-foundation/breakdown/lib/entity"
)

// published builds a minimal published-file record at one version.
func published(id, version int64, localPath string) entity.Record {
	record := entity.Record{
		"type":           "PublishedFile",
		"id":             id,
		"name":           "bg_geo",
		"version_number": version,
	}
	if localPath != "" {
		record["path"] = map[string]any{"local_path": localPath}
	}
	return record
}

func TestFileItemVersions(t *testing.T) {
	item := &breakdown.FileItem{}
	if got := item.CurrentVersion(); got != 0 {
		t.Fatalf("CurrentVersion of unresolved item = %d", got)
	}
	if got := item.HighestVersion(); got != 0 {
		t.Fatalf("HighestVersion of unresolved item = %d", got)
	}

	item.Record = published(1, 4, "")
	item.Latest = published(9, 12, "")
	if got := item.CurrentVersion(); got != 4 {
		t.Fatalf("CurrentVersion = %d, want 4", got)
	}
	if got := item.HighestVersion(); got != 12 {
		t.Fatalf("HighestVersion = %d, want 12", got)
	}
}

func TestFileItemStatus(t *testing.T) {
	tests := []struct {
		name   string
		record entity.Record
		latest entity.Record
		locked bool
		want   breakdown.Status
	}{
		{
			name:   "no latest resolved",
			record: published(1, 1, ""),
			want:   breakdown.StatusNone,
		},
		{
			name:   "current",
			record: published(3, 3, ""),
			latest: published(3, 3, ""),
			want:   breakdown.StatusUpToDate,
		},
		{
			name:   "newer version exists",
			record: published(1, 1, ""),
			latest: published(3, 3, ""),
			want:   breakdown.StatusOutOfDate,
		},
		{
			name:   "pinned",
			record: published(1, 1, ""),
			latest: published(3, 3, ""),
			locked: true,
			want:   breakdown.StatusLocked,
		},
		{
			name:   "pinned but unresolved",
			record: published(1, 1, ""),
			locked: true,
			want:   breakdown.StatusNone,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			item := &breakdown.FileItem{
				Record: test.record,
				Latest: test.latest,
				Locked: test.locked,
			}
			if got := item.Status(); got != test.want {
				t.Fatalf("Status = %v, want %v", got, test.want)
			}
		})
	}
}

func TestToUpdateRequest(t *testing.T) {
	item := &breakdown.FileItem{
		NodeName: "bg_geo",
		NodeType: "reference",
		Path:     "/proj/pub/bg_geo.v001.abc",
		Extra:    map[string]any{"namespace": "bg"},
	}

	record := published(3, 3, "/proj/pub/bg_geo.v003.abc")
	request, ok := item.ToUpdateRequest(record)
	if !ok {
		t.Fatal("ToUpdateRequest = false for record with a local path")
	}
	if request.Path != "/proj/pub/bg_geo.v003.abc" {
		t.Fatalf("request.Path = %q", request.Path)
	}
	if request.Object.NodeName != "bg_geo" || request.Object.Path != "/proj/pub/bg_geo.v001.abc" {
		t.Fatalf("request.Object = %+v", request.Object)
	}
	if request.Object.Extra["namespace"] != "bg" {
		t.Fatalf("request.Object.Extra = %v", request.Object.Extra)
	}
	if request.Record.ID() != 3 {
		t.Fatalf("request.Record id = %d", request.Record.ID())
	}

	if _, ok := item.ToUpdateRequest(published(3, 3, "")); ok {
		t.Fatal("ToUpdateRequest = true for record without a path")
	}
	noLocal := published(3, 3, "")
	noLocal["path"] = map[string]any{"url": "https://example.test/bg_geo"}
	if _, ok := item.ToUpdateRequest(noLocal); ok {
		t.Fatal("ToUpdateRequest = true for path without local_path")
	}
}
