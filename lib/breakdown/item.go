// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package breakdown

import (
	"github.com/pipeline-foundation/breakdown/lib/entity"
	"github.com/pipeline-foundation/breakdown/lib/scene"
)

// FileItem is one scanned scene reference joined with what the
// tracking service knows about it.
type FileItem struct {
	// NodeName, NodeType, Path and Extra come straight from the scene
	// scan.
	NodeName string
	NodeType string
	Path     string
	Extra    map[string]any

	// Record is the published file the scanned path resolved to, nil
	// when the path is not published.
	Record entity.Record

	// Latest is the newest version of the same logical file. It stays
	// nil until [Manager.LatestPublishedFile] or [Manager.FileHistory]
	// resolves it.
	Latest entity.Record

	// Locked pins the item to its current version. Bulk updates still
	// include locked items; pinning is enforced by whoever selects the
	// items to update.
	Locked bool
}

// CurrentVersion returns the version number of the record loaded in
// the scene, 0 while unknown.
func (item *FileItem) CurrentVersion() int64 {
	version, _ := entity.Int(item.Record["version_number"])
	return version
}

// HighestVersion returns the newest known version number, 0 until the
// latest published file has been resolved.
func (item *FileItem) HighestVersion() int64 {
	version, _ := entity.Int(item.Latest["version_number"])
	return version
}

// Status reports where the item stands relative to the newest known
// version of its published file.
func (item *FileItem) Status() Status {
	if len(item.Latest) == 0 {
		return StatusNone
	}
	if item.Locked {
		return StatusLocked
	}
	if item.CurrentVersion() < item.HighestVersion() {
		return StatusOutOfDate
	}
	return StatusUpToDate
}

// ToUpdateRequest builds the scene update that repoints the item at
// record. The second result is false when the record carries no
// local path, in which case the item cannot be updated and callers
// skip it.
func (item *FileItem) ToUpdateRequest(record entity.Record) (scene.UpdateRequest, bool) {
	localPath := entity.LocalPath(record["path"])
	if localPath == "" {
		return scene.UpdateRequest{}, false
	}
	return scene.UpdateRequest{
		Object: scene.Object{
			NodeName: item.NodeName,
			NodeType: item.NodeType,
			Path:     item.Path,
			Extra:    item.Extra,
		},
		Path:   localPath,
		Record: record,
	}, true
}
