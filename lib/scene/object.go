// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package scene

import (
	"github.com/pipeline-foundation/breakdown/lib/entity"
)

// Object is one file reference in the work scene, as reported by a
// scan. NodeName identifies the referencing node and must be unique
// within a scan; Path is the file the node currently loads. Extra
// carries engine-specific data the scan hook wants echoed back to it
// on update.
type Object struct {
	NodeName string         `json:"node_name"`
	NodeType string         `json:"node_type,omitempty"`
	Path     string         `json:"path"`
	Extra    map[string]any `json:"extra,omitempty"`
}

// UpdateRequest asks the scene to repoint one reference at a new file.
// Object is the reference as scanned, Path the file to load instead,
// Record the published file backing the new path.
type UpdateRequest struct {
	Object Object
	Path   string
	Record entity.Record
}
