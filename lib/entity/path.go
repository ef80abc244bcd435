// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package entity

import "runtime"

// LocalPath extracts the local filesystem path from a published file's
// "path" field. The service sends that field as a nested record whose
// "local_path" is pre-resolved for the requesting platform, with
// per-platform variants alongside; some pipelines store a bare string
// instead. Returns "" when no local path is present.
func LocalPath(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case Record, map[string]any:
		r, _ := asRecord(t)
		if s, ok := r["local_path"].(string); ok && s != "" {
			return s
		}
		if s, ok := r[platformPathField].(string); ok && s != "" {
			return s
		}
		return ""
	default:
		return ""
	}
}

var platformPathField = map[string]string{
	"linux":   "local_path_linux",
	"darwin":  "local_path_mac",
	"windows": "local_path_windows",
}[runtime.GOOS]
