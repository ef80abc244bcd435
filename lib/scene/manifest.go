// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package scene

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
	"github.com/zeebo/blake3"
)

// Manifest is the on-disk scene description the built-in scanner
// operates on.
type Manifest struct {
	Scene      string   `json:"scene,omitempty"`
	References []Object `json:"references"`
}

// ParseManifest strips JSONC comments and trailing commas from data,
// unmarshals the result, and validates it: every reference needs a
// node name and a path, and node names must be unique.
func ParseManifest(data []byte) (*Manifest, error) {
	stripped := jsonc.ToJSON(data)

	var manifest Manifest
	if err := json.Unmarshal(stripped, &manifest); err != nil {
		return nil, fmt.Errorf("scene: parsing manifest: %w", err)
	}

	seen := make(map[string]bool, len(manifest.References))
	for i, reference := range manifest.References {
		if reference.NodeName == "" {
			return nil, fmt.Errorf("scene: reference %d: node_name is required", i)
		}
		if reference.Path == "" {
			return nil, fmt.Errorf("scene: reference %q: path is required", reference.NodeName)
		}
		if seen[reference.NodeName] {
			return nil, fmt.Errorf("scene: duplicate node name %q", reference.NodeName)
		}
		seen[reference.NodeName] = true
	}
	return &manifest, nil
}

// ReadManifest reads and parses a scene manifest from disk. A missing
// file surfaces as an error wrapping os.ErrNotExist.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scene: reading manifest: %w", err)
	}
	manifest, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return manifest, nil
}

// SetReferencePath repoints the named reference at a new file. Returns
// false when the manifest has no reference with that node name.
func (m *Manifest) SetReferencePath(nodeName, path string) bool {
	for i := range m.References {
		if m.References[i].NodeName == nodeName {
			m.References[i].Path = path
			return true
		}
	}
	return false
}

// WriteManifest atomically replaces the manifest at path: the content
// is written to a temporary file, synced, and renamed into place, so a
// concurrent reader sees either the old manifest or the new one.
// Updates rewrite the manifest as plain JSON; comments in a
// hand-authored file do not survive a write.
func WriteManifest(path string, manifest *Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("scene: marshaling manifest: %w", err)
	}
	data = append(data, '\n')

	temporaryPath := path + ".tmp"

	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("scene: creating temporary manifest: %w", err)
	}

	// Write, sync, close, in that order. If any step fails, remove the
	// temporary file and report the first error.
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("scene: writing temporary manifest: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("scene: syncing temporary manifest: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("scene: closing temporary manifest: %w", err)
	}

	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("scene: renaming manifest into place: %w", err)
	}

	// Sync the parent directory so the rename survives power loss
	// between the rename and the OS flushing directory metadata.
	parentDirectory, err := os.Open(filepath.Dir(path))
	if err == nil {
		parentDirectory.Sync()
		parentDirectory.Close()
	}

	return nil
}

// Fingerprint hashes manifest bytes. Scan snapshots record it so a
// later run can tell whether cached results still describe the scene
// on disk.
func Fingerprint(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FingerprintFile hashes the manifest at path.
func FingerprintFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("scene: reading manifest: %w", err)
	}
	return Fingerprint(data), nil
}
