// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package scene

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testManifest = `{
  // lighting scene for shot 010_0040
  "scene": "shots/010_0040/lighting",
  "references": [
    {"node_name": "bg_geo", "node_type": "reference", "path": "/proj/pub/bg/bg_geo.v003.abc"},
    {
      "node_name": "char_anim",
      "node_type": "cache",
      "path": "/proj/pub/anim/char.v012.abc",
      "extra": {"namespace": "char01"},
    },
  ],
}
`

func TestParseManifest(t *testing.T) {
	manifest, err := ParseManifest([]byte(testManifest))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if manifest.Scene != "shots/010_0040/lighting" {
		t.Errorf("scene = %q", manifest.Scene)
	}
	if len(manifest.References) != 2 {
		t.Fatalf("expected 2 references, got %d", len(manifest.References))
	}

	first := manifest.References[0]
	if first.NodeName != "bg_geo" || first.NodeType != "reference" {
		t.Errorf("first reference = %+v", first)
	}
	if first.Path != "/proj/pub/bg/bg_geo.v003.abc" {
		t.Errorf("first path = %q", first.Path)
	}

	second := manifest.References[1]
	if second.Extra["namespace"] != "char01" {
		t.Errorf("extra data not preserved: %+v", second.Extra)
	}
}

func TestParseManifest_Validation(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name:    "not JSON",
			input:   `references: [bg_geo]`,
			wantErr: "parsing manifest",
		},
		{
			name:    "missing node name",
			input:   `{"references": [{"path": "/proj/a.abc"}]}`,
			wantErr: "node_name is required",
		},
		{
			name:    "missing path",
			input:   `{"references": [{"node_name": "bg_geo"}]}`,
			wantErr: `reference "bg_geo": path is required`,
		},
		{
			name: "duplicate node name",
			input: `{"references": [
				{"node_name": "bg_geo", "path": "/proj/a.abc"},
				{"node_name": "bg_geo", "path": "/proj/b.abc"}
			]}`,
			wantErr: `duplicate node name "bg_geo"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestManifestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shot.scene.jsonc")

	original, err := ParseManifest([]byte(testManifest))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if err := WriteManifest(path, original); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}

	loaded, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if loaded.Scene != original.Scene {
		t.Errorf("scene = %q, want %q", loaded.Scene, original.Scene)
	}
	if len(loaded.References) != len(original.References) {
		t.Fatalf("reference count = %d, want %d", len(loaded.References), len(original.References))
	}
	for i := range loaded.References {
		if loaded.References[i].NodeName != original.References[i].NodeName {
			t.Errorf("reference %d node = %q, want %q", i,
				loaded.References[i].NodeName, original.References[i].NodeName)
		}
	}

	// The atomic write must not leave its temporary file behind.
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temporary file left behind: %v", err)
	}
}

func TestReadManifest_Missing(t *testing.T) {
	_, err := ReadManifest("/nonexistent/shot.scene.jsonc")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got: %v", err)
	}
}

func TestSetReferencePath(t *testing.T) {
	manifest, err := ParseManifest([]byte(testManifest))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}

	if !manifest.SetReferencePath("bg_geo", "/proj/pub/bg/bg_geo.v004.abc") {
		t.Fatal("SetReferencePath returned false for existing node")
	}
	if got := manifest.References[0].Path; got != "/proj/pub/bg/bg_geo.v004.abc" {
		t.Errorf("path after update = %q", got)
	}

	if manifest.SetReferencePath("no_such_node", "/proj/x.abc") {
		t.Error("SetReferencePath returned true for missing node")
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte(testManifest))
	b := Fingerprint([]byte(testManifest))
	if a != b {
		t.Error("fingerprint not stable across identical content")
	}
	if c := Fingerprint([]byte(testManifest + " ")); c == a {
		t.Error("fingerprint did not change with content")
	}

	if _, err := FingerprintFile("/nonexistent/shot.scene.jsonc"); err == nil {
		t.Error("expected error for missing file")
	}
}
