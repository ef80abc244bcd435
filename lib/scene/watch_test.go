// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package scene

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pipeline-foundation/breakdown/lib/testutil"
)

func writeTestManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shot.scene.jsonc")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestWatchManifest_DetectsAtomicReplace(t *testing.T) {
	path := writeTestManifest(t, testManifest)

	events, cleanup, err := WatchManifest(path)
	if err != nil {
		t.Fatalf("WatchManifest: %v", err)
	}
	defer cleanup()

	updated, err := ParseManifest([]byte(testManifest))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	updated.SetReferencePath("bg_geo", "/proj/pub/bg/bg_geo.v004.abc")
	if err := WriteManifest(path, updated); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}

	// The watcher has a 50ms debounce plus poll interval, and the
	// timeout covers genuine OS I/O: real inotify events from real
	// filesystem writes, which no fake clock can drive.
	manifest := testutil.RequireReceive(t, events, 2*time.Second, "waiting for manifest event")
	if got := manifest.References[0].Path; got != "/proj/pub/bg/bg_geo.v004.abc" {
		t.Errorf("delivered path = %q, want the updated one", got)
	}
}

func TestWatchManifest_DetectsInPlaceWrite(t *testing.T) {
	path := writeTestManifest(t, testManifest)

	events, cleanup, err := WatchManifest(path)
	if err != nil {
		t.Fatalf("WatchManifest: %v", err)
	}
	defer cleanup()

	rewritten := `{"scene": "shots/010_0040/lighting", "references": [
		{"node_name": "bg_geo", "path": "/proj/pub/bg/bg_geo.v005.abc"}
	]}`
	if err := os.WriteFile(path, []byte(rewritten), 0o644); err != nil {
		t.Fatalf("rewrite manifest: %v", err)
	}

	manifest := testutil.RequireReceive(t, events, 2*time.Second, "waiting for manifest event")
	if len(manifest.References) != 1 {
		t.Fatalf("expected 1 reference, got %d", len(manifest.References))
	}
	if got := manifest.References[0].Path; got != "/proj/pub/bg/bg_geo.v005.abc" {
		t.Errorf("delivered path = %q", got)
	}
}

func TestWatchManifest_IgnoresIdenticalRewrite(t *testing.T) {
	path := writeTestManifest(t, testManifest)

	events, cleanup, err := WatchManifest(path)
	if err != nil {
		t.Fatalf("WatchManifest: %v", err)
	}
	defer cleanup()

	// Same bytes, new inode. The fingerprint dedupe must swallow it.
	if err := os.WriteFile(path, []byte(testManifest), 0o644); err != nil {
		t.Fatalf("rewrite manifest: %v", err)
	}

	testutil.RequireNoReceive(t, events, 400*time.Millisecond, "identical rewrite must not deliver")
}

func TestWatchManifest_CleanupClosesChannel(t *testing.T) {
	path := writeTestManifest(t, testManifest)

	events, cleanup, err := WatchManifest(path)
	if err != nil {
		t.Fatalf("WatchManifest: %v", err)
	}

	cleanup()
	cleanup() // second call is a no-op

	select {
	case _, open := <-events:
		if open {
			t.Error("expected channel close, got a manifest")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestWatchManifest_MissingFile(t *testing.T) {
	_, _, err := WatchManifest(filepath.Join(t.TempDir(), "absent.scene.jsonc"))
	if err == nil {
		t.Fatal("expected error for missing manifest")
	}
}

func TestWatchManifest_InvalidInitialContent(t *testing.T) {
	path := writeTestManifest(t, `{"references": [{"path": "/proj/a.abc"}]}`)
	_, _, err := WatchManifest(path)
	if err == nil {
		t.Fatal("expected error for invalid manifest")
	}
}
