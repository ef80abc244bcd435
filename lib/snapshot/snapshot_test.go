// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pipeline-foundation/breakdown/lib/breakdown"
	"github.com/pipeline-foundation/breakdown/lib/entity"
	"github.com/pipeline-foundation/breakdown/lib/scene"
)

func fixtureItems() []*breakdown.FileItem {
	return []*breakdown.FileItem{
		{
			NodeName: "shot010_anim",
			NodeType: "reference",
			Path:     "/prod/shot010/anim.v003.ma",
			Record: entity.Record{
				"type": "PublishedFile", "id": int64(101),
				"name":           "anim.ma",
				"version_number": int64(3),
			},
			Latest: entity.Record{
				"type": "PublishedFile", "id": int64(105),
				"version_number": int64(5),
			},
		},
		{
			NodeName: "shot010_layout",
			NodeType: "reference",
			Path:     "/prod/shot010/layout.v002.ma",
			Record: entity.Record{
				"type": "PublishedFile", "id": int64(201),
				"version_number": int64(2),
			},
			Latest: entity.Record{
				"type": "PublishedFile", "id": int64(201),
				"version_number": int64(2),
			},
			Locked: true,
		},
		{
			NodeName: "stray_texture",
			NodeType: "file",
			Path:     "/prod/shot010/stray.png",
		},
	}
}

func TestWriteLoadRoundtrip(t *testing.T) {
	for _, compression := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(compression.String(), func(t *testing.T) {
			taken := time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC)
			snap := Capture("/prod/shot010/scene.jsonc", "abc123", fixtureItems(), taken)

			path := filepath.Join(t.TempDir(), "breakdown.snap")
			if err := Write(path, snap, compression); err != nil {
				t.Fatalf("Write: %v", err)
			}

			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if loaded.ScenePath != "/prod/shot010/scene.jsonc" {
				t.Errorf("ScenePath = %q", loaded.ScenePath)
			}
			if loaded.Fingerprint != "abc123" {
				t.Errorf("Fingerprint = %q", loaded.Fingerprint)
			}
			if !loaded.Taken().Equal(taken) {
				t.Errorf("Taken = %v, want %v", loaded.Taken(), taken)
			}

			items := loaded.FileItems()
			if len(items) != 3 {
				t.Fatalf("got %d items, want 3", len(items))
			}
			first := items[0]
			if first.NodeName != "shot010_anim" || first.CurrentVersion() != 3 || first.HighestVersion() != 5 {
				t.Errorf("first item = %s v%d/v%d", first.NodeName, first.CurrentVersion(), first.HighestVersion())
			}
			if got := first.Status().String(); got != "out_of_date" {
				t.Errorf("first status = %q, want out_of_date", got)
			}
			if !items[1].Locked {
				t.Error("second item lost its lock")
			}
			if items[2].Record != nil {
				t.Errorf("unpublished item grew a record: %v", items[2].Record)
			}
		})
	}
}

func TestLoadRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-snapshot")
	if err := os.WriteFile(path, []byte("definitely not a snapshot file"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "not a snapshot file") {
		t.Errorf("Load = %v, want a format error", err)
	}
}

func TestLoadRejectsUnsupportedVersion(t *testing.T) {
	data := make([]byte, headerSize)
	copy(data, snapshotMagic[:])
	data[6] = snapshotVersion + 1
	path := filepath.Join(t.TempDir(), "future.snap")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "not supported") {
		t.Errorf("Load = %v, want a version error", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.snap"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load = %v, want os.ErrNotExist underneath", err)
	}
}

func TestStale(t *testing.T) {
	scenePath := filepath.Join(t.TempDir(), "scene.jsonc")
	if err := os.WriteFile(scenePath, []byte("{\"references\": []}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	fingerprint, err := scene.FingerprintFile(scenePath)
	if err != nil {
		t.Fatal(err)
	}

	snap := Capture(scenePath, fingerprint, nil, time.Now())

	stale, err := snap.Stale()
	if err != nil {
		t.Fatalf("Stale: %v", err)
	}
	if stale {
		t.Error("fresh snapshot reported stale")
	}

	if err := os.WriteFile(scenePath, []byte("{\"references\": [1]}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	stale, err = snap.Stale()
	if err != nil {
		t.Fatalf("Stale after edit: %v", err)
	}
	if !stale {
		t.Error("edited scene not reported stale")
	}
}

func TestParseCompression(t *testing.T) {
	for name, want := range map[string]Compression{
		"none": CompressionNone,
		"lz4":  CompressionLZ4,
		"zstd": CompressionZstd,
	} {
		got, err := ParseCompression(name)
		if err != nil || got != want {
			t.Errorf("ParseCompression(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseCompression("brotli"); err == nil {
		t.Error("ParseCompression accepted an unknown codec")
	}
}

func TestCompressRoundtrip(t *testing.T) {
	// Repetitive enough for both codecs to shrink it.
	payload := []byte(strings.Repeat("published_file_version ", 200))

	for _, requested := range []Compression{CompressionLZ4, CompressionZstd} {
		stored, tag, err := compress(payload, requested)
		if err != nil {
			t.Fatalf("compress(%v): %v", requested, err)
		}
		if tag != requested {
			t.Errorf("compress(%v) stored as %v", requested, tag)
		}
		if len(stored) >= len(payload) {
			t.Errorf("compress(%v) did not shrink the payload", requested)
		}
		restored, err := decompress(stored, tag, len(payload))
		if err != nil {
			t.Fatalf("decompress(%v): %v", tag, err)
		}
		if string(restored) != string(payload) {
			t.Errorf("decompress(%v) corrupted the payload", tag)
		}
	}
}

func TestCompressIncompressibleFallsBack(t *testing.T) {
	// A short unique string will not shrink under block compression.
	payload := []byte("x1")
	stored, tag, err := compress(payload, CompressionZstd)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if tag != CompressionNone {
		t.Errorf("tag = %v, want CompressionNone fallback", tag)
	}
	if string(stored) != string(payload) {
		t.Errorf("stored payload changed: %q", stored)
	}
}
