// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pipeline-foundation/breakdown/lib/codec"
)

// File format constants.
const (
	// snapshotVersion is the format version carried in the magic
	// bytes. Version 1 is the initial format.
	snapshotVersion = 1

	// headerSize is the fixed header: 8-byte magic + 1-byte
	// compression tag + 3 reserved bytes + 4-byte uncompressed
	// payload size (little endian).
	headerSize = 16

	// maxPayloadSize bounds the decoded payload so a corrupted header
	// cannot demand an arbitrary allocation.
	maxPayloadSize = 64 << 20
)

// snapshotMagic is the 8-byte snapshot file signature: "BDSNAP" plus
// a version byte and a reserved byte.
var snapshotMagic = [8]byte{'B', 'D', 'S', 'N', 'A', 'P', snapshotVersion, 0}

// Write persists the snapshot at path atomically: the encoding goes
// to a temporary file in the same directory and is renamed into
// place, so a concurrent reader sees either the previous snapshot or
// the new one. The compression argument is a request; payloads the
// codec cannot shrink are stored uncompressed with the header tag
// saying so.
func Write(path string, snap *Snapshot, compression Compression) error {
	payload, err := codec.Marshal(snap)
	if err != nil {
		return fmt.Errorf("snapshot: encoding: %w", err)
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("snapshot: payload is %d bytes, limit is %d", len(payload), maxPayloadSize)
	}

	stored, tag, err := compress(payload, compression)
	if err != nil {
		return err
	}

	// Reserved bytes 9 through 11 stay zero.
	data := make([]byte, headerSize, headerSize+len(stored))
	copy(data, snapshotMagic[:])
	data[8] = byte(tag)
	binary.LittleEndian.PutUint32(data[12:16], uint32(len(payload)))
	data = append(data, stored...)

	temporaryPath := path + ".tmp"

	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("snapshot: creating temporary file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("snapshot: writing temporary file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("snapshot: syncing temporary file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("snapshot: closing temporary file: %w", err)
	}

	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("snapshot: renaming into place: %w", err)
	}

	// Sync the parent directory so the rename survives power loss
	// before the OS flushes directory metadata.
	parentDirectory, err := os.Open(filepath.Dir(path))
	if err == nil {
		parentDirectory.Sync()
		parentDirectory.Close()
	}

	return nil
}

// Load reads and decodes the snapshot at path. A missing file
// surfaces as an error wrapping os.ErrNotExist.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: reading %s: %w", path, err)
	}
	if len(data) < headerSize {
		return nil, fmt.Errorf("snapshot: %s: file is %d bytes, the header alone is %d", path, len(data), headerSize)
	}

	var magic [8]byte
	copy(magic[:], data[:8])
	if magic != snapshotMagic {
		if magic[0] == 'B' && magic[1] == 'D' && magic[2] == 'S' &&
			magic[3] == 'N' && magic[4] == 'A' && magic[5] == 'P' {
			return nil, fmt.Errorf("snapshot: %s: version %d is not supported (this code supports version %d)",
				path, magic[6], snapshotVersion)
		}
		return nil, fmt.Errorf("snapshot: %s is not a snapshot file", path)
	}

	tag := Compression(data[8])
	uncompressedSize := binary.LittleEndian.Uint32(data[12:16])
	if uncompressedSize > maxPayloadSize {
		return nil, fmt.Errorf("snapshot: %s: header claims a %d byte payload, limit is %d",
			path, uncompressedSize, maxPayloadSize)
	}

	payload, err := decompress(data[headerSize:], tag, int(uncompressedSize))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var snap Snapshot
	if err := codec.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("snapshot: decoding %s: %w", path, err)
	}
	return &snap, nil
}
