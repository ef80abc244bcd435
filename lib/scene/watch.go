// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package scene

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// ChangeNotifier is implemented by scene backends that can report
// external modifications. Every delivery means the scene changed
// underneath the consumer and a re-scan is warranted; the channel
// closes when watching stops. The cleanup function stops the watcher
// and is safe to call more than once.
type ChangeNotifier interface {
	WatchChanges() (<-chan struct{}, func(), error)
}

// WatchManifest starts an inotify watcher on the manifest's parent
// directory and delivers a re-parsed Manifest whenever the file's
// content changes. The channel closes when the watcher stops; the
// cleanup function stops it.
//
// The watcher monitors the directory (not the file) for IN_CLOSE_WRITE
// and IN_MOVED_TO events on the manifest name: tools that write a temp
// file and rename it create a new inode, so a file-level watch on the
// old inode misses the replacement. WriteManifest is exactly such a
// tool.
//
// Deliveries are debounced and deduplicated by content fingerprint, so
// a rewrite with identical bytes produces no event. When the consumer
// lags, the undelivered manifest is dropped in favor of the newest
// one.
func WatchManifest(path string) (<-chan *Manifest, func(), error) {
	absolutePath, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, fmt.Errorf("scene: resolving manifest path: %w", err)
	}

	data, err := os.ReadFile(absolutePath)
	if err != nil {
		return nil, nil, fmt.Errorf("scene: reading manifest: %w", err)
	}
	if _, err := ParseManifest(data); err != nil {
		return nil, nil, err
	}

	directory := filepath.Dir(absolutePath)
	filename := filepath.Base(absolutePath)

	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, nil, fmt.Errorf("scene: inotify init: %w", err)
	}
	_, err = unix.InotifyAddWatch(fd, directory, unix.IN_CLOSE_WRITE|unix.IN_MOVED_TO)
	if err != nil {
		unix.Close(fd)
		return nil, nil, fmt.Errorf("scene: watching %s: %w", directory, err)
	}

	events := make(chan *Manifest, 1)
	stopChannel := make(chan struct{})
	go watchLoop(fd, absolutePath, filename, Fingerprint(data), events, stopChannel)

	stopped := false
	cleanup := func() {
		if stopped {
			return
		}
		stopped = true
		close(stopChannel)
	}

	return events, cleanup, nil
}

// watchLoop polls the inotify fd for changes to the manifest, re-reads
// it, and delivers the parsed result when the content fingerprint
// moved.
//
// Uses poll(2) with a 100ms timeout for responsive stop-channel
// checking. After detecting a change, waits 50ms and drains queued
// events to coalesce rapid writes.
func watchLoop(
	fd int,
	path string,
	filename string,
	previousFingerprint string,
	events chan *Manifest,
	stopChannel <-chan struct{},
) {
	defer close(events)
	defer unix.Close(fd)

	buffer := make([]byte, 4096)

	for {
		select {
		case <-stopChannel:
			return
		default:
		}

		pollDescriptors := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		count, err := unix.Poll(pollDescriptors, 100)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			// Fatal poll error. The watcher exits and auto-refresh
			// degrades to the polling interval.
			return
		}
		if count == 0 {
			continue
		}

		bytesRead, err := unix.Read(fd, buffer)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			return
		}

		if !inotifyMatchesFile(buffer[:bytesRead], filename) {
			continue
		}

		// Debounce: wait 50ms and drain any events that arrived in
		// that window, coalescing rapid successive writes into one
		// re-read.
		time.Sleep(50 * time.Millisecond)
		drainInotifyEvents(fd, buffer)

		data, err := os.ReadFile(path)
		if err != nil {
			// Mid-write or briefly absent during an atomic replace.
			// The completed write produces another event.
			continue
		}
		fingerprint := Fingerprint(data)
		if fingerprint == previousFingerprint {
			continue
		}
		manifest, err := ParseManifest(data)
		if err != nil {
			// Partial content from a non-atomic writer. Same recovery
			// as the read failure above.
			continue
		}
		previousFingerprint = fingerprint

		// Latest scan wins: replace an undelivered manifest rather
		// than blocking the watch loop on a slow consumer.
		select {
		case events <- manifest:
		default:
			select {
			case <-events:
			default:
			}
			events <- manifest
		}
	}
}

// inotifyMatchesFile checks whether any inotify event in the buffer
// names the target file. Layout from inotify(7):
//
//	struct inotify_event {
//	    int32_t  wd;     // offset 0
//	    uint32_t mask;   // offset 4
//	    uint32_t cookie; // offset 8
//	    uint32_t len;    // offset 12
//	    char     name[]; // offset 16, null-padded to alignment
//	};
func inotifyMatchesFile(buffer []byte, targetFilename string) bool {
	offset := 0
	for offset+unix.SizeofInotifyEvent <= len(buffer) {
		nameLength := int(binary.NativeEndian.Uint32(buffer[offset+12 : offset+16]))
		eventSize := unix.SizeofInotifyEvent + nameLength
		if offset+eventSize > len(buffer) {
			break
		}

		if nameLength > 0 {
			nameBytes := buffer[offset+unix.SizeofInotifyEvent : offset+eventSize]
			if nullTerminatedString(nameBytes) == targetFilename {
				return true
			}
		}

		offset += eventSize
	}
	return false
}

// nullTerminatedString extracts a string from a null-padded byte
// slice, stopping at the first null byte.
func nullTerminatedString(data []byte) string {
	for i, b := range data {
		if b == 0 {
			return string(data[:i])
		}
	}
	return string(data)
}

// drainInotifyEvents reads and discards pending inotify events. Called
// after the debounce sleep so coalesced writes trigger a single
// re-read.
func drainInotifyEvents(fd int, buffer []byte) {
	for {
		if _, err := unix.Read(fd, buffer); err != nil {
			// EAGAIN means no more events; any other error, stop.
			return
		}
	}
}
