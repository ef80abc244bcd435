// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

// Package panel is the interactive terminal breakdown panel.
//
// The panel shows the scanned scene references grouped by the
// configured field, with per-item status against the tracking service
// and a detail pane rendering the hook-configured template blocks for
// the selected item and its version history. Update flows (single
// item, whole selection, everything out of date, or one specific
// history version) run asynchronously; results arrive as messages and
// trigger a re-scan.
//
// Data access goes through the [Source] interface so the same model
// serves a live manager-backed session and a read-only snapshot view.
// Sources additionally implementing [Mutator] enable the update keys;
// the snapshot source does not, so a snapshot session is naturally
// read-only.
package panel
