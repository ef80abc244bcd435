// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

// Package hook defines the extension points of the breakdown engine
// and resolves configured hook references into implementations.
//
// Four hook interfaces cover the seams studios customize:
// [SceneOperations] (how scene references are discovered and
// repointed), [PublishedFiles] (how the latest version and the version
// history of a file are queried), [UIConfig] (what the presentation
// layer shows for file items and history rows), and [Actions] (extra
// per-item operations beyond the built-in update flows). A fifth
// configuration slot, hook_ui_config_advanced, layers a second
// UIConfig over the first via [OverlayUIConfig].
//
// A hook reference in configuration is either a builtin name
// ([BuiltinManifestScene], [BuiltinPublishedFiles], [BuiltinUIConfig])
// or a filesystem path to a hook script.
//
// # Hook scripts
//
// A hook script is ordinary Go source, package main, restricted to
// standard-library imports, evaluated at load time by the yaegi
// interpreter. The engine looks up the exported functions below,
// asserts their signatures, and adapts them to the hook interfaces.
// Functions a script does not define keep their builtin behavior; a
// defined function with the wrong signature fails the load.
//
//	ScanScene() ([]map[string]any, error)
//	    Scene scan. Each row needs node_name and path; node_type and
//	    extra (map[string]any) are optional.
//
//	UpdateItem(item map[string]any) error
//	    Repoint one reference. item carries node_name, node_type,
//	    extra, the new path, and the published-file record being
//	    applied.
//
//	LatestFilters(record map[string]any) ([][]any, error)
//	HistoryFilters(record map[string]any) ([][]any, error)
//	    Replace the filter triples of the latest-version and history
//	    queries. The query itself always runs through the builtin
//	    tracker path; scripts never hold credentials.
//
//	FileItemDetails() map[string]any
//	MainFileHistoryDetails() map[string]any
//	FileHistoryDetails() map[string]any
//	    Presentation blocks: top_left, top_right and body template
//	    strings plus a thumbnail bool.
//
//	Actions() []map[string]any
//	RunAction(name string, target map[string]any) error
//	    Extra actions: each declared {name, label} row dispatches back
//	    through RunAction with the target item.
//
// Scripts exchange plain maps and slices rather than package types
// because the interpreter only shares the standard library with them.
package hook
