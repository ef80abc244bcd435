// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

// Package scene models the work scene being broken down: the file
// references it contains, the manifest that the built-in scanner reads
// them from, and a watcher that notices when the manifest changes on
// disk.
//
// A scene manifest is a JSONC document (comments and trailing commas
// allowed) naming the scene and listing its references:
//
//	{
//	  // lighting scene for shot 010_0040
//	  "scene": "shots/010_0040/lighting",
//	  "references": [
//	    {"node_name": "bg_geo", "node_type": "reference", "path": "/proj/pub/bg/bg_geo.v003.abc"},
//	    {"node_name": "char_anim", "node_type": "cache", "path": "/proj/pub/anim/char.v012.abc"},
//	  ],
//	}
//
// Engine integrations replace the manifest with their own scan and
// update hooks; the manifest is what the CLI and the test suite drive.
package scene
