// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

// Package breakdown is the core of the scene-reference breakdown: it
// scans the scene for file references, resolves each one to the
// published file it points at, finds the newest version and the
// version history of that file, and repoints references at other
// versions through the scene backend.
//
// The entry point is [Manager], wired from a tracking client and the
// resolved hooks:
//
//	manager, err := breakdown.NewManager(breakdown.Options{
//		Client:         client,
//		SceneOps:       sceneOps,
//		PublishedFiles: publishedFiles,
//		UIConfig:       uiConfig,
//	})
//
// [Manager.ScanScene] produces one [FileItem] per scene reference,
// published or not. [Manager.LatestPublishedFile] and
// [Manager.FileHistory] fill in what the tracking service knows, after
// which [FileItem.Status] answers the question the tool exists for:
// is this reference out of date. Updates go through
// [Manager.UpdateToLatest] and [Manager.UpdateToVersion]; both leave
// the item untouched unless the scene backend accepts the change.
package breakdown
