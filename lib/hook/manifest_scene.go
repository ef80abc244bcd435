// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package hook

import (
	"context"
	"fmt"

	"github.com/pipeline-foundation/breakdown/lib/scene"
)

// manifestScene is the builtin SceneOperations backed by a JSONC scene
// manifest on disk. Every call re-reads the manifest, so edits made
// outside the process are always visible.
type manifestScene struct {
	path string
}

var _ scene.ChangeNotifier = (*manifestScene)(nil)

func (m *manifestScene) ScanScene(ctx context.Context) ([]scene.Object, error) {
	manifest, err := scene.ReadManifest(m.path)
	if err != nil {
		return nil, err
	}
	return append([]scene.Object(nil), manifest.References...), nil
}

func (m *manifestScene) Update(ctx context.Context, request scene.UpdateRequest) error {
	manifest, err := scene.ReadManifest(m.path)
	if err != nil {
		return err
	}
	if !manifest.SetReferencePath(request.Object.NodeName, request.Path) {
		return fmt.Errorf("hook: scene manifest has no reference %q", request.Object.NodeName)
	}
	return scene.WriteManifest(m.path, manifest)
}

// WatchChanges adapts the manifest watcher to the ChangeNotifier
// contract. Parsed manifests are collapsed to bare change signals;
// consumers re-scan through ScanScene.
func (m *manifestScene) WatchChanges() (<-chan struct{}, func(), error) {
	manifests, cleanup, err := scene.WatchManifest(m.path)
	if err != nil {
		return nil, nil, err
	}
	changes := make(chan struct{}, 1)
	go func() {
		defer close(changes)
		for range manifests {
			select {
			case changes <- struct{}{}:
			default:
			}
		}
	}()
	return changes, cleanup, nil
}
