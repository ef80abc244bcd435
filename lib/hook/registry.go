// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package hook

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pipeline-foundation/breakdown/lib/scene"
)

// Builtin hook names, usable anywhere a configuration option takes a
// hook reference.
const (
	BuiltinManifestScene  = "builtin:manifest-scene"
	BuiltinPublishedFiles = "builtin:published-files"
	BuiltinUIConfig       = "builtin:ui-config"
)

const builtinPrefix = "builtin:"

// Deps carries the runtime inputs builtin hooks draw on.
type Deps struct {
	// ManifestPath locates the scene manifest for the builtin scanner.
	ManifestPath string

	// Logger receives hook load diagnostics. nil means slog.Default().
	Logger *slog.Logger
}

// Registry resolves configured hook references into implementations.
// A reference is either a builtin name or a path to a hook script;
// symbols a script leaves undefined fall back to the matching builtin
// behavior. Not safe for concurrent use; resolve hooks during startup.
type Registry struct {
	deps    Deps
	scripts map[string]*script
}

// NewRegistry returns a registry resolving against deps.
func NewRegistry(deps Deps) *Registry {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Registry{deps: deps, scripts: make(map[string]*script)}
}

// load returns the script for ref, evaluating it on first use. Scripts
// are cached so a path shared between hook options loads once.
func (r *Registry) load(ref string) (*script, error) {
	if s, ok := r.scripts[ref]; ok {
		return s, nil
	}
	s, err := loadScript(ref, r.deps.Logger)
	if err != nil {
		return nil, err
	}
	r.scripts[ref] = s
	return s, nil
}

// SceneOperations resolves the scene backend hook.
func (r *Registry) SceneOperations(ref string) (SceneOperations, error) {
	switch {
	case ref == "" || ref == BuiltinManifestScene:
		return r.builtinSceneOperations()
	case strings.HasPrefix(ref, builtinPrefix):
		return nil, fmt.Errorf("hook: unknown builtin scene-operations hook %q", ref)
	}
	s, err := r.load(ref)
	if err != nil {
		return nil, err
	}
	ops := &scriptSceneOperations{script: s}
	if s.scanScene == nil || s.updateItem == nil {
		fallback, err := r.builtinSceneOperations()
		if err != nil {
			return nil, fmt.Errorf("hook: script %s falls back to the builtin scanner: %w", ref, err)
		}
		ops.fallback = fallback
		if s.scanScene == nil {
			if notifier, ok := fallback.(scene.ChangeNotifier); ok {
				return &watchableSceneOperations{scriptSceneOperations: ops, notifier: notifier}, nil
			}
		}
	}
	return ops, nil
}

func (r *Registry) builtinSceneOperations() (SceneOperations, error) {
	if r.deps.ManifestPath == "" {
		return nil, fmt.Errorf("hook: the builtin scene scanner needs a scene manifest path")
	}
	return &manifestScene{path: r.deps.ManifestPath}, nil
}

// PublishedFiles resolves the version-query hook.
func (r *Registry) PublishedFiles(ref string) (PublishedFiles, error) {
	switch {
	case ref == "" || ref == BuiltinPublishedFiles:
		return builtinPublishedFiles{}, nil
	case strings.HasPrefix(ref, builtinPrefix):
		return nil, fmt.Errorf("hook: unknown builtin published-files hook %q", ref)
	}
	s, err := r.load(ref)
	if err != nil {
		return nil, err
	}
	return &scriptPublishedFiles{script: s}, nil
}

// UIConfig resolves one presentation hook. Layering the advanced
// reference over the base one is the caller's business via
// [OverlayUIConfig].
func (r *Registry) UIConfig(ref string) (UIConfig, error) {
	switch {
	case ref == "" || ref == BuiltinUIConfig:
		return builtinUIConfig(), nil
	case strings.HasPrefix(ref, builtinPrefix):
		return nil, fmt.Errorf("hook: unknown builtin ui-config hook %q", ref)
	}
	s, err := r.load(ref)
	if err != nil {
		return nil, err
	}
	return uiConfigFromScript(s, builtinUIConfig())
}

// Actions resolves the optional extra-actions hook. An empty reference
// means no extra actions.
func (r *Registry) Actions(ref string) (Actions, error) {
	if ref == "" {
		return nil, nil
	}
	if strings.HasPrefix(ref, builtinPrefix) {
		return nil, fmt.Errorf("hook: unknown builtin actions hook %q", ref)
	}
	s, err := r.load(ref)
	if err != nil {
		return nil, err
	}
	return actionsFromScript(s)
}
