// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package hook_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pipeline-foundation/breakdown/lib/hook"
	"github.com/pipeline-foundation/breakdown/lib/scene"
	"github.com/pipeline-foundation/breakdown/lib/trackertest"
)

func writeScript(t *testing.T, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hook.go")
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		t.Fatalf("writing script: %v", err)
	}
	return path
}

func TestScriptSceneOperations(t *testing.T) {
	recorded := filepath.Join(t.TempDir(), "update.txt")
	source := fmt.Sprintf(`package main

import "os"

func ScanScene() ([]map[string]any, error) {
	return []map[string]any{
		{
			"node_name": "env_sky",
			"node_type": "reference",
			"path":      "/proj/pub/env/sky.v002.abc",
			"extra":     map[string]any{"namespace": "sky01"},
		},
	}, nil
}

func UpdateItem(item map[string]any) error {
	line := item["node_name"].(string) + " " + item["path"].(string)
	return os.WriteFile(%q, []byte(line), 0o644)
}
`, recorded)

	ops, err := hook.NewRegistry(hook.Deps{}).SceneOperations(writeScript(t, source))
	if err != nil {
		t.Fatalf("SceneOperations: %v", err)
	}

	objects, err := ops.ScanScene(context.Background())
	if err != nil {
		t.Fatalf("ScanScene: %v", err)
	}
	if len(objects) != 1 {
		t.Fatalf("got %d objects, want 1", len(objects))
	}
	object := objects[0]
	if object.NodeName != "env_sky" || object.NodeType != "reference" || object.Path != "/proj/pub/env/sky.v002.abc" {
		t.Fatalf("object = %+v", object)
	}
	if object.Extra["namespace"] != "sky01" {
		t.Fatalf("extra = %v", object.Extra)
	}

	// A script that scans for itself has no manifest to watch.
	if _, ok := ops.(scene.ChangeNotifier); ok {
		t.Fatal("script scanner should not advertise change watching")
	}

	err = ops.Update(context.Background(), scene.UpdateRequest{
		Object: object,
		Path:   "/proj/pub/env/sky.v003.abc",
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	written, err := os.ReadFile(recorded)
	if err != nil {
		t.Fatalf("reading update record: %v", err)
	}
	if got := string(written); got != "env_sky /proj/pub/env/sky.v003.abc" {
		t.Fatalf("update record = %q", got)
	}
}

func TestScriptSceneFallback(t *testing.T) {
	recorded := filepath.Join(t.TempDir(), "update.txt")
	source := fmt.Sprintf(`package main

import "os"

func UpdateItem(item map[string]any) error {
	return os.WriteFile(%q, []byte(item["path"].(string)), 0o644)
}
`, recorded)

	manifestPath := writeSceneManifest(t, testSceneManifest())
	ops, err := hook.NewRegistry(hook.Deps{ManifestPath: manifestPath}).SceneOperations(writeScript(t, source))
	if err != nil {
		t.Fatalf("SceneOperations: %v", err)
	}

	// Scanning falls back to the manifest scanner.
	objects, err := ops.ScanScene(context.Background())
	if err != nil {
		t.Fatalf("ScanScene: %v", err)
	}
	if len(objects) != 2 || objects[0].NodeName != "bg_geo" {
		t.Fatalf("objects = %+v", objects)
	}

	// With scanning on the builtin, the change feed passes through.
	if _, ok := ops.(scene.ChangeNotifier); !ok {
		t.Fatal("fallback scanning should expose change watching")
	}

	// Updates go to the script, not the manifest.
	err = ops.Update(context.Background(), scene.UpdateRequest{
		Object: objects[0],
		Path:   "/proj/pub/bg/bg_geo.v002.abc",
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := os.Stat(recorded); err != nil {
		t.Fatalf("script update record: %v", err)
	}
	after, err := scene.ReadManifest(manifestPath)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if after.References[0].Path != "/proj/pub/bg/bg_geo.v001.abc" {
		t.Fatalf("manifest path changed to %s", after.References[0].Path)
	}
}

func TestScriptWrongSignature(t *testing.T) {
	path := writeScript(t, `package main

func ScanScene() string { return "" }
`)
	_, err := hook.NewRegistry(hook.Deps{}).SceneOperations(path)
	if err == nil || !strings.Contains(err.Error(), "ScanScene has type") {
		t.Fatalf("err = %v", err)
	}
}

func TestScriptMissingFile(t *testing.T) {
	_, err := hook.NewRegistry(hook.Deps{}).SceneOperations(filepath.Join(t.TempDir(), "absent.go"))
	if err == nil || !strings.Contains(err.Error(), "reading script") {
		t.Fatalf("err = %v", err)
	}
}

func TestScriptSyntaxError(t *testing.T) {
	path := writeScript(t, "package main\n\nfunc Broken(\n")
	_, err := hook.NewRegistry(hook.Deps{}).SceneOperations(path)
	if err == nil || !strings.Contains(err.Error(), "evaluating") {
		t.Fatalf("err = %v", err)
	}
}

func TestScriptPublishedFilesFilters(t *testing.T) {
	server := trackertest.New(t)
	server.Add("PublishedFile",
		versionedFile(1, 1, "bg_geo"),
		versionedFile(2, 2, "bg_geo"),
		versionedFile(3, 3, "bg_geo"),
	)
	client := newTestClient(t, server)

	path := writeScript(t, `package main

func LatestFilters(record map[string]any) ([][]any, error) {
	return [][]any{
		{"name", "is", record["name"]},
		{"version_number", "less_than", 3},
	}, nil
}
`)
	hooks, err := hook.NewRegistry(hook.Deps{}).PublishedFiles(path)
	if err != nil {
		t.Fatalf("PublishedFiles: %v", err)
	}

	latest, err := hooks.LatestPublishedFile(context.Background(), client, versionedFile(1, 1, "bg_geo"), hook.QueryOptions{})
	if err != nil {
		t.Fatalf("LatestPublishedFile: %v", err)
	}
	if latest == nil || latest.ID() != 2 {
		t.Fatalf("latest = %v, want id 2", latest)
	}

	// HistoryFilters is not defined, so history keeps the builtin
	// identity query.
	history, err := hooks.FileHistory(context.Background(), client, versionedFile(1, 1, "bg_geo"), hook.QueryOptions{Limit: 2})
	if err != nil {
		t.Fatalf("FileHistory: %v", err)
	}
	if len(history) != 2 || history[0].ID() != 3 {
		t.Fatalf("history = %v", history)
	}
}

func TestScriptBadFilterTriple(t *testing.T) {
	server := trackertest.New(t)
	client := newTestClient(t, server)

	path := writeScript(t, `package main

func LatestFilters(record map[string]any) ([][]any, error) {
	return [][]any{{"name", "resembles", "x"}}, nil
}
`)
	hooks, err := hook.NewRegistry(hook.Deps{}).PublishedFiles(path)
	if err != nil {
		t.Fatalf("PublishedFiles: %v", err)
	}

	_, err = hooks.LatestPublishedFile(context.Background(), client, versionedFile(1, 1, "bg_geo"), hook.QueryOptions{})
	if err == nil || !strings.Contains(err.Error(), "LatestFilters") {
		t.Fatalf("err = %v", err)
	}
}

func TestScriptUIConfig(t *testing.T) {
	path := writeScript(t, `package main

func FileItemDetails() map[string]any {
	return map[string]any{
		"top_left":  "{code}",
		"top_right": "{version_number}",
		"body":      "Path {<PATH>}",
		"thumbnail": false,
	}
}
`)
	config, err := hook.NewRegistry(hook.Deps{}).UIConfig(path)
	if err != nil {
		t.Fatalf("UIConfig: %v", err)
	}

	want := hook.Block{TopLeft: "{code}", TopRight: "{version_number}", Body: "Path {<PATH>}"}
	if got := config.FileItemDetails(); got != want {
		t.Fatalf("file item block = %+v", got)
	}

	// Blocks the script leaves out keep the builtin defaults.
	if config.MainFileHistoryDetails().Body == "" {
		t.Fatal("main history block should fall back to the builtin")
	}
}

func TestScriptUIConfigBadTemplate(t *testing.T) {
	path := writeScript(t, `package main

func FileItemDetails() map[string]any {
	return map[string]any{"top_left": "{unclosed"}
}
`)
	_, err := hook.NewRegistry(hook.Deps{}).UIConfig(path)
	if err == nil || !strings.Contains(err.Error(), "file_item_details top_left") {
		t.Fatalf("err = %v", err)
	}
}

func TestScriptActions(t *testing.T) {
	recorded := filepath.Join(t.TempDir(), "action.txt")
	source := fmt.Sprintf(`package main

import "os"

func Actions() []map[string]any {
	return []map[string]any{
		{"name": "flush_cache", "label": "Flush Cache"},
		{"name": "rescan"},
	}
}

func RunAction(name string, target map[string]any) error {
	return os.WriteFile(%q, []byte(name+" "+target["node_name"].(string)), 0o644)
}
`, recorded)

	actions, err := hook.NewRegistry(hook.Deps{}).Actions(writeScript(t, source))
	if err != nil {
		t.Fatalf("Actions: %v", err)
	}
	list := actions.Actions()
	if len(list) != 2 {
		t.Fatalf("got %d actions, want 2", len(list))
	}
	if list[0].Name != "flush_cache" || list[0].Label != "Flush Cache" {
		t.Fatalf("first action = %+v", list[0])
	}
	if list[1].Label != "rescan" {
		t.Fatalf("label should default to the name: %+v", list[1])
	}

	target := hook.Target{
		Object: scene.Object{NodeName: "env_sky", Path: "/proj/pub/env/sky.v002.abc"},
	}
	if err := list[0].Run(context.Background(), target); err != nil {
		t.Fatalf("Run: %v", err)
	}
	written, err := os.ReadFile(recorded)
	if err != nil {
		t.Fatalf("reading action record: %v", err)
	}
	if got := string(written); got != "flush_cache env_sky" {
		t.Fatalf("action record = %q", got)
	}
}

func TestScriptActionsWithoutRunner(t *testing.T) {
	path := writeScript(t, `package main

func Actions() []map[string]any {
	return []map[string]any{{"name": "x"}}
}
`)
	_, err := hook.NewRegistry(hook.Deps{}).Actions(path)
	if err == nil || !strings.Contains(err.Error(), "without RunAction") {
		t.Fatalf("err = %v", err)
	}
}

func TestScriptActionsUndefined(t *testing.T) {
	path := writeScript(t, `package main

func RunAction(name string, target map[string]any) error { return nil }
`)
	_, err := hook.NewRegistry(hook.Deps{}).Actions(path)
	if err == nil || !strings.Contains(err.Error(), "defines no Actions") {
		t.Fatalf("err = %v", err)
	}
}

func TestScriptCallTimeout(t *testing.T) {
	path := writeScript(t, `package main

import "time"

func ScanScene() ([]map[string]any, error) {
	time.Sleep(3 * time.Second)
	return nil, nil
}

func UpdateItem(item map[string]any) error { return nil }
`)
	ops, err := hook.NewRegistry(hook.Deps{}).SceneOperations(path)
	if err != nil {
		t.Fatalf("SceneOperations: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond) //nolint:realclock interpreted code cannot take an injected clock
	defer cancel()
	_, err = ops.ScanScene(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}
