// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package hook_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/pipeline-foundation/breakdown/lib/entity"
	"github.com/pipeline-foundation/breakdown/lib/filter"
	"github.com/pipeline-foundation/breakdown/lib/hook"
	"github.com/pipeline-foundation/breakdown/lib/tracker"
	"github.com/pipeline-foundation/breakdown/lib/trackertest"
)

// newTestClient points a client at the fake service with the
// credentials it registers.
func newTestClient(t *testing.T, server *trackertest.Server) *tracker.Client {
	t.Helper()
	client, err := tracker.NewClient(tracker.Config{
		BaseURL:    server.URL(),
		ScriptName: trackertest.DefaultScriptName,
		ScriptKey:  trackertest.DefaultScriptKey,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

// versionedFile builds one published file in a version chain. Files
// sharing a name share the identity fields the builtin hook pins, so
// they form one logical file across versions.
func versionedFile(id, version int64, name string) entity.Record {
	return entity.Record{
		"type":           "PublishedFile",
		"id":             id,
		"name":           name,
		"version_number": version,
		"project": map[string]any{
			"type": "Project",
			"id":   int64(7),
			"name": "Iris",
		},
		"entity": map[string]any{
			"type": "Shot",
			"id":   int64(4),
			"name": "010_0040",
		},
		"task": map[string]any{
			"type": "Task",
			"id":   int64(9),
			"name": "anim",
		},
		"published_file_type": map[string]any{
			"type": "PublishedFileType",
			"id":   int64(2),
			"name": "Alembic Cache",
		},
		"path": map[string]any{
			"local_path": fmt.Sprintf("/proj/pub/%s.v%03d.abc", name, version),
		},
	}
}

func builtinPublishedFilesHook(t *testing.T) hook.PublishedFiles {
	t.Helper()
	hooks, err := hook.NewRegistry(hook.Deps{}).PublishedFiles(hook.BuiltinPublishedFiles)
	if err != nil {
		t.Fatalf("PublishedFiles: %v", err)
	}
	return hooks
}

func TestBuiltinLatestPublishedFile(t *testing.T) {
	server := trackertest.New(t)
	server.Add("PublishedFile",
		versionedFile(1, 1, "bg_geo"),
		versionedFile(2, 2, "bg_geo"),
		versionedFile(3, 3, "bg_geo"),
		versionedFile(10, 5, "char_rig"),
	)
	client := newTestClient(t, server)

	latest, err := builtinPublishedFilesHook(t).LatestPublishedFile(context.Background(), client, versionedFile(1, 1, "bg_geo"), hook.QueryOptions{
		Fields: []string{"name", "version_number"},
	})
	if err != nil {
		t.Fatalf("LatestPublishedFile: %v", err)
	}
	if latest == nil || latest.ID() != 3 {
		t.Fatalf("latest = %v, want id 3", latest)
	}
	if version, _ := entity.Int(latest["version_number"]); version != 3 {
		t.Fatalf("version_number = %v", latest["version_number"])
	}
}

func TestBuiltinLatestPublishedFile_NoMatch(t *testing.T) {
	server := trackertest.New(t)
	server.Add("PublishedFile", versionedFile(1, 1, "bg_geo"))
	client := newTestClient(t, server)

	latest, err := builtinPublishedFilesHook(t).LatestPublishedFile(context.Background(), client, versionedFile(0, 0, "missing"), hook.QueryOptions{})
	if err != nil {
		t.Fatalf("LatestPublishedFile: %v", err)
	}
	if latest != nil {
		t.Fatalf("latest = %v, want nil", latest)
	}
}

func TestBuiltinLatestPublishedFile_NullIdentity(t *testing.T) {
	taskless := func(id, version int64) entity.Record {
		record := versionedFile(id, version, "env_sky")
		delete(record, "task")
		return record
	}
	server := trackertest.New(t)
	server.Add("PublishedFile",
		taskless(20, 1),
		taskless(21, 2),
		versionedFile(22, 9, "env_sky"),
	)
	client := newTestClient(t, server)
	hooks := builtinPublishedFilesHook(t)

	// A task-less record only matches other task-less versions: its
	// task filters as null.
	latest, err := hooks.LatestPublishedFile(context.Background(), client, taskless(20, 1), hook.QueryOptions{})
	if err != nil {
		t.Fatalf("LatestPublishedFile: %v", err)
	}
	if latest == nil || latest.ID() != 21 {
		t.Fatalf("latest = %v, want id 21", latest)
	}

	// And a record with a task never matches the task-less chain.
	latest, err = hooks.LatestPublishedFile(context.Background(), client, versionedFile(22, 9, "env_sky"), hook.QueryOptions{})
	if err != nil {
		t.Fatalf("LatestPublishedFile: %v", err)
	}
	if latest == nil || latest.ID() != 22 {
		t.Fatalf("latest = %v, want id 22", latest)
	}
}

func TestBuiltinLatestPublishedFile_ExtraFilters(t *testing.T) {
	server := trackertest.New(t)
	server.Add("PublishedFile",
		versionedFile(1, 1, "bg_geo"),
		versionedFile(2, 2, "bg_geo"),
		versionedFile(3, 3, "bg_geo"),
	)
	client := newTestClient(t, server)

	latest, err := builtinPublishedFilesHook(t).LatestPublishedFile(context.Background(), client, versionedFile(1, 1, "bg_geo"), hook.QueryOptions{
		Filters: filter.List{{Field: "version_number", Operator: filter.OpLessThan, Value: 3}},
	})
	if err != nil {
		t.Fatalf("LatestPublishedFile: %v", err)
	}
	if latest == nil || latest.ID() != 2 {
		t.Fatalf("latest = %v, want id 2", latest)
	}
}

func TestBuiltinFileHistory(t *testing.T) {
	server := trackertest.New(t)
	server.Add("PublishedFile",
		versionedFile(1, 1, "bg_geo"),
		versionedFile(2, 2, "bg_geo"),
		versionedFile(3, 3, "bg_geo"),
		versionedFile(10, 5, "char_rig"),
	)
	client := newTestClient(t, server)
	hooks := builtinPublishedFilesHook(t)

	history, err := hooks.FileHistory(context.Background(), client, versionedFile(1, 1, "bg_geo"), hook.QueryOptions{})
	if err != nil {
		t.Fatalf("FileHistory: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("got %d records, want 3", len(history))
	}
	for i, wantID := range []int64{3, 2, 1} {
		if history[i].ID() != wantID {
			t.Fatalf("history[%d] = id %d, want %d", i, history[i].ID(), wantID)
		}
	}

	limited, err := hooks.FileHistory(context.Background(), client, versionedFile(1, 1, "bg_geo"), hook.QueryOptions{Limit: 2})
	if err != nil {
		t.Fatalf("FileHistory limited: %v", err)
	}
	if len(limited) != 2 || limited[0].ID() != 3 || limited[1].ID() != 2 {
		t.Fatalf("limited history = %v", limited)
	}
}

func TestChainKey(t *testing.T) {
	v1 := hook.ChainKey(versionedFile(1, 1, "bg_geo"))
	v2 := hook.ChainKey(versionedFile(2, 2, "bg_geo"))
	if v1 != v2 {
		t.Fatalf("versions of one chain got different keys:\n%s\n%s", v1, v2)
	}

	if other := hook.ChainKey(versionedFile(3, 1, "char_rig")); other == v1 {
		t.Fatalf("different names share key %s", other)
	}

	taskless := versionedFile(4, 1, "bg_geo")
	delete(taskless, "task")
	if key := hook.ChainKey(taskless); key == v1 {
		t.Fatalf("task-less record shares key %s", key)
	}
}
