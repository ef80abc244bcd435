// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package refresh_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pipeline-foundation/breakdown/lib/breakdown"
	"github.com/pipeline-foundation/breakdown/lib/clock"
	"github.com/pipeline-foundation/breakdown/lib/entity"
	"github.com/pipeline-foundation/breakdown/lib/hook"
	"github.com/pipeline-foundation/breakdown/lib/refresh"
	"github.com/pipeline-foundation/breakdown/lib/scene"
	"github.com/pipeline-foundation/breakdown/lib/testutil"
	"github.com/pipeline-foundation/breakdown/lib/tracker"
	"github.com/pipeline-foundation/breakdown/lib/trackertest"
)

func chainFile(id, version int64, name string) entity.Record {
	return entity.Record{
		"type":           "PublishedFile",
		"id":             id,
		"name":           name,
		"version_number": version,
		"path": map[string]any{
			"local_path": fmt.Sprintf("/proj/pub/%s.v%03d.abc", name, version),
		},
	}
}

// stubScene satisfies the scene side of the manager; the poller never
// scans or updates.
type stubScene struct{}

func (stubScene) ScanScene(ctx context.Context) ([]scene.Object, error) { return nil, nil }
func (stubScene) Update(ctx context.Context, request scene.UpdateRequest) error {
	return nil
}

func newPollerManager(t *testing.T, server *trackertest.Server) *breakdown.Manager {
	t.Helper()
	client, err := tracker.NewClient(tracker.Config{
		BaseURL:    server.URL(),
		ScriptName: trackertest.DefaultScriptName,
		ScriptKey:  trackertest.DefaultScriptKey,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	publishedFiles, err := hook.NewRegistry(hook.Deps{}).PublishedFiles(hook.BuiltinPublishedFiles)
	if err != nil {
		t.Fatalf("PublishedFiles: %v", err)
	}
	manager, err := breakdown.NewManager(breakdown.Options{
		Client:         client,
		SceneOps:       stubScene{},
		PublishedFiles: publishedFiles,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return manager
}

// startPoller runs the poller in the background and hands back the
// fake clock driving it.
func startPoller(t *testing.T, server *trackertest.Server, items []*breakdown.FileItem) (*refresh.Poller, *clock.FakeClock) {
	t.Helper()
	fakeClock := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	poller, err := refresh.NewPoller(refresh.Options{
		Manager:  newPollerManager(t, server),
		Interval: 30 * time.Second,
		Clock:    fakeClock,
	})
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}
	poller.SetItems(items)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := testutil.RequireReceive(t, done, 5*time.Second, "poller exit"); err != nil {
			t.Errorf("Run: %v", err)
		}
	})

	fakeClock.WaitForTimers(1)
	return poller, fakeClock
}

func TestPollerEmitsOnChange(t *testing.T) {
	server := trackertest.New(t)
	server.Add("PublishedFile",
		chainFile(1, 1, "bg_geo"),
		chainFile(10, 2, "char_anim"),
	)

	// bg_geo arrives with its latest already known; char_anim does
	// not, so the first poll only announces char_anim.
	items := []*breakdown.FileItem{
		{NodeName: "bg_geo", Record: chainFile(1, 1, "bg_geo"), Latest: chainFile(1, 1, "bg_geo")},
		{NodeName: "char_anim", Record: chainFile(10, 2, "char_anim")},
	}
	poller, fakeClock := startPoller(t, server, items)

	fakeClock.Advance(30 * time.Second)
	event := testutil.RequireReceive(t, poller.Events(), 5*time.Second, "first poll")
	if event.Kind != refresh.KindLatest || event.ItemKey != "char_anim" {
		t.Fatalf("event = %+v, want latest for char_anim", event)
	}
	if event.Latest.ID() != 10 {
		t.Fatalf("event.Latest id = %d, want 10", event.Latest.ID())
	}

	// A new bg_geo version lands; the next poll announces it.
	server.Add("PublishedFile", chainFile(2, 2, "bg_geo"))
	fakeClock.Advance(30 * time.Second)
	event = testutil.RequireReceive(t, poller.Events(), 5*time.Second, "second poll")
	if event.ItemKey != "bg_geo" || event.Latest.ID() != 2 {
		t.Fatalf("event = %+v, want bg_geo at id 2", event)
	}
}

func TestPollerBatchesSharedChains(t *testing.T) {
	server := trackertest.New(t)
	server.Add("PublishedFile", chainFile(1, 1, "bg_geo"))

	// Two scene nodes reference the same chain: one query, two events.
	items := []*breakdown.FileItem{
		{NodeName: "bg_a", Record: chainFile(1, 1, "bg_geo")},
		{NodeName: "bg_b", Record: chainFile(1, 1, "bg_geo")},
	}
	poller, fakeClock := startPoller(t, server, items)

	fakeClock.Advance(30 * time.Second)
	first := testutil.RequireReceive(t, poller.Events(), 5*time.Second, "first fan-out event")
	second := testutil.RequireReceive(t, poller.Events(), 5*time.Second, "second fan-out event")
	if first.ItemKey != "bg_a" || second.ItemKey != "bg_b" {
		t.Fatalf("fan-out keys = %q, %q", first.ItemKey, second.ItemKey)
	}
	if first.Latest.ID() != 1 || second.Latest.ID() != 1 {
		t.Fatalf("fan-out ids = %d, %d", first.Latest.ID(), second.Latest.ID())
	}
	if searches := server.SearchCount(); searches != 1 {
		t.Fatalf("searches = %d, want 1 for a shared chain", searches)
	}
}

func TestPollerPauseResume(t *testing.T) {
	server := trackertest.New(t)
	server.Add("PublishedFile", chainFile(1, 1, "bg_geo"))
	items := []*breakdown.FileItem{
		{NodeName: "bg_geo", Record: chainFile(1, 1, "bg_geo")},
	}
	poller, fakeClock := startPoller(t, server, items)

	poller.Pause()
	fakeClock.Advance(30 * time.Second)
	testutil.RequireNoReceive(t, poller.Events(), 200*time.Millisecond, "paused poller emitted")
	if searches := server.SearchCount(); searches != 0 {
		t.Fatalf("paused poller queried %d times", searches)
	}

	poller.Resume()
	fakeClock.Advance(30 * time.Second)
	event := testutil.RequireReceive(t, poller.Events(), 5*time.Second, "poll after resume")
	if event.ItemKey != "bg_geo" {
		t.Fatalf("event = %+v", event)
	}
}

func TestPollerDisabled(t *testing.T) {
	server := trackertest.New(t)
	poller, err := refresh.NewPoller(refresh.Options{
		Manager: newPollerManager(t, server),
	})
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}
	if err := poller.Run(context.Background()); err != nil {
		t.Fatalf("Run with no interval: %v", err)
	}
}

func TestPollerSurvivesQueryFailure(t *testing.T) {
	server := trackertest.New(t)
	server.Add("PublishedFile", chainFile(1, 1, "bg_geo"))
	items := []*breakdown.FileItem{
		{NodeName: "bg_geo", Record: chainFile(1, 1, "bg_geo")},
	}
	poller, fakeClock := startPoller(t, server, items)

	fakeClock.Advance(30 * time.Second)
	event := testutil.RequireReceive(t, poller.Events(), 5*time.Second, "first poll")
	if event.Latest.ID() != 1 {
		t.Fatalf("event = %+v", event)
	}

	// One failed poll is logged and swallowed; the next poll works.
	server.FailNext(500, "backend exploded")
	fakeClock.Advance(30 * time.Second)
	waitForSearches(t, server, 2)

	server.Add("PublishedFile", chainFile(2, 2, "bg_geo"))
	fakeClock.Advance(30 * time.Second)
	event = testutil.RequireReceive(t, poller.Events(), 5*time.Second, "poll after failure")
	if event.Latest.ID() != 2 {
		t.Fatalf("event after failure = %+v, want id 2", event)
	}
}

// waitForSearches spins until the server has served n search calls,
// ticking the test past an in-flight poll before the next advance.
func waitForSearches(t *testing.T, server *trackertest.Server, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second) //nolint:realclock synchronizing with the poller goroutine
	for server.SearchCount() < n {
		if time.Now().After(deadline) { //nolint:realclock synchronizing with the poller goroutine
			t.Fatalf("server saw %d searches, want %d", server.SearchCount(), n)
		}
		time.Sleep(5 * time.Millisecond) //nolint:realclock synchronizing with the poller goroutine
	}
}

type fakeNotifier struct {
	changes chan struct{}
}

func (f fakeNotifier) WatchChanges() (<-chan struct{}, func(), error) {
	return f.changes, func() {}, nil
}

func TestPollerWatchScene(t *testing.T) {
	server := trackertest.New(t)
	poller, err := refresh.NewPoller(refresh.Options{Manager: newPollerManager(t, server)})
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}

	notifier := fakeNotifier{changes: make(chan struct{}, 1)}
	done := make(chan error, 1)
	go func() { done <- poller.WatchScene(context.Background(), notifier) }()

	notifier.changes <- struct{}{}
	event := testutil.RequireReceive(t, poller.Events(), 5*time.Second, "scene change event")
	if event.Kind != refresh.KindSceneChange {
		t.Fatalf("event = %+v, want scene change", event)
	}

	close(notifier.changes)
	if err := testutil.RequireReceive(t, done, 5*time.Second, "watcher exit"); err != nil {
		t.Fatalf("WatchScene: %v", err)
	}
}
