// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/pipeline-foundation/breakdown/cmd/breakdown/cli"
	"github.com/pipeline-foundation/breakdown/lib/breakdown"
	"github.com/pipeline-foundation/breakdown/lib/entity"
	"github.com/pipeline-foundation/breakdown/lib/hook"
	"github.com/pipeline-foundation/breakdown/lib/publishcache"
	"github.com/pipeline-foundation/breakdown/lib/refresh"
	"github.com/pipeline-foundation/breakdown/lib/scene"
)

func statusCommand() *cli.Command {
	var opts appOptions
	var watch, cached, offline bool
	return &cli.Command{
		Name:    "status",
		Summary: "Show reference status against the tracking service",
		Description: `Scan the scene, resolve the latest published version of every
reference, and report which ones are out of date.

With --cached the last scan snapshot is rendered instead; neither the
scene nor the service is contacted. With --offline the scene is
scanned but every service answer comes from the local cache. With
--watch the command keeps running and prints a line whenever a newer
version is published or the scene changes.`,
		Usage: "breakdown status --scene <manifest> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("status", pflag.ContinueOnError)
			opts.bind(flagSet)
			flagSet.BoolVar(&watch, "watch", false, "keep running and report changes")
			flagSet.BoolVar(&cached, "cached", false, "render the last scan snapshot")
			flagSet.BoolVar(&offline, "offline", false, "answer from the local cache only")
			return flagSet
		},
		Examples: []cli.Example{
			{
				Description: "One-shot status report",
				Command:     "breakdown status --scene /prod/shot010/scene.jsonc",
			},
			{
				Description: "Watch for newly published versions",
				Command:     "breakdown status --scene /prod/shot010/scene.jsonc --watch",
			},
			{
				Description: "Re-render the last scan without network access",
				Command:     "breakdown status --cached",
			},
		},
		Run: func(args []string) error {
			if cached && offline {
				return cli.Usagef("--cached and --offline are mutually exclusive")
			}
			if watch && (cached || offline) {
				return cli.Usagef("--watch needs a live connection")
			}
			return runStatus(opts, watch, cached, offline)
		},
	}
}

func runStatus(opts appOptions, watch, cached, offline bool) error {
	app, err := newApp(opts)
	if err != nil {
		return err
	}

	switch {
	case cached:
		return statusFromSnapshot(app)
	case offline:
		return statusFromCache(app)
	}

	if err := app.requireScene(); err != nil {
		return err
	}
	if err := app.connect(); err != nil {
		return err
	}

	ctx := context.Background()
	if watch {
		var cancel context.CancelFunc
		ctx, cancel = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer cancel()
	}

	items, err := app.manager.ScanScene(ctx, nil)
	if err != nil {
		return err
	}
	for _, item := range items {
		if _, err := app.manager.LatestPublishedFile(ctx, item); err != nil {
			return err
		}
	}

	if cache, err := app.openCache(); err == nil {
		cacheScanResults(ctx, app, cache, items)
		cacheLatestResults(ctx, app, cache, items)
		cache.Close()
	} else {
		app.logger.Warn("cache unavailable", "error", err)
	}
	app.writeSnapshot(items)

	if opts.jsonOutput {
		if err := cli.WriteJSON(statusReport(items)); err != nil {
			return err
		}
	} else {
		writeTable(os.Stdout, statusHeader, statusRows(items))
		fmt.Printf("%d reference(s), %d out of date\n", len(items), countOutOfDate(items))
	}

	if watch {
		return watchStatus(ctx, app, items)
	}
	return nil
}

// watchStatus streams refresh events as text lines until interrupted.
func watchStatus(ctx context.Context, app *app, items []*breakdown.FileItem) error {
	interval := time.Duration(app.config.FileStatusCheckInterval) * time.Millisecond
	poller, err := refresh.NewPoller(refresh.Options{
		Manager:  app.manager,
		Interval: interval,
		Logger:   app.logger,
	})
	if err != nil {
		return err
	}
	poller.SetItems(items)

	go poller.Run(ctx)
	if app.config.AutoRefresh {
		if notifier, ok := app.sceneOps.(scene.ChangeNotifier); ok {
			go poller.WatchScene(ctx, notifier)
		}
	}

	byKey := make(map[string]*breakdown.FileItem, len(items))
	for _, item := range items {
		byKey[item.NodeName] = item
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-poller.Events():
			switch event.Kind {
			case refresh.KindLatest:
				item, ok := byKey[event.ItemKey]
				if !ok {
					continue
				}
				item.Latest = event.Latest
				fmt.Printf("%s: %s → %s (%s)\n",
					item.NodeName,
					versionCell(item.CurrentVersion()),
					versionCell(item.HighestVersion()),
					item.Status())
			case refresh.KindSceneChange:
				fresh, err := app.manager.ScanScene(ctx, nil)
				if err != nil {
					app.logger.Warn("re-scan failed", "error", err)
					continue
				}
				for _, item := range fresh {
					if _, err := app.manager.LatestPublishedFile(ctx, item); err != nil {
						app.logger.Warn("latest lookup failed", "node", item.NodeName, "error", err)
					}
				}
				items = fresh
				byKey = make(map[string]*breakdown.FileItem, len(items))
				for _, item := range items {
					byKey[item.NodeName] = item
				}
				poller.SetItems(items)
				fmt.Printf("scene changed: %d references\n", len(items))
				writeTable(os.Stdout, statusHeader, statusRows(items))
			}
		}
	}
}

// statusFromSnapshot renders the last scan snapshot.
func statusFromSnapshot(app *app) error {
	snap, err := app.loadSnapshot()
	if err != nil {
		return err
	}
	items := snap.FileItems()

	if app.opts.jsonOutput {
		return cli.WriteJSON(statusReport(items))
	}

	fmt.Printf("snapshot of %s taken %s\n", snap.ScenePath, snap.Taken().Format("2006-01-02 15:04"))
	if stale, err := snap.Stale(); err == nil && stale {
		fmt.Println("warning: the scene changed since this snapshot was taken")
	}
	writeTable(os.Stdout, statusHeader, statusRows(items))
	return nil
}

// statusFromCache scans the scene locally and answers every service
// query from the lookup cache.
func statusFromCache(app *app) error {
	if err := app.requireScene(); err != nil {
		return err
	}
	if err := app.resolveHooks(); err != nil {
		return err
	}
	cache, err := app.openCache()
	if err != nil {
		return err
	}
	defer cache.Close()

	ctx := context.Background()
	objects, err := app.sceneOps.ScanScene(ctx)
	if err != nil {
		return err
	}

	items := make([]*breakdown.FileItem, 0, len(objects))
	staleAnswers := 0
	for _, object := range objects {
		item := &breakdown.FileItem{
			NodeName: object.NodeName,
			NodeType: object.NodeType,
			Path:     object.Path,
			Extra:    object.Extra,
		}
		items = append(items, item)

		entry, err := cache.Resolved(ctx, object.Path)
		if errors.Is(err, publishcache.ErrNotCached) {
			continue
		}
		if err != nil {
			return err
		}
		if entry.Stale {
			staleAnswers++
		}
		item.Record = entry.Record
		if item.Record == nil {
			continue
		}

		latest, err := cache.Latest(ctx, chainKeyFor(item))
		if errors.Is(err, publishcache.ErrNotCached) {
			continue
		}
		if err != nil {
			return err
		}
		if latest.Stale {
			staleAnswers++
		}
		item.Latest = latest.Record
	}

	if staleAnswers > 0 {
		app.logger.Warn("serving stale cache entries", "count", staleAnswers)
	}

	if app.opts.jsonOutput {
		return cli.WriteJSON(statusReport(items))
	}
	writeTable(os.Stdout, statusHeader, statusRows(items))
	return nil
}

func chainKeyFor(item *breakdown.FileItem) string {
	return hook.ChainKey(item.Record)
}

// publishedName is the display name of the item's published file.
func publishedName(item *breakdown.FileItem) string {
	if item.Record == nil {
		return "-"
	}
	return entity.Display(item.Record["name"])
}
