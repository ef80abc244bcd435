// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"os"

	"github.com/spf13/pflag"

	"github.com/pipeline-foundation/breakdown/cmd/breakdown/cli"
	"github.com/pipeline-foundation/breakdown/lib/breakdown"
	"github.com/pipeline-foundation/breakdown/lib/entity"
	"github.com/pipeline-foundation/breakdown/lib/publishcache"
)

func scanCommand() *cli.Command {
	var opts appOptions
	return &cli.Command{
		Name:    "scan",
		Summary: "Scan the scene and resolve references to published files",
		Description: `Scan the scene manifest for file references and resolve each local
path to its published file on the tracking service. The resolved
answers are written to the local cache and a scan snapshot.`,
		Usage: "breakdown scan --scene <manifest> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("scan", pflag.ContinueOnError)
			opts.bind(flagSet)
			return flagSet
		},
		Examples: []cli.Example{
			{
				Description: "Scan a shot scene",
				Command:     "breakdown scan --scene /prod/shot010/scene.jsonc",
			},
		},
		Run: func(args []string) error {
			return runScan(opts)
		},
	}
}

func runScan(opts appOptions) error {
	app, err := newApp(opts)
	if err != nil {
		return err
	}
	if err := app.requireScene(); err != nil {
		return err
	}
	if err := app.connect(); err != nil {
		return err
	}

	ctx := context.Background()
	items, err := app.manager.ScanScene(ctx, nil)
	if err != nil {
		return err
	}

	if cache, err := app.openCache(); err == nil {
		cacheScanResults(ctx, app, cache, items)
		cache.Close()
	} else {
		app.logger.Warn("cache unavailable", "error", err)
	}
	app.writeSnapshot(items)

	if opts.jsonOutput {
		return cli.WriteJSON(scanReport(items))
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		published := "-"
		if item.Record != nil {
			published = entity.Display(item.Record["name"])
		}
		rows = append(rows, []string{
			item.NodeName,
			item.NodeType,
			versionCell(item.CurrentVersion()),
			published,
			item.Path,
		})
	}
	writeTable(os.Stdout, []string{"NODE", "TYPE", "VERSION", "PUBLISHED FILE", "PATH"}, rows)
	return nil
}

// cacheScanResults stores every path-resolution answer, including the
// misses: a cached "not published" saves the same round trip as a hit.
func cacheScanResults(ctx context.Context, app *app, cache *publishcache.Cache, items []*breakdown.FileItem) {
	for _, item := range items {
		if err := cache.PutResolved(ctx, item.Path, item.Record); err != nil {
			app.logger.Warn("caching resolution failed", "path", item.Path, "error", err)
			return
		}
	}
}

// cacheLatestResults stores the latest-version answers keyed by
// version chain, for offline status.
func cacheLatestResults(ctx context.Context, app *app, cache *publishcache.Cache, items []*breakdown.FileItem) {
	for _, item := range items {
		if item.Record == nil {
			continue
		}
		key := chainKeyFor(item)
		if err := cache.PutLatest(ctx, key, item.Latest); err != nil {
			app.logger.Warn("caching latest failed", "node", item.NodeName, "error", err)
			return
		}
	}
}

type scanItem struct {
	NodeName  string `json:"node_name"`
	NodeType  string `json:"node_type,omitempty"`
	Path      string `json:"path"`
	Published bool   `json:"published"`
	Name      string `json:"name,omitempty"`
	Version   int64  `json:"version,omitempty"`
}

func scanReport(items []*breakdown.FileItem) []scanItem {
	report := make([]scanItem, 0, len(items))
	for _, item := range items {
		entry := scanItem{
			NodeName:  item.NodeName,
			NodeType:  item.NodeType,
			Path:      item.Path,
			Published: item.Record != nil,
		}
		if item.Record != nil {
			entry.Name = entity.Display(item.Record["name"])
			entry.Version = item.CurrentVersion()
		}
		report = append(report, entry)
	}
	return report
}
