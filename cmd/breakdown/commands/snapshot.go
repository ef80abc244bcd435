// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/pflag"

	"github.com/pipeline-foundation/breakdown/cmd/breakdown/cli"
	"github.com/pipeline-foundation/breakdown/lib/breakdown"
	"github.com/pipeline-foundation/breakdown/lib/scene"
)

func snapshotCommand() *cli.Command {
	return &cli.Command{
		Name:    "snapshot",
		Summary: "Inspect the last scan snapshot",
		Subcommands: []*cli.Command{
			snapshotShowCommand(),
			snapshotDiffCommand(),
		},
	}
}

func snapshotShowCommand() *cli.Command {
	var opts appOptions
	return &cli.Command{
		Name:    "show",
		Summary: "Render the last scan snapshot",
		Usage:   "breakdown snapshot show [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("snapshot show", pflag.ContinueOnError)
			opts.bind(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			app, err := newApp(opts)
			if err != nil {
				return err
			}
			snap, err := app.loadSnapshot()
			if err != nil {
				return err
			}
			items := snap.FileItems()

			if opts.jsonOutput {
				return cli.WriteJSON(struct {
					ScenePath string       `json:"scene_path"`
					TakenAt   string       `json:"taken_at"`
					Items     []statusItem `json:"items"`
				}{
					ScenePath: snap.ScenePath,
					TakenAt:   snap.Taken().Format("2006-01-02 15:04:05"),
					Items:     statusReport(items),
				})
			}

			fmt.Printf("scene:  %s\n", snap.ScenePath)
			fmt.Printf("taken:  %s\n", snap.Taken().Format("2006-01-02 15:04"))
			if stale, err := snap.Stale(); err == nil && stale {
				fmt.Println("state:  stale (the scene changed since)")
			}
			fmt.Println()
			writeTable(os.Stdout, statusHeader, statusRows(items))
			return nil
		},
	}
}

func snapshotDiffCommand() *cli.Command {
	var opts appOptions
	return &cli.Command{
		Name:    "diff",
		Summary: "Compare the snapshot against the current scene",
		Description: `Scan the scene manifest locally and report how its reference set
moved since the snapshot: nodes added, nodes removed, and nodes whose
path changed. The tracking service is not contacted.`,
		Usage: "breakdown snapshot diff --scene <manifest> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("snapshot diff", pflag.ContinueOnError)
			opts.bind(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			return runSnapshotDiff(opts)
		},
	}
}

func runSnapshotDiff(opts appOptions) error {
	app, err := newApp(opts)
	if err != nil {
		return err
	}
	if err := app.requireScene(); err != nil {
		return err
	}
	if err := app.resolveHooks(); err != nil {
		return err
	}

	snap, err := app.loadSnapshot()
	if err != nil {
		return err
	}
	objects, err := app.sceneOps.ScanScene(context.Background())
	if err != nil {
		return err
	}

	diff := diffSnapshot(snap.FileItems(), objects)

	if opts.jsonOutput {
		return cli.WriteJSON(diff)
	}

	if len(diff.Added) == 0 && len(diff.Removed) == 0 && len(diff.Repathed) == 0 {
		fmt.Printf("no changes (%d references)\n", diff.Unchanged)
		return nil
	}
	for _, name := range diff.Added {
		fmt.Printf("added    %s\n", name)
	}
	for _, name := range diff.Removed {
		fmt.Printf("removed  %s\n", name)
	}
	for _, change := range diff.Repathed {
		fmt.Printf("repathed %s\n  %s\n  → %s\n", change.NodeName, change.From, change.To)
	}
	fmt.Printf("%d unchanged\n", diff.Unchanged)
	return nil
}

// pathChange records a reference whose path moved since the snapshot.
type pathChange struct {
	NodeName string `json:"node_name"`
	From     string `json:"from"`
	To       string `json:"to"`
}

// snapshotDiff is the delta between a snapshot and the current scene.
type snapshotDiff struct {
	Added     []string     `json:"added"`
	Removed   []string     `json:"removed"`
	Repathed  []pathChange `json:"repathed"`
	Unchanged int          `json:"unchanged"`
}

// diffSnapshot compares the snapshot's items with a fresh scene scan,
// keyed by node name. Output is sorted for stable rendering.
func diffSnapshot(snapItems []*breakdown.FileItem, objects []scene.Object) snapshotDiff {
	before := make(map[string]string, len(snapItems))
	for _, item := range snapItems {
		before[item.NodeName] = item.Path
	}

	var diff snapshotDiff
	seen := make(map[string]bool, len(objects))
	for _, object := range objects {
		seen[object.NodeName] = true
		previousPath, ok := before[object.NodeName]
		switch {
		case !ok:
			diff.Added = append(diff.Added, object.NodeName)
		case previousPath != object.Path:
			diff.Repathed = append(diff.Repathed, pathChange{
				NodeName: object.NodeName,
				From:     previousPath,
				To:       object.Path,
			})
		default:
			diff.Unchanged++
		}
	}
	for name := range before {
		if !seen[name] {
			diff.Removed = append(diff.Removed, name)
		}
	}

	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)
	sort.Slice(diff.Repathed, func(i, j int) bool {
		return diff.Repathed[i].NodeName < diff.Repathed[j].NodeName
	})
	return diff
}
