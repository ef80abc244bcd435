// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/pipeline-foundation/breakdown/cmd/breakdown/cli"
	"github.com/pipeline-foundation/breakdown/lib/breakdown"
	"github.com/pipeline-foundation/breakdown/lib/entity"
)

func updateCommand() *cli.Command {
	var opts appOptions
	var all bool
	var node string
	var toVersion int64
	var yes bool
	return &cli.Command{
		Name:    "update",
		Summary: "Repoint references at newer published versions",
		Description: `Update scene references to newer published versions. --all updates
every out-of-date reference; --node updates one. Locked references
are never touched by --all and refused by --node.

A reference whose target version has no local path cannot be updated;
with --all such references are skipped and reported, and the command
exits with code 3.`,
		Usage: "breakdown update (--all | --node <name>) [--to-version <v>] --scene <manifest> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("update", pflag.ContinueOnError)
			opts.bind(flagSet)
			flagSet.BoolVar(&all, "all", false, "update every out-of-date reference")
			flagSet.StringVar(&node, "node", "", "update one reference by node name")
			flagSet.Int64Var(&toVersion, "to-version", 0, "target version number (requires --node)")
			flagSet.BoolVar(&yes, "yes", false, "skip the interactive confirmation")
			return flagSet
		},
		Examples: []cli.Example{
			{
				Description: "Bring the whole scene up to date",
				Command:     "breakdown update --all --scene /prod/shot010/scene.jsonc",
			},
			{
				Description: "Roll one reference back to version 3",
				Command:     "breakdown update --node shot010_anim --to-version 3 --scene /prod/shot010/scene.jsonc",
			},
		},
		Run: func(args []string) error {
			if all == (node != "") {
				return cli.Usagef("pass exactly one of --all or --node")
			}
			if toVersion != 0 && node == "" {
				return cli.Usagef("--to-version requires --node")
			}
			return runUpdate(opts, all, node, toVersion, yes)
		},
	}
}

func runUpdate(opts appOptions, all bool, node string, toVersion int64, yes bool) error {
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
	for _, item := range items {
		if _, err := app.manager.LatestPublishedFile(ctx, item); err != nil {
			return err
		}
	}

	if node != "" {
		return updateSingle(ctx, app, items, node, toVersion, yes)
	}
	return updateAll(ctx, app, items, yes)
}

func updateSingle(ctx context.Context, app *app, items []*breakdown.FileItem, node string, toVersion int64, yes bool) error {
	var item *breakdown.FileItem
	for _, candidate := range items {
		if candidate.NodeName == node {
			item = candidate
			break
		}
	}
	if item == nil {
		return fmt.Errorf("node %q is not in the scene", node)
	}
	if item.Locked {
		return fmt.Errorf("node %q is locked; unlock it before updating", node)
	}
	if item.Record == nil {
		return fmt.Errorf("node %q does not resolve to a published file", node)
	}

	target := item.Latest
	if toVersion != 0 {
		history, err := app.manager.FileHistory(ctx, item)
		if err != nil {
			return err
		}
		target = nil
		for _, record := range history {
			if version, _ := entity.Int(record["version_number"]); version == toVersion {
				target = record
				break
			}
		}
		if target == nil {
			return fmt.Errorf("node %q has no version %d in its history", node, toVersion)
		}
	}
	if len(target) == 0 {
		return fmt.Errorf("node %q has no published version matching the configured filters", node)
	}

	if !confirm(app, yes, fmt.Sprintf("Update %s to %s?", node, versionLabel(target))) {
		fmt.Println("aborted")
		return nil
	}

	changed, err := app.manager.UpdateToVersion(ctx, item, target)
	if err != nil {
		return err
	}
	if !changed {
		return fmt.Errorf("node %q: the target version has no local path", node)
	}
	fmt.Printf("%s → %s\n", node, versionLabel(target))
	return nil
}

func updateAll(ctx context.Context, app *app, items []*breakdown.FileItem, yes bool) error {
	targets, locked := selectTargets(items)
	for _, item := range locked {
		fmt.Printf("skipping %s: locked\n", item.NodeName)
	}
	if len(targets) == 0 {
		fmt.Println("everything is up to date")
		return nil
	}

	if !confirm(app, yes, fmt.Sprintf("Update %d reference(s) to latest?", len(targets))) {
		fmt.Println("aborted")
		return nil
	}

	updated, err := app.manager.UpdateToLatest(ctx, targets)
	updatedSet := make(map[string]bool, len(updated))
	for _, item := range updated {
		fmt.Printf("%s → %s\n", item.NodeName, versionCell(item.CurrentVersion()))
		updatedSet[item.NodeName] = true
	}
	if err != nil {
		return err
	}

	if len(updated) < len(targets) {
		for _, item := range targets {
			if !updatedSet[item.NodeName] {
				fmt.Printf("skipped %s: the latest version has no local path\n", item.NodeName)
			}
		}
		fmt.Printf("updated %d of %d references\n", len(updated), len(targets))
		return &cli.ExitError{Code: 3}
	}

	fmt.Printf("updated %d reference(s)\n", len(updated))
	return nil
}

// selectTargets splits items into the set a bulk update touches (out
// of date, unlocked) and the locked ones it reports.
func selectTargets(items []*breakdown.FileItem) (targets, locked []*breakdown.FileItem) {
	for _, item := range items {
		switch item.Status() {
		case breakdown.StatusOutOfDate:
			targets = append(targets, item)
		case breakdown.StatusLocked:
			if item.CurrentVersion() < item.HighestVersion() {
				locked = append(locked, item)
			}
		}
	}
	return targets, locked
}

// confirm asks before mutating when interactive updates are
// configured. --yes and non-interactive configurations skip the
// prompt.
func confirm(app *app, yes bool, prompt string) bool {
	if yes || !app.config.InteractiveUpdate {
		return true
	}
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// versionLabel names a record for update output.
func versionLabel(record entity.Record) string {
	version, _ := entity.Int(record["version_number"])
	return versionCell(version)
}
