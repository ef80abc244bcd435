// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/pipeline-foundation/breakdown/cmd/breakdown/cli"
	"github.com/pipeline-foundation/breakdown/lib/breakdown"
)

func actionsCommand() *cli.Command {
	var opts appOptions
	var run string
	var yes bool
	return &cli.Command{
		Name:    "actions",
		Summary: "List or run the actions available for a reference",
		Description: `List the actions available for one reference: the built-in update
and navigation actions plus whatever the actions hook maps to the
reference's published file type. --run executes one by name.`,
		Usage: "breakdown actions <node> [--run <name>] --scene <manifest> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("actions", pflag.ContinueOnError)
			opts.bind(flagSet)
			flagSet.StringVar(&run, "run", "", "run the named action instead of listing")
			flagSet.BoolVar(&yes, "yes", false, "skip the interactive confirmation")
			return flagSet
		},
		Examples: []cli.Example{
			{
				Description: "See what can be done with a reference",
				Command:     "breakdown actions shot010_anim --scene /prod/shot010/scene.jsonc",
			},
			{
				Description: "Print the reference's tracking-site URL",
				Command:     "breakdown actions shot010_anim --run show_in_tracker --scene /prod/shot010/scene.jsonc",
			},
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return cli.Usagef("actions takes exactly one node name")
			}
			return runActions(opts, args[0], run, yes)
		},
	}
}

func runActions(opts appOptions, node, run string, yes bool) error {
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
	if _, err := app.manager.LatestPublishedFile(ctx, item); err != nil {
		return err
	}

	available := app.actionResolver().ForItem(item)

	if run == "" {
		if opts.jsonOutput {
			type actionEntry struct {
				Name     string `json:"name"`
				Label    string `json:"label"`
				Mutating bool   `json:"mutating"`
			}
			report := make([]actionEntry, 0, len(available))
			for _, action := range available {
				report = append(report, actionEntry{action.Name, action.Label, action.Mutating})
			}
			return cli.WriteJSON(report)
		}
		rows := make([][]string, 0, len(available))
		for _, action := range available {
			kind := ""
			if action.Mutating {
				kind = "mutating"
			}
			rows = append(rows, []string{action.Name, action.Label, kind})
		}
		writeTable(os.Stdout, []string{"NAME", "LABEL", ""}, rows)
		return nil
	}

	for _, action := range available {
		if action.Name != run {
			continue
		}
		if action.Mutating && !confirm(app, yes, fmt.Sprintf("%s on %s?", action.Label, node)) {
			fmt.Println("aborted")
			return nil
		}
		return action.Run(ctx)
	}
	return fmt.Errorf("node %q has no action %q", node, run)
}
