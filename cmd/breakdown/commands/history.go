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
	"github.com/pipeline-foundation/breakdown/lib/entity"
)

func historyCommand() *cli.Command {
	var opts appOptions
	return &cli.Command{
		Name:    "history",
		Summary: "Show the version history of one reference",
		Usage:   "breakdown history <node> --scene <manifest> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("history", pflag.ContinueOnError)
			opts.bind(flagSet)
			return flagSet
		},
		Examples: []cli.Example{
			{
				Description: "List the published versions behind a scene node",
				Command:     "breakdown history shot010_anim --scene /prod/shot010/scene.jsonc",
			},
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return cli.Usagef("history takes exactly one node name")
			}
			return runHistory(opts, args[0])
		},
	}
}

func runHistory(opts appOptions, nodeName string) error {
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
		if candidate.NodeName == nodeName {
			item = candidate
			break
		}
	}
	if item == nil {
		return fmt.Errorf("node %q is not in the scene", nodeName)
	}
	if item.Record == nil {
		return fmt.Errorf("node %q does not resolve to a published file", nodeName)
	}

	history, err := app.manager.FileHistory(ctx, item)
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		return cli.WriteJSON(historyReport(item, history))
	}

	fmt.Printf("%s (%s, currently %s)\n", item.NodeName, publishedName(item), versionCell(item.CurrentVersion()))
	rows := make([][]string, 0, len(history))
	current := item.Record.ID()
	for _, record := range history {
		marker := ""
		if record.ID() == current {
			marker = "◀ in scene"
		}
		version, _ := entity.Int(record["version_number"])
		rows = append(rows, []string{
			versionCell(version),
			entity.Display(record["created_at"]),
			entity.Display(record["created_by"]),
			entity.Display(record["description"]),
			marker,
		})
	}
	writeTable(os.Stdout, []string{"VERSION", "CREATED", "BY", "DESCRIPTION", ""}, rows)
	return nil
}

type historyEntry struct {
	Version     int64  `json:"version"`
	ID          int64  `json:"id"`
	CreatedAt   string `json:"created_at,omitempty"`
	CreatedBy   string `json:"created_by,omitempty"`
	Description string `json:"description,omitempty"`
	InScene     bool   `json:"in_scene"`
}

func historyReport(item *breakdown.FileItem, history []entity.Record) []historyEntry {
	current := item.Record.ID()
	report := make([]historyEntry, 0, len(history))
	for _, record := range history {
		version, _ := entity.Int(record["version_number"])
		report = append(report, historyEntry{
			Version:     version,
			ID:          record.ID(),
			CreatedAt:   entity.Display(record["created_at"]),
			CreatedBy:   entity.Display(record["created_by"]),
			Description: entity.Display(record["description"]),
			InScene:     record.ID() == current,
		})
	}
	return report
}
