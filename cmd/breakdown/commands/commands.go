// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the breakdown CLI command tree.
package commands

import (
	"fmt"

	"github.com/pipeline-foundation/breakdown/cmd/breakdown/cli"
	"github.com/pipeline-foundation/breakdown/lib/version"
)

// Root builds and returns the complete breakdown command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "breakdown",
		Description: `Scene breakdown: track and update the published files a scene
references.

Scan a scene manifest, compare every reference against the tracking
service, and repoint out-of-date references at newer published
versions — from the command line or the interactive panel.`,
		Subcommands: []*cli.Command{
			scanCommand(),
			statusCommand(),
			historyCommand(),
			updateCommand(),
			panelCommand(),
			actionsCommand(),
			hooksCommand(),
			authCommand(),
			snapshotCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Printf("breakdown %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "See which references are out of date",
				Command:     "breakdown status --scene /prod/shot010/scene.jsonc",
			},
			{
				Description: "Open the interactive panel",
				Command:     "breakdown panel --scene /prod/shot010/scene.jsonc",
			},
			{
				Description: "Bring the whole scene up to date",
				Command:     "breakdown update --all --scene /prod/shot010/scene.jsonc",
			},
			{
				Description: "Seal tracker credentials for this user",
				Command:     "breakdown auth login --site https://studio.example.com --script-name breakdown",
			},
			{
				Description: "Review the last scan without touching the network",
				Command:     "breakdown status --cached",
			},
		},
	}
}
