// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/pipeline-foundation/breakdown/cmd/breakdown/cli"
	"github.com/pipeline-foundation/breakdown/lib/panel"
	"github.com/pipeline-foundation/breakdown/lib/refresh"
	"github.com/pipeline-foundation/breakdown/lib/scene"
)

func panelCommand() *cli.Command {
	var opts appOptions
	var cached bool
	return &cli.Command{
		Name:    "panel",
		Summary: "Open the interactive breakdown panel",
		Description: `Open the terminal panel: a grouped reference list with status
glyphs, fuzzy filtering, version history, and update actions.

With --cached the panel renders the last scan snapshot read-only.`,
		Usage: "breakdown panel --scene <manifest> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("panel", pflag.ContinueOnError)
			opts.bind(flagSet)
			flagSet.BoolVar(&cached, "cached", false, "browse the last scan snapshot read-only")
			return flagSet
		},
		Examples: []cli.Example{
			{
				Description: "Browse and update a shot scene",
				Command:     "breakdown panel --scene /prod/shot010/scene.jsonc",
			},
		},
		Run: func(args []string) error {
			return runPanel(opts, cached)
		},
	}
}

func runPanel(opts appOptions, cached bool) error {
	app, err := newApp(opts)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cached {
		snap, err := app.loadSnapshot()
		if err != nil {
			return err
		}
		uiConfig, err := app.resolveUIConfig()
		if err != nil {
			return err
		}
		model := panel.NewModel(panel.Options{
			Source:  panel.NewSnapshotSource(snap, app.config.GroupBy),
			Title:   app.config.DisplayName + " (snapshot)",
			UI:      uiConfig,
			SiteURL: app.config.Tracker.Site,
		})
		return panel.Run(ctx, model, app.config.PanelMode)
	}

	if err := app.requireScene(); err != nil {
		return err
	}
	if err := app.connect(); err != nil {
		return err
	}

	interval := time.Duration(app.config.FileStatusCheckInterval) * time.Millisecond
	poller, err := refresh.NewPoller(refresh.Options{
		Manager:  app.manager,
		Interval: interval,
		Logger:   app.logger,
	})
	if err != nil {
		return err
	}
	go poller.Run(ctx)
	if app.config.AutoRefresh {
		if notifier, ok := app.sceneOps.(scene.ChangeNotifier); ok {
			go poller.WatchScene(ctx, notifier)
		}
	}

	model := panel.NewModel(panel.Options{
		Source:            panel.NewLiveSource(app.manager, poller),
		Title:             app.config.DisplayName,
		InteractiveUpdate: app.config.InteractiveUpdate,
		UI:                app.uiConfig,
		SiteURL:           app.site,
	})
	return panel.Run(ctx, model, app.config.PanelMode)
}
