// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

// Package actions resolves the operations offered on a scanned file
// item: the built-in update flows, a couple of convenience actions,
// and whatever the configured actions hook contributes for the item's
// published file type.
package actions

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pipeline-foundation/breakdown/lib/breakdown"
	"github.com/pipeline-foundation/breakdown/lib/entity"
	"github.com/pipeline-foundation/breakdown/lib/hook"
	"github.com/pipeline-foundation/breakdown/lib/scene"
)

// Built-in action names, usable in action_mappings configuration and
// on the command line.
const (
	NameUpdateToLatest  = "update_to_latest"
	NameUpdateToVersion = "update_to_version"
	NameShowInTracker   = "show_in_tracker"
	NameRevealPath      = "reveal_path"
)

// Action is one operation bound to one file item, ready to run.
type Action struct {
	// Name identifies the action; built-ins use the Name* constants.
	Name string

	// Label is the human-readable form shown in menus.
	Label string

	// Mutating reports whether running the action changes the scene.
	// Interactive-update confirmation applies only to mutating actions.
	Mutating bool

	// Run executes the action.
	Run func(ctx context.Context) error
}

// Updater is the slice of the breakdown manager the update actions
// need. *breakdown.Manager satisfies it.
type Updater interface {
	UpdateToLatest(ctx context.Context, items []*breakdown.FileItem) ([]*breakdown.FileItem, error)
	UpdateToVersion(ctx context.Context, item *breakdown.FileItem, record entity.Record) (bool, error)
}

// Resolver builds per-item action lists.
type Resolver struct {
	// Updater runs the built-in update flows. Required.
	Updater Updater

	// SiteURL is the tracking site root for show_in_tracker links.
	SiteURL string

	// Output receives the text the informational actions print.
	// Defaults to io.Discard.
	Output io.Writer

	// Mappings binds hook action names to published file type names
	// (the action_mappings configuration option).
	Mappings map[string][]string

	// Extra is the configured actions hook, nil when none.
	Extra hook.Actions
}

// ForItem returns the ordered action list for an item: the built-ins
// first, then the hook actions mapped to the item's published file
// type, in mapping order. Items the scan could not resolve only get
// the reveal action; there is no record to update or link to.
func (resolver *Resolver) ForItem(item *breakdown.FileItem) []Action {
	output := resolver.Output
	if output == nil {
		output = io.Discard
	}

	var list []Action
	if item.Record != nil {
		list = append(list, Action{
			Name:     NameUpdateToLatest,
			Label:    "Update to Latest",
			Mutating: true,
			Run: func(ctx context.Context) error {
				updated, err := resolver.Updater.UpdateToLatest(ctx, []*breakdown.FileItem{item})
				if err != nil {
					return err
				}
				if len(updated) == 0 {
					fmt.Fprintf(output, "%s: already up to date\n", item.NodeName)
				}
				return nil
			},
		})
		if url := TrackerURL(resolver.SiteURL, item.Record); url != "" {
			list = append(list, Action{
				Name:  NameShowInTracker,
				Label: "Show in Tracker",
				Run: func(ctx context.Context) error {
					_, err := fmt.Fprintln(output, url)
					return err
				},
			})
		}
	}
	list = append(list, Action{
		Name:  NameRevealPath,
		Label: "Reveal Path",
		Run: func(ctx context.Context) error {
			_, err := fmt.Fprintln(output, item.Path)
			return err
		},
	})

	list = append(list, resolver.mappedActions(item)...)
	return list
}

// ForVersion returns the update action repointing item at one specific
// published file, as picked from its version history.
func (resolver *Resolver) ForVersion(item *breakdown.FileItem, record entity.Record) Action {
	version, _ := entity.Int(record["version_number"])
	return Action{
		Name:     NameUpdateToVersion,
		Label:    fmt.Sprintf("Update to v%03d", version),
		Mutating: true,
		Run: func(ctx context.Context) error {
			changed, err := resolver.Updater.UpdateToVersion(ctx, item, record)
			if err != nil {
				return err
			}
			if !changed {
				return fmt.Errorf("actions: version %d of %s has no local path", version, item.NodeName)
			}
			return nil
		},
	}
}

// mappedActions filters the hook's contributions down to the names
// mapped for the item's published file type, preserving mapping order.
func (resolver *Resolver) mappedActions(item *breakdown.FileItem) []Action {
	if resolver.Extra == nil || item.Record == nil {
		return nil
	}
	typeName := publishedFileTypeName(item.Record)
	mapped := resolver.Mappings[typeName]
	if len(mapped) == 0 {
		return nil
	}

	available := make(map[string]hook.Action)
	for _, contributed := range resolver.Extra.Actions() {
		available[contributed.Name] = contributed
	}

	target := hook.Target{
		Object: scene.Object{
			NodeName: item.NodeName,
			NodeType: item.NodeType,
			Path:     item.Path,
			Extra:    item.Extra,
		},
		Record: item.Record,
		Latest: item.Latest,
	}

	var list []Action
	for _, name := range mapped {
		contributed, ok := available[name]
		if !ok {
			continue
		}
		run := contributed.Run
		list = append(list, Action{
			Name:  contributed.Name,
			Label: contributed.Label,
			Run: func(ctx context.Context) error {
				return run(ctx, target)
			},
		})
	}
	return list
}

// TrackerURL returns the detail page URL for a record on the tracking
// site, or "" when the site or the record identity is unknown.
func TrackerURL(site string, record entity.Record) string {
	if site == "" || record == nil {
		return ""
	}
	id := record.ID()
	if id == 0 {
		return ""
	}
	entityType := record.Type()
	if entityType == "" {
		entityType = "PublishedFile"
	}
	return strings.TrimRight(site, "/") + "/detail/" + entityType + "/" + strconv.FormatInt(id, 10)
}

// publishedFileTypeName returns the display name of the record's
// published file type, "" when absent.
func publishedFileTypeName(record entity.Record) string {
	ref, ok := entity.RefFrom(record["published_file_type"])
	if !ok {
		return ""
	}
	return ref.Name
}
