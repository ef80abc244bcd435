// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package hook

import (
	"context"

	"github.com/pipeline-foundation/breakdown/lib/entity"
	"github.com/pipeline-foundation/breakdown/lib/filter"
	"github.com/pipeline-foundation/breakdown/lib/scene"
	"github.com/pipeline-foundation/breakdown/lib/tracker"
)

// SceneOperations abstracts the scene backend: how file references are
// discovered and how a reference is repointed at a different file.
// Implementations that can report external scene changes additionally
// implement [scene.ChangeNotifier]; callers upgrade with a type
// assertion.
type SceneOperations interface {
	// ScanScene lists every file reference in the current scene.
	ScanScene(ctx context.Context) ([]scene.Object, error)

	// Update repoints one reference at request.Path.
	Update(ctx context.Context, request scene.UpdateRequest) error
}

// QueryOptions carries the configuration-derived parts of a
// published-file query.
type QueryOptions struct {
	// Fields lists the record fields to fetch.
	Fields []string

	// Filters is appended to the implementation's own filter set. For
	// latest-version queries this is the configured published-file
	// filter list, for history queries the history variant.
	Filters filter.List

	// Limit caps history results, 0 meaning no cap. Latest-version
	// queries ignore it.
	Limit int
}

// PublishedFiles answers version queries for a scanned file item.
// record is the item's current published-file record as resolved from
// its path.
type PublishedFiles interface {
	// LatestPublishedFile returns the newest published file sharing
	// the record's identity, or nil when nothing matches.
	LatestPublishedFile(ctx context.Context, client *tracker.Client, record entity.Record, opts QueryOptions) (entity.Record, error)

	// FileHistory returns the record's version history, newest first.
	FileHistory(ctx context.Context, client *tracker.Client, record entity.Record, opts QueryOptions) ([]entity.Record, error)
}

// Block is one templated detail pane. The strings are templates in the
// mini-language of lib/template; empty strings render nothing.
type Block struct {
	TopLeft   string
	TopRight  string
	Body      string
	Thumbnail bool
}

// IsZero reports whether no field of the block is set.
func (b Block) IsZero() bool {
	return b == Block{}
}

// UIConfig supplies the template strings the presentation layer
// renders for file items and their history.
type UIConfig interface {
	// FileItemDetails templates the per-item cell in the main list.
	FileItemDetails() Block

	// MainFileHistoryDetails templates the header pane shown for the
	// selected item.
	MainFileHistoryDetails() Block

	// FileHistoryDetails templates one row of the selected item's
	// version history.
	FileHistoryDetails() Block
}

// OverlayUIConfig layers overlay on top of base: any block the overlay
// sets replaces the base block wholesale, zero blocks defer to base.
func OverlayUIConfig(base, overlay UIConfig) UIConfig {
	return overlayUIConfig{base: base, overlay: overlay}
}

type overlayUIConfig struct {
	base    UIConfig
	overlay UIConfig
}

func (o overlayUIConfig) FileItemDetails() Block {
	if block := o.overlay.FileItemDetails(); !block.IsZero() {
		return block
	}
	return o.base.FileItemDetails()
}

func (o overlayUIConfig) MainFileHistoryDetails() Block {
	if block := o.overlay.MainFileHistoryDetails(); !block.IsZero() {
		return block
	}
	return o.base.MainFileHistoryDetails()
}

func (o overlayUIConfig) FileHistoryDetails() Block {
	if block := o.overlay.FileHistoryDetails(); !block.IsZero() {
		return block
	}
	return o.base.FileHistoryDetails()
}

// Target is the file item an action runs against.
type Target struct {
	// Object is the scanned scene reference.
	Object scene.Object

	// Record is the item's current published-file record, nil when its
	// path resolved to nothing.
	Record entity.Record

	// Latest is the newest known version, nil while unresolved.
	Latest entity.Record
}

// Action is one hook-contributed operation offered on file items
// beyond the built-in update flows.
type Action struct {
	// Name identifies the action in action_mappings configuration.
	Name string

	// Label is the human-readable form shown in menus.
	Label string

	// Run executes the action against one item.
	Run func(ctx context.Context, target Target) error
}

// Actions contributes extra per-item actions.
type Actions interface {
	Actions() []Action
}
