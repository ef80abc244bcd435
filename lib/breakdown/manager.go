// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package breakdown

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pipeline-foundation/breakdown/lib/entity"
	"github.com/pipeline-foundation/breakdown/lib/filter"
	"github.com/pipeline-foundation/breakdown/lib/hook"
	"github.com/pipeline-foundation/breakdown/lib/scene"
	"github.com/pipeline-foundation/breakdown/lib/tracker"
)

// DefaultPublishedFileFields are requested on every published-file
// query regardless of configuration. They cover path resolution,
// version comparison, and the identity fields that define which
// published files are versions of the same file.
var DefaultPublishedFileFields = []string{
	"id",
	"project",
	"entity",
	"name",
	"task",
	"published_file_type",
	"path",
	"version_number",
}

// DefaultVersionHistory caps history queries when no depth is
// configured.
const DefaultVersionHistory = 5

// Options configures a Manager. Client, SceneOps and PublishedFiles
// are required.
type Options struct {
	Client         *tracker.Client
	SceneOps       hook.SceneOperations
	PublishedFiles hook.PublishedFiles

	// UIConfig contributes the record fields its templates render to
	// every query. nil contributes nothing.
	UIConfig hook.UIConfig

	// Fields are extra published-file fields to request on every
	// query, on top of DefaultPublishedFileFields.
	Fields []string

	// Filters narrows which published files count when resolving the
	// latest version of an item.
	Filters filter.List

	// HistoryFilters narrows which published files appear in version
	// history.
	HistoryFilters filter.List

	// VersionHistory is how many history entries to fetch per item.
	// 0 means DefaultVersionHistory, negative means unlimited.
	VersionHistory int

	// GroupBy is the record field GroupItems buckets by. Defaults to
	// "project".
	GroupBy string

	Logger *slog.Logger
}

// Manager ties the scene backend, the tracking client, and the
// configured hooks together into the breakdown operations: scan the
// scene, resolve latest versions and history, and repoint references
// at other versions.
//
// A Manager is safe for concurrent use as long as no two goroutines
// operate on the same *FileItem.
type Manager struct {
	client         *tracker.Client
	sceneOps       hook.SceneOperations
	publishedFiles hook.PublishedFiles
	uiConfig       hook.UIConfig
	fields         []string
	filters        filter.List
	historyFilters filter.List
	versionHistory int
	groupBy        string
	logger         *slog.Logger
}

// NewManager validates opts and builds a Manager.
func NewManager(opts Options) (*Manager, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("breakdown: Options.Client is required")
	}
	if opts.SceneOps == nil {
		return nil, fmt.Errorf("breakdown: Options.SceneOps is required")
	}
	if opts.PublishedFiles == nil {
		return nil, fmt.Errorf("breakdown: Options.PublishedFiles is required")
	}
	if opts.VersionHistory == 0 {
		opts.VersionHistory = DefaultVersionHistory
	}
	if opts.GroupBy == "" {
		opts.GroupBy = "project"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{
		client:         opts.Client,
		sceneOps:       opts.SceneOps,
		publishedFiles: opts.PublishedFiles,
		uiConfig:       opts.UIConfig,
		fields:         opts.Fields,
		filters:        opts.Filters,
		historyFilters: opts.HistoryFilters,
		versionHistory: opts.VersionHistory,
		groupBy:        opts.GroupBy,
		logger:         opts.Logger,
	}, nil
}

// SceneObjects returns the raw scene scan without consulting the
// tracking service.
func (manager *Manager) SceneObjects(ctx context.Context) ([]scene.Object, error) {
	return manager.sceneOps.ScanScene(ctx)
}

// ScanScene scans the scene and resolves every referenced path
// against the tracking service in one batch. Objects whose path has
// no published file come back with a nil Record; callers decide
// whether to show or drop them. extraFields are requested on top of
// the configured field set for this scan only.
func (manager *Manager) ScanScene(ctx context.Context, extraFields []string) ([]*FileItem, error) {
	objects, err := manager.sceneOps.ScanScene(ctx)
	if err != nil {
		return nil, fmt.Errorf("breakdown: scanning scene: %w", err)
	}
	if len(objects) == 0 {
		return nil, nil
	}

	paths := make([]string, 0, len(objects))
	for _, object := range objects {
		paths = append(paths, object.Path)
	}
	records, err := manager.client.ResolvePaths(ctx, paths, manager.QueryFields(extraFields))
	if err != nil {
		return nil, fmt.Errorf("breakdown: resolving scanned paths: %w", err)
	}

	items := make([]*FileItem, 0, len(objects))
	for _, object := range objects {
		items = append(items, &FileItem{
			NodeName: object.NodeName,
			NodeType: object.NodeType,
			Path:     object.Path,
			Extra:    object.Extra,
			Record:   records[object.Path],
		})
	}
	manager.logger.Debug("scene scanned",
		"objects", len(objects),
		"published", len(records))
	return items, nil
}

// LatestPublishedFile resolves the newest version of the item's
// published file through the configured hook and stores it on the
// item. Items without a record get an empty record back and stay
// untouched. A nil result with nil error means no version matched the
// configured filters; that too is stored, so the item's status
// becomes known.
func (manager *Manager) LatestPublishedFile(ctx context.Context, item *FileItem) (entity.Record, error) {
	if item.Record == nil {
		return entity.Record{}, nil
	}
	latest, err := manager.publishedFiles.LatestPublishedFile(ctx, manager.client, item.Record, manager.queryOptions(manager.filters, 0))
	if err != nil {
		return nil, fmt.Errorf("breakdown: latest version of %s: %w", item.NodeName, err)
	}
	item.Latest = latest
	return latest, nil
}

// FileHistory returns the item's version history, newest first,
// limited to the configured depth. The newest entry refreshes
// item.Latest. Items without a record have no history.
func (manager *Manager) FileHistory(ctx context.Context, item *FileItem) ([]entity.Record, error) {
	if item.Record == nil {
		return nil, nil
	}
	limit := manager.versionHistory
	if limit < 0 {
		limit = 0
	}
	history, err := manager.publishedFiles.FileHistory(ctx, manager.client, item.Record, manager.queryOptions(manager.historyFilters, limit))
	if err != nil {
		return nil, fmt.Errorf("breakdown: history of %s: %w", item.NodeName, err)
	}
	if len(history) > 0 {
		item.Latest = history[0]
	}
	return history, nil
}

// UpdateToLatest repoints every item whose latest version is known
// and carries a local path, returning the items actually updated.
// Items that cannot be updated are skipped without error; a scene
// backend failure stops the sweep and returns the items updated so
// far alongside the error.
func (manager *Manager) UpdateToLatest(ctx context.Context, items []*FileItem) ([]*FileItem, error) {
	var updated []*FileItem
	for _, item := range items {
		if len(item.Latest) == 0 {
			continue
		}
		changed, err := manager.UpdateToVersion(ctx, item, item.Latest)
		if err != nil {
			return updated, err
		}
		if changed {
			updated = append(updated, item)
		}
	}
	return updated, nil
}

// UpdateToVersion repoints the item at one specific published file
// and reports whether the scene changed. Records without a local path
// are skipped silently. The item's Path and Record are rewritten only
// after the scene backend accepts the update.
func (manager *Manager) UpdateToVersion(ctx context.Context, item *FileItem, record entity.Record) (bool, error) {
	request, ok := item.ToUpdateRequest(record)
	if !ok {
		manager.logger.Debug("skipping update, no local path",
			"node", item.NodeName,
			"id", record.ID())
		return false, nil
	}
	if err := manager.sceneOps.Update(ctx, request); err != nil {
		return false, fmt.Errorf("breakdown: updating %s: %w", item.NodeName, err)
	}
	item.Path = request.Path
	item.Record = record
	return true, nil
}

// GroupItems buckets items by the configured grouping field.
func (manager *Manager) GroupItems(items []*FileItem) []Group {
	return GroupBy(items, manager.groupBy)
}

// QueryFields assembles the field list for published-file queries:
// the defaults, the configured additions, whatever the UI templates
// render, then extra. Duplicates are dropped, first appearance wins.
func (manager *Manager) QueryFields(extra []string) []string {
	var fields []string
	seen := make(map[string]bool)
	add := func(names []string) {
		for _, name := range names {
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			fields = append(fields, name)
		}
	}
	add(DefaultPublishedFileFields)
	add(manager.fields)
	if manager.uiConfig != nil {
		add(hook.UIConfigFields(manager.uiConfig))
	}
	add(extra)
	return fields
}

func (manager *Manager) queryOptions(filters filter.List, limit int) hook.QueryOptions {
	return hook.QueryOptions{
		Fields:  manager.QueryFields(nil),
		Filters: filters,
		Limit:   limit,
	}
}
