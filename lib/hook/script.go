// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package hook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/pipeline-foundation/breakdown/lib/entity"
	"github.com/pipeline-foundation/breakdown/lib/filter"
	"github.com/pipeline-foundation/breakdown/lib/scene"
	"github.com/pipeline-foundation/breakdown/lib/tracker"
)

// script is one hook script evaluated by a yaegi interpreter. The
// contract symbols are resolved once at load time; a nil field means
// the script leaves that hook on its builtin behavior.
type script struct {
	path string

	scanScene  func() ([]map[string]any, error)
	updateItem func(map[string]any) error

	latestFilters  func(map[string]any) ([][]any, error)
	historyFilters func(map[string]any) ([][]any, error)

	fileItemDetails        func() map[string]any
	mainFileHistoryDetails func() map[string]any
	fileHistoryDetails     func() map[string]any

	actions   func() []map[string]any
	runAction func(string, map[string]any) error
}

// loadScript evaluates the file and resolves the contract symbols.
func loadScript(path string, logger *slog.Logger) (*script, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("hook: reading script: %w", err)
	}

	interpreter := interp.New(interp.Options{})
	if err := interpreter.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("hook: preparing interpreter for %s: %w", path, err)
	}
	if _, err := interpreter.Eval(string(source)); err != nil {
		return nil, fmt.Errorf("hook: evaluating %s: %w", path, err)
	}

	s := &script{path: path}
	resolvers := []func() error{
		func() error { return resolveSymbol(interpreter, path, "ScanScene", &s.scanScene) },
		func() error { return resolveSymbol(interpreter, path, "UpdateItem", &s.updateItem) },
		func() error { return resolveSymbol(interpreter, path, "LatestFilters", &s.latestFilters) },
		func() error { return resolveSymbol(interpreter, path, "HistoryFilters", &s.historyFilters) },
		func() error { return resolveSymbol(interpreter, path, "FileItemDetails", &s.fileItemDetails) },
		func() error { return resolveSymbol(interpreter, path, "MainFileHistoryDetails", &s.mainFileHistoryDetails) },
		func() error { return resolveSymbol(interpreter, path, "FileHistoryDetails", &s.fileHistoryDetails) },
		func() error { return resolveSymbol(interpreter, path, "Actions", &s.actions) },
		func() error { return resolveSymbol(interpreter, path, "RunAction", &s.runAction) },
	}
	for _, resolve := range resolvers {
		if err := resolve(); err != nil {
			return nil, err
		}
	}
	logger.Debug("hook script loaded", "path", path)
	return s, nil
}

// resolveSymbol looks up main.<name> in the interpreter and stores the
// function through fn. Scripts omit hooks they do not customize, so an
// undefined symbol is not an error; a defined symbol whose signature
// does not match the contract is.
func resolveSymbol[T any](interpreter *interp.Interpreter, path, name string, fn *T) error {
	value, err := interpreter.Eval("main." + name)
	if err != nil {
		return nil
	}
	typed, ok := value.Interface().(T)
	if !ok {
		return fmt.Errorf("hook: %s: %s has type %T, want %T", path, name, value.Interface(), *fn)
	}
	*fn = typed
	return nil
}

// callScript runs fn on its own goroutine and waits for it or for ctx.
// Interpreted code cannot be preempted, so a cancelled context
// abandons the call rather than stopping it.
func callScript[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		value, err := fn()
		done <- outcome{value: value, err: err}
	}()
	select {
	case result := <-done:
		return result.value, result.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// scriptSceneOperations dispatches scene calls to script symbols,
// falling back per method when the script leaves one undefined.
type scriptSceneOperations struct {
	script   *script
	fallback SceneOperations
}

func (s *scriptSceneOperations) ScanScene(ctx context.Context) ([]scene.Object, error) {
	if s.script.scanScene == nil {
		return s.fallback.ScanScene(ctx)
	}
	rows, err := callScript(ctx, s.script.scanScene)
	if err != nil {
		return nil, fmt.Errorf("hook: %s ScanScene: %w", s.script.path, err)
	}
	objects := make([]scene.Object, 0, len(rows))
	for i, row := range rows {
		object, err := objectFromMap(row)
		if err != nil {
			return nil, fmt.Errorf("hook: %s ScanScene result %d: %w", s.script.path, i, err)
		}
		objects = append(objects, object)
	}
	return objects, nil
}

func (s *scriptSceneOperations) Update(ctx context.Context, request scene.UpdateRequest) error {
	if s.script.updateItem == nil {
		return s.fallback.Update(ctx, request)
	}
	_, err := callScript(ctx, func() (struct{}, error) {
		return struct{}{}, s.script.updateItem(updateRequestMap(request))
	})
	if err != nil {
		return fmt.Errorf("hook: %s UpdateItem: %w", s.script.path, err)
	}
	return nil
}

// watchableSceneOperations augments scriptSceneOperations with the
// fallback's change feed. Returned when the script leaves scanning to
// the builtin, so external manifest edits still invalidate scans.
type watchableSceneOperations struct {
	*scriptSceneOperations
	notifier scene.ChangeNotifier
}

func (w *watchableSceneOperations) WatchChanges() (<-chan struct{}, func(), error) {
	return w.notifier.WatchChanges()
}

// scriptPublishedFiles lets a script replace the filter sets of the
// version queries. Scripts cannot hold the authenticated client, so
// the query itself always runs through the builtin path; the script
// decides what it asks for.
type scriptPublishedFiles struct {
	script  *script
	builtin builtinPublishedFiles
}

func (s *scriptPublishedFiles) LatestPublishedFile(ctx context.Context, client *tracker.Client, record entity.Record, opts QueryOptions) (entity.Record, error) {
	if s.script.latestFilters == nil {
		return s.builtin.LatestPublishedFile(ctx, client, record, opts)
	}
	filters, err := s.scriptFilters(ctx, s.script.latestFilters, "LatestFilters", record)
	if err != nil {
		return nil, err
	}
	return findLatest(ctx, client, filters, opts.Fields)
}

func (s *scriptPublishedFiles) FileHistory(ctx context.Context, client *tracker.Client, record entity.Record, opts QueryOptions) ([]entity.Record, error) {
	if s.script.historyFilters == nil {
		return s.builtin.FileHistory(ctx, client, record, opts)
	}
	filters, err := s.scriptFilters(ctx, s.script.historyFilters, "HistoryFilters", record)
	if err != nil {
		return nil, err
	}
	return findHistory(ctx, client, filters, opts.Fields, opts.Limit)
}

func (s *scriptPublishedFiles) scriptFilters(ctx context.Context, fn func(map[string]any) ([][]any, error), name string, record entity.Record) (filter.List, error) {
	triples, err := callScript(ctx, func() ([][]any, error) {
		return fn(map[string]any(record))
	})
	if err != nil {
		return nil, fmt.Errorf("hook: %s %s: %w", s.script.path, name, err)
	}
	list, err := filter.FromTriples(triples)
	if err != nil {
		return nil, fmt.Errorf("hook: %s %s: %w", s.script.path, name, err)
	}
	return list, nil
}

// uiConfigFromScript captures the script's block maps once: templates
// are static configuration, so they are read at load time and the
// result validated before anything renders.
func uiConfigFromScript(s *script, fallback UIConfig) (UIConfig, error) {
	config := staticUIConfig{
		fileItem:        fallback.FileItemDetails(),
		mainFileHistory: fallback.MainFileHistoryDetails(),
		fileHistory:     fallback.FileHistoryDetails(),
	}
	if s.fileItemDetails != nil {
		config.fileItem = blockFromMap(s.fileItemDetails())
	}
	if s.mainFileHistoryDetails != nil {
		config.mainFileHistory = blockFromMap(s.mainFileHistoryDetails())
	}
	if s.fileHistoryDetails != nil {
		config.fileHistory = blockFromMap(s.fileHistoryDetails())
	}
	if err := ValidateUIConfig(config); err != nil {
		return nil, fmt.Errorf("hook: %s: %w", s.path, err)
	}
	return config, nil
}

// blockFromMap reads the script block shape: top_left, top_right and
// body template strings plus a thumbnail bool.
func blockFromMap(raw map[string]any) Block {
	block := Block{}
	if s, ok := raw["top_left"].(string); ok {
		block.TopLeft = s
	}
	if s, ok := raw["top_right"].(string); ok {
		block.TopRight = s
	}
	if s, ok := raw["body"].(string); ok {
		block.Body = s
	}
	if b, ok := raw["thumbnail"].(bool); ok {
		block.Thumbnail = b
	}
	return block
}

// staticActions adapts a fixed action list to the Actions interface.
type staticActions []Action

func (a staticActions) Actions() []Action { return a }

// actionsFromScript materializes the script's action list. Declared
// actions dispatch back through RunAction by name.
func actionsFromScript(s *script) (Actions, error) {
	if s.actions == nil {
		return nil, fmt.Errorf("hook: %s defines no Actions", s.path)
	}
	if s.runAction == nil {
		return nil, fmt.Errorf("hook: %s declares Actions without RunAction", s.path)
	}
	declared := s.actions()
	actions := make([]Action, 0, len(declared))
	for i, raw := range declared {
		name, _ := raw["name"].(string)
		if name == "" {
			return nil, fmt.Errorf("hook: %s action %d has no name", s.path, i)
		}
		label, _ := raw["label"].(string)
		if label == "" {
			label = name
		}
		actions = append(actions, Action{
			Name:  name,
			Label: label,
			Run: func(ctx context.Context, target Target) error {
				_, err := callScript(ctx, func() (struct{}, error) {
					return struct{}{}, s.runAction(name, targetMap(target))
				})
				if err != nil {
					return fmt.Errorf("hook: %s action %s: %w", s.path, name, err)
				}
				return nil
			},
		})
	}
	return staticActions(actions), nil
}

// objectFromMap converts one script scan row into a scene.Object.
func objectFromMap(row map[string]any) (scene.Object, error) {
	nodeName, _ := row["node_name"].(string)
	if nodeName == "" {
		return scene.Object{}, errors.New("missing node_name")
	}
	path, _ := row["path"].(string)
	if path == "" {
		return scene.Object{}, errors.New("missing path")
	}
	object := scene.Object{NodeName: nodeName, Path: path}
	object.NodeType, _ = row["node_type"].(string)
	object.Extra, _ = row["extra"].(map[string]any)
	return object, nil
}

// updateRequestMap is the shape Update hands a script: the item
// identity plus the new path and the record being applied.
func updateRequestMap(request scene.UpdateRequest) map[string]any {
	return map[string]any{
		"node_name": request.Object.NodeName,
		"node_type": request.Object.NodeType,
		"extra":     request.Object.Extra,
		"path":      request.Path,
		"record":    map[string]any(request.Record),
	}
}

// targetMap is the shape RunAction receives.
func targetMap(target Target) map[string]any {
	return map[string]any{
		"node_name": target.Object.NodeName,
		"node_type": target.Object.NodeType,
		"path":      target.Object.Path,
		"extra":     target.Object.Extra,
		"record":    map[string]any(target.Record),
		"latest":    map[string]any(target.Latest),
	}
}
