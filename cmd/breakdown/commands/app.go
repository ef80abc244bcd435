// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/pipeline-foundation/breakdown/cmd/breakdown/cli"
	"github.com/pipeline-foundation/breakdown/lib/actions"
	"github.com/pipeline-foundation/breakdown/lib/breakdown"
	"github.com/pipeline-foundation/breakdown/lib/config"
	"github.com/pipeline-foundation/breakdown/lib/hook"
	"github.com/pipeline-foundation/breakdown/lib/publishcache"
	"github.com/pipeline-foundation/breakdown/lib/scene"
	"github.com/pipeline-foundation/breakdown/lib/sealed"
	"github.com/pipeline-foundation/breakdown/lib/snapshot"
	"github.com/pipeline-foundation/breakdown/lib/tracker"
)

// appOptions holds the global flags shared by every subcommand.
type appOptions struct {
	configPath string
	scenePath  string
	logLevel   string
	jsonOutput bool
}

// bind registers the global flags on a subcommand's flag set. The
// command tree has no persistent flags, so every leaf binds its own
// copy; the flags behave identically everywhere.
func (opts *appOptions) bind(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&opts.configPath, "config", "", "config manifest path (default: $BREAKDOWN_CONFIG)")
	flagSet.StringVar(&opts.scenePath, "scene", "", "scene manifest path")
	flagSet.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flagSet.BoolVar(&opts.jsonOutput, "json", false, "output as JSON")
}

// app is the assembled application state behind a command invocation:
// configuration, logger, and the hook registry. Hook resolution and
// the tracker connection are attached on demand, since commands like
// "auth status" or "status --cached" need neither a scene nor a
// network connection.
type app struct {
	opts   appOptions
	config *config.Config
	logger *slog.Logger

	registry *hook.Registry

	// Populated by connect.
	site    string
	client  *tracker.Client
	manager *breakdown.Manager

	sceneOps     hook.SceneOperations
	published    hook.PublishedFiles
	uiConfig     hook.UIConfig
	extraActions hook.Actions
}

// newApp loads configuration and builds the logger and hook registry.
func newApp(opts appOptions) (*app, error) {
	var cfg *config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger := cli.NewCommandLogger(opts.logLevel)

	return &app{
		opts:     opts,
		config:   cfg,
		logger:   logger,
		registry: hook.NewRegistry(hook.Deps{ManifestPath: opts.scenePath, Logger: logger}),
	}, nil
}

// resolveHooks resolves the configured hook references. Safe to call
// more than once.
func (a *app) resolveHooks() error {
	if a.sceneOps != nil {
		return nil
	}

	sceneOps, err := a.registry.SceneOperations(a.config.HookSceneOperations)
	if err != nil {
		return err
	}
	published, err := a.registry.PublishedFiles(a.config.HookGetPublishedFiles)
	if err != nil {
		return err
	}
	uiConfig, err := a.resolveUIConfig()
	if err != nil {
		return err
	}
	extra, err := a.registry.Actions(a.config.ActionsHook)
	if err != nil {
		return err
	}

	a.sceneOps = sceneOps
	a.published = published
	a.uiConfig = uiConfig
	a.extraActions = extra
	return nil
}

// resolveUIConfig resolves the base presentation hook and layers the
// advanced one over it when configured.
func (a *app) resolveUIConfig() (hook.UIConfig, error) {
	uiConfig, err := a.registry.UIConfig(a.config.HookUIConfig)
	if err != nil {
		return nil, err
	}
	if a.config.HookUIConfigAdvanced != "" {
		advanced, err := a.registry.UIConfig(a.config.HookUIConfigAdvanced)
		if err != nil {
			return nil, err
		}
		uiConfig = hook.OverlayUIConfig(uiConfig, advanced)
	}
	return uiConfig, nil
}

// connect resolves hooks and credentials and builds the tracker client
// and the breakdown manager.
func (a *app) connect() error {
	if a.manager != nil {
		return nil
	}
	if err := a.resolveHooks(); err != nil {
		return err
	}

	bundle, err := sealed.Resolve(a.config.Tracker.CredentialsFile)
	if err != nil {
		return err
	}
	site := a.config.Tracker.Site
	if site == "" {
		site = bundle.Site
	}
	if site == "" {
		return fmt.Errorf("no tracking site configured: set tracker.site or %s", sealed.EnvSite)
	}

	client, err := tracker.NewClient(tracker.Config{
		BaseURL:    site,
		ScriptName: bundle.ScriptName,
		ScriptKey:  bundle.ScriptKey,
		Logger:     a.logger,
	})
	if err != nil {
		return err
	}

	manager, err := breakdown.NewManager(breakdown.Options{
		Client:         client,
		SceneOps:       a.sceneOps,
		PublishedFiles: a.published,
		UIConfig:       a.uiConfig,
		Fields:         a.config.PublishedFileFields,
		Filters:        a.config.PublishedFileFilters,
		HistoryFilters: a.config.HistoryPublishedFileFilters,
		VersionHistory: a.config.VersionHistory,
		GroupBy:        a.config.GroupBy,
		Logger:         a.logger,
	})
	if err != nil {
		return err
	}

	a.site = site
	a.client = client
	a.manager = manager
	return nil
}

// actionResolver builds the action resolver for the connected manager.
func (a *app) actionResolver() *actions.Resolver {
	return &actions.Resolver{
		Updater:  a.manager,
		SiteURL:  a.site,
		Output:   os.Stdout,
		Mappings: a.config.ActionMappings,
		Extra:    a.extraActions,
	}
}

// openCache opens the local published-file lookup cache, creating its
// parent directory when needed.
func (a *app) openCache() (*publishcache.Cache, error) {
	ttl, err := time.ParseDuration(a.config.Cache.TTL)
	if err != nil || ttl <= 0 {
		ttl = publishcache.DefaultTTL
	}
	if err := os.MkdirAll(filepath.Dir(a.config.Cache.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return publishcache.Open(publishcache.Options{
		Path:   a.config.Cache.Path,
		TTL:    ttl,
		Logger: a.logger,
	})
}

// writeSnapshot persists the scan result so offline commands can
// replay it. Failures are logged, not fatal: a broken snapshot path
// should not sink the command whose real output already succeeded.
func (a *app) writeSnapshot(items []*breakdown.FileItem) {
	if a.config.Snapshot.Path == "" || a.opts.scenePath == "" {
		return
	}
	fingerprint, err := scene.FingerprintFile(a.opts.scenePath)
	if err != nil {
		a.logger.Warn("snapshot skipped", "error", err)
		return
	}
	compression, err := snapshot.ParseCompression(a.config.Snapshot.Compression)
	if err != nil {
		compression = snapshot.CompressionZstd
	}
	if err := os.MkdirAll(filepath.Dir(a.config.Snapshot.Path), 0o755); err != nil {
		a.logger.Warn("snapshot skipped", "error", err)
		return
	}
	snap := snapshot.Capture(a.opts.scenePath, fingerprint, items, time.Now())
	if err := snapshot.Write(a.config.Snapshot.Path, snap, compression); err != nil {
		a.logger.Warn("snapshot write failed", "path", a.config.Snapshot.Path, "error", err)
	}
}

// loadSnapshot reads the snapshot written by the last scan.
func (a *app) loadSnapshot() (*snapshot.Snapshot, error) {
	return snapshot.Load(a.config.Snapshot.Path)
}

// requireScene returns a usage error when the command needs a scene
// manifest and none was given.
func (a *app) requireScene() error {
	if a.opts.scenePath == "" {
		return cli.Usagef("a scene manifest is required: pass --scene")
	}
	return nil
}
