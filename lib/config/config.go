// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for breakdown.
//
// Configuration is loaded from a single file specified by:
//   - BREAKDOWN_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures
// deterministic, auditable configuration with no hidden overrides.
//
// The config file may contain environment-specific sections
// (development, staging, production) that override base values when
// the environment matches.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pipeline-foundation/breakdown/lib/filter"
	"github.com/pipeline-foundation/breakdown/lib/hook"
	"github.com/pipeline-foundation/breakdown/lib/snapshot"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for artist workstations and local testing.
	Development Environment = "development"
	// Staging is for pre-production pipeline testing.
	Staging Environment = "staging"
	// Production is for the studio-wide deployment.
	Production Environment = "production"
)

// Config is the breakdown application manifest.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// DisplayName is the UI label shown in the panel title bar.
	DisplayName string `yaml:"display_name"`

	// PanelMode selects panel presentation (alt-screen, stays open)
	// over one-shot dialog presentation.
	PanelMode bool `yaml:"panel_mode"`

	// InteractiveUpdate requires a confirmation per reference update.
	InteractiveUpdate bool `yaml:"interactive_update"`

	// VersionHistory is the number of history entries shown per file.
	VersionHistory int `yaml:"version_history"`

	// PublishedFileFields are extra fields fetched per published file,
	// on top of the built-in defaults.
	PublishedFileFields []string `yaml:"published_file_fields"`

	// PublishedFileFilters restricts which published files count when
	// resolving the latest version of a scanned reference.
	PublishedFileFilters filter.List `yaml:"published_file_filters"`

	// HistoryPublishedFileFilters restricts the history listing.
	HistoryPublishedFileFilters filter.List `yaml:"history_published_file_filters"`

	// GroupBy is the default grouping field for the panel.
	GroupBy string `yaml:"group_by"`

	// GroupByFields are the fields selectable for grouping.
	GroupByFields []string `yaml:"group_by_fields"`

	// AutoRefresh enables scene-event and poll driven refresh.
	AutoRefresh bool `yaml:"auto_refresh"`

	// FileStatusCheckInterval is the status polling interval in
	// milliseconds. Zero or negative disables polling.
	FileStatusCheckInterval int `yaml:"file_status_check_interval"`

	// ActionMappings binds extra hook-supplied actions to published
	// file type names.
	ActionMappings map[string][]string `yaml:"action_mappings"`

	// Hook references: a builtin name ("builtin:...") or a path to a
	// hook script.
	HookSceneOperations   string `yaml:"hook_scene_operations"`
	HookGetPublishedFiles string `yaml:"hook_get_published_files"`
	HookUIConfig          string `yaml:"hook_ui_config"`
	HookUIConfigAdvanced  string `yaml:"hook_ui_config_advanced"`
	ActionsHook           string `yaml:"actions_hook"`

	// Tracker configures the tracking-service connection.
	Tracker TrackerConfig `yaml:"tracker"`

	// Cache configures the local published-file lookup cache.
	Cache CacheConfig `yaml:"cache"`

	// Snapshot configures scan snapshot persistence.
	Snapshot SnapshotConfig `yaml:"snapshot"`

	// Per-environment overrides, applied after the base config loads.
	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains the deployment-varying sections that can be
// overridden per environment.
type Overrides struct {
	Tracker  *TrackerConfig  `yaml:"tracker,omitempty"`
	Cache    *CacheConfig    `yaml:"cache,omitempty"`
	Snapshot *SnapshotConfig `yaml:"snapshot,omitempty"`
}

// TrackerConfig configures the tracking-service connection.
type TrackerConfig struct {
	// Site is the tracking site root URL. Credentials come from the
	// sealed bundle or the environment, never from this file.
	Site string `yaml:"site"`

	// CredentialsFile overrides the default sealed-bundle location.
	CredentialsFile string `yaml:"credentials_file"`
}

// CacheConfig configures the local lookup cache.
type CacheConfig struct {
	// Path is the SQLite database location.
	Path string `yaml:"path"`

	// TTL is how long a cached answer stays fresh, as a Go duration
	// string. Default: 5m.
	TTL string `yaml:"ttl"`
}

// SnapshotConfig configures scan snapshot persistence.
type SnapshotConfig struct {
	// Path is the snapshot file location.
	Path string `yaml:"path"`

	// Compression is the snapshot payload codec: zstd, lz4, or none.
	Compression string `yaml:"compression"`
}

// DefaultGroupByFields are the grouping fields offered when the
// manifest does not name its own.
var DefaultGroupByFields = []string{
	"project",
	"entity",
	"task",
	"published_file_type",
	"created_by.HumanUser.name",
}

// Default returns the default configuration. These defaults are the
// base the config file is merged onto, so every option has a sensible
// value even when the file only sets a few.
func Default() *Config {
	cacheDir, _ := os.UserCacheDir()
	defaultRoot := filepath.Join(cacheDir, "breakdown")

	return &Config{
		Environment:       Development,
		DisplayName:       "Scene Breakdown",
		PanelMode:         true,
		InteractiveUpdate: false,
		VersionHistory:    5,
		PublishedFileFilters: filter.List{
			{Field: "task", Operator: filter.OpIsNot, Value: nil},
			{Field: "entity", Operator: filter.OpIsNot, Value: nil},
		},
		GroupBy:                 "project",
		GroupByFields:           slices.Clone(DefaultGroupByFields),
		AutoRefresh:             true,
		FileStatusCheckInterval: 30000,
		ActionMappings:          map[string][]string{},
		HookSceneOperations:     hook.BuiltinManifestScene,
		HookGetPublishedFiles:   hook.BuiltinPublishedFiles,
		HookUIConfig:            hook.BuiltinUIConfig,
		Cache: CacheConfig{
			Path: filepath.Join(defaultRoot, "publishcache.db"),
			TTL:  "5m",
		},
		Snapshot: SnapshotConfig{
			Path:        filepath.Join(defaultRoot, "scan.snapshot"),
			Compression: "zstd",
		},
	}
}

// Load loads configuration from the BREAKDOWN_CONFIG environment
// variable. If the variable is not set, defaults are returned: unlike
// a daemon deployment, an artist running the CLI ad hoc should not
// need a config file for the builtin behavior.
func Load() (*Config, error) {
	configPath := os.Getenv("BREAKDOWN_CONFIG")
	if configPath == "" {
		return Default(), nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values; the only expansion performed is
// ${VAR} and ${VAR:-default} in path fields for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// applyEnvironmentOverrides applies the section matching Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if overrides.Tracker != nil {
		if overrides.Tracker.Site != "" {
			c.Tracker.Site = overrides.Tracker.Site
		}
		if overrides.Tracker.CredentialsFile != "" {
			c.Tracker.CredentialsFile = overrides.Tracker.CredentialsFile
		}
	}
	if overrides.Cache != nil {
		if overrides.Cache.Path != "" {
			c.Cache.Path = overrides.Cache.Path
		}
		if overrides.Cache.TTL != "" {
			c.Cache.TTL = overrides.Cache.TTL
		}
	}
	if overrides.Snapshot != nil {
		if overrides.Snapshot.Path != "" {
			c.Snapshot.Path = overrides.Snapshot.Path
		}
		if overrides.Snapshot.Compression != "" {
			c.Snapshot.Compression = overrides.Snapshot.Compression
		}
	}
}

// expandVariables expands ${VAR} patterns in path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Cache.Path = expandVars(c.Cache.Path, vars)
	c.Snapshot.Path = expandVars(c.Snapshot.Path, vars)
	c.Tracker.CredentialsFile = expandVars(c.Tracker.CredentialsFile, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.DisplayName == "" {
		errs = append(errs, errors.New("display_name is required"))
	}

	if c.GroupBy != "" && !slices.Contains(c.GroupByFields, c.GroupBy) {
		errs = append(errs, fmt.Errorf("group_by %q is not in group_by_fields", c.GroupBy))
	}

	if err := c.PublishedFileFilters.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("published_file_filters: %w", err))
	}
	if err := c.HistoryPublishedFileFilters.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("history_published_file_filters: %w", err))
	}

	hookRefs := map[string]string{
		"hook_scene_operations":    c.HookSceneOperations,
		"hook_get_published_files": c.HookGetPublishedFiles,
		"hook_ui_config":           c.HookUIConfig,
		"hook_ui_config_advanced":  c.HookUIConfigAdvanced,
		"actions_hook":             c.ActionsHook,
	}
	knownBuiltins := map[string]bool{
		hook.BuiltinManifestScene:  true,
		hook.BuiltinPublishedFiles: true,
		hook.BuiltinUIConfig:       true,
	}
	for option, ref := range hookRefs {
		if strings.HasPrefix(ref, "builtin:") && !knownBuiltins[ref] {
			errs = append(errs, fmt.Errorf("%s: unknown builtin %q", option, ref))
		}
	}

	if c.Snapshot.Compression != "" {
		if _, err := snapshot.ParseCompression(c.Snapshot.Compression); err != nil {
			errs = append(errs, fmt.Errorf("snapshot.compression: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
