// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package hook

import (
	"fmt"
	"strings"

	"github.com/pipeline-foundation/breakdown/lib/template"
)

// staticUIConfig returns fixed blocks. The builtin defaults and script
// hooks both reduce to this shape once loaded.
type staticUIConfig struct {
	fileItem        Block
	mainFileHistory Block
	fileHistory     Block
}

func (c staticUIConfig) FileItemDetails() Block        { return c.fileItem }
func (c staticUIConfig) MainFileHistoryDetails() Block { return c.mainFileHistory }
func (c staticUIConfig) FileHistoryDetails() Block     { return c.fileHistory }

// builtinUIConfig is the default presentation: the file name as the
// headline, the identifying fields in the body, thumbnails on.
func builtinUIConfig() UIConfig {
	return staticUIConfig{
		fileItem: Block{
			TopLeft: "{name}",
			Body: strings.Join([]string{
				"Node {<NODE_NAME>}",
				"Version {version_number}",
				"Entity {entity::showtype}",
				"Type {published_file_type.PublishedFileType.code}",
				"Task Status {task.Task.status}",
			}, "\n"),
			Thumbnail: true,
		},
		mainFileHistory: Block{
			Body: strings.Join([]string{
				"Name {name}",
				"Type {published_file_type.PublishedFileType.code}",
				"Version {version_number}",
				"Entity {entity::showtype}",
				"Task Status {task.Task.status}",
				"Tags {tags}",
			}, "\n"),
			Thumbnail: true,
		},
		fileHistory: Block{
			TopLeft:  "Version {version_number}",
			TopRight: "{status}",
			Body: strings.Join([]string{
				"Date {created_at}",
				"{created_by.HumanUser.name}: {description}",
			}, "\n"),
			Thumbnail: true,
		},
	}
}

// ValidateUIConfig parses every template string in every block and
// returns the first syntax error. Load paths call this so a bad
// template surfaces when the hook is resolved, not mid-render.
func ValidateUIConfig(config UIConfig) error {
	blocks := []struct {
		name  string
		block Block
	}{
		{"file_item_details", config.FileItemDetails()},
		{"main_file_history_details", config.MainFileHistoryDetails()},
		{"file_history_details", config.FileHistoryDetails()},
	}
	for _, b := range blocks {
		panes := []struct {
			name string
			src  string
		}{
			{"top_left", b.block.TopLeft},
			{"top_right", b.block.TopRight},
			{"body", b.block.Body},
		}
		for _, pane := range panes {
			if pane.src == "" {
				continue
			}
			if _, err := template.Parse(pane.src); err != nil {
				return fmt.Errorf("hook: %s %s: %w", b.name, pane.name, err)
			}
		}
	}
	return nil
}

// UIConfigFields collects every record field referenced by the
// config's templates, plus "image" when any block shows thumbnails,
// in first-appearance order. The result feeds published-file query
// field assembly. Strings that fail to parse contribute nothing;
// validation is ValidateUIConfig's business.
func UIConfigFields(config UIConfig) []string {
	blocks := []Block{
		config.FileItemDetails(),
		config.MainFileHistoryDetails(),
		config.FileHistoryDetails(),
	}
	var fields []string
	seen := make(map[string]bool)
	thumbnails := false
	for _, block := range blocks {
		thumbnails = thumbnails || block.Thumbnail
		for _, src := range []string{block.TopLeft, block.TopRight, block.Body} {
			if src == "" {
				continue
			}
			parsed, err := template.Parse(src)
			if err != nil {
				continue
			}
			for _, field := range parsed.Fields() {
				if !seen[field] {
					seen[field] = true
					fields = append(fields, field)
				}
			}
		}
	}
	if thumbnails && !seen["image"] {
		fields = append(fields, "image")
	}
	return fields
}
