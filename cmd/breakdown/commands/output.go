// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pipeline-foundation/breakdown/lib/breakdown"
	"github.com/pipeline-foundation/breakdown/lib/entity"
)

// writeTable renders rows as aligned columns.
func writeTable(w io.Writer, header []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}

// versionCell formats a version number for a table, "-" when unknown.
func versionCell(version int64) string {
	if version == 0 {
		return "-"
	}
	return fmt.Sprintf("v%03d", version)
}

// statusItem is the JSON shape of one reference in status output.
type statusItem struct {
	NodeName       string `json:"node_name"`
	NodeType       string `json:"node_type,omitempty"`
	Path           string `json:"path"`
	Status         string `json:"status"`
	CurrentVersion int64  `json:"current_version,omitempty"`
	LatestVersion  int64  `json:"latest_version,omitempty"`
	PublishedFile  string `json:"published_file,omitempty"`
}

func statusReport(items []*breakdown.FileItem) []statusItem {
	report := make([]statusItem, 0, len(items))
	for _, item := range items {
		report = append(report, statusItem{
			NodeName:       item.NodeName,
			NodeType:       item.NodeType,
			Path:           item.Path,
			Status:         item.Status().String(),
			CurrentVersion: item.CurrentVersion(),
			LatestVersion:  item.HighestVersion(),
			PublishedFile:  entity.Display(item.Record["name"]),
		})
	}
	return report
}

// statusRows renders items for the status table.
func statusRows(items []*breakdown.FileItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.NodeName,
			item.Status().String(),
			versionCell(item.CurrentVersion()),
			versionCell(item.HighestVersion()),
			item.Path,
		})
	}
	return rows
}

var statusHeader = []string{"NODE", "STATUS", "CURRENT", "LATEST", "PATH"}

// countOutOfDate counts items a bulk update would touch.
func countOutOfDate(items []*breakdown.FileItem) int {
	n := 0
	for _, item := range items {
		if item.Status() == breakdown.StatusOutOfDate {
			n++
		}
	}
	return n
}
