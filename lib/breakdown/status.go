// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package breakdown

import "fmt"

// Status places one file item relative to the newest known version of
// its published file.
type Status int

const (
	// StatusNone means the item has no published file, or the latest
	// version has not been resolved yet.
	StatusNone Status = iota

	// StatusUpToDate means the scene references the newest version.
	StatusUpToDate

	// StatusOutOfDate means a newer version exists.
	StatusOutOfDate

	// StatusLocked means the item is pinned to its current version.
	StatusLocked
)

func (status Status) String() string {
	switch status {
	case StatusNone:
		return "none"
	case StatusUpToDate:
		return "up_to_date"
	case StatusOutOfDate:
		return "out_of_date"
	case StatusLocked:
		return "locked"
	default:
		return fmt.Sprintf("Status(%d)", int(status))
	}
}

// GroupStatus rolls a set of items up to a single status. Any
// out-of-date item marks the whole group out of date. Otherwise any
// unresolved item leaves the group unresolved, a group of nothing but
// pinned items reports locked, and only a fully current group reports
// up to date. An empty group is unresolved.
func GroupStatus(items []*FileItem) Status {
	if len(items) == 0 {
		return StatusNone
	}
	locked := 0
	unresolved := false
	for _, item := range items {
		switch item.Status() {
		case StatusOutOfDate:
			return StatusOutOfDate
		case StatusNone:
			unresolved = true
		case StatusLocked:
			locked++
		}
	}
	if unresolved {
		return StatusNone
	}
	if locked == len(items) {
		return StatusLocked
	}
	return StatusUpToDate
}
