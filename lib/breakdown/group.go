// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package breakdown

import (
	"slices"
	"strconv"
	"strings"

	"github.com/pipeline-foundation/breakdown/lib/entity"
)

// UngroupedLabel names the bucket for items whose record lacks the
// grouping field.
const UngroupedLabel = "Ungrouped"

// Group is one bucket of file items sharing a grouping-field value.
type Group struct {
	// Key identifies the bucket stably across refreshes: "Type:id"
	// for entity references, the display string otherwise, "" for the
	// ungrouped bucket.
	Key string

	// Label is the human-readable bucket name.
	Label string

	// Status is the rolled-up status of Items.
	Status Status

	Items []*FileItem
}

// GroupBy buckets items by a record field. Deep paths like
// "created_by.HumanUser.name" work the way they do in queries.
// Groups sort by label with the ungrouped bucket last; items within a
// group sort by node name, then version, then path.
func GroupBy(items []*FileItem, field string) []Group {
	buckets := make(map[string]*Group)
	for _, item := range items {
		key, label := groupKey(item.Record, field)
		group, exists := buckets[key]
		if !exists {
			group = &Group{Key: key, Label: label}
			buckets[key] = group
		}
		group.Items = append(group.Items, item)
	}

	groups := make([]Group, 0, len(buckets))
	for _, group := range buckets {
		sortItems(group.Items)
		group.Status = GroupStatus(group.Items)
		groups = append(groups, *group)
	}
	slices.SortFunc(groups, func(a, b Group) int {
		if a.Key == "" || b.Key == "" {
			if a.Key == b.Key {
				return 0
			}
			if a.Key == "" {
				return 1
			}
			return -1
		}
		if c := strings.Compare(a.Label, b.Label); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})
	return groups
}

// groupKey derives the bucket identity and label for one record.
// Entity references key on type and id so two entities sharing a name
// stay separate buckets.
func groupKey(record entity.Record, field string) (key, label string) {
	value, ok := record.Deep(field)
	if !ok || value == nil {
		return "", UngroupedLabel
	}
	if ref, isRef := entity.RefFrom(value); isRef {
		key = ref.Type + ":" + strconv.FormatInt(ref.ID, 10)
		label = ref.Name
		if label == "" {
			label = key
		}
		return key, label
	}
	label = entity.Display(value)
	if label == "" {
		return "", UngroupedLabel
	}
	return label, label
}

func sortItems(items []*FileItem) {
	slices.SortStableFunc(items, func(a, b *FileItem) int {
		if c := strings.Compare(a.NodeName, b.NodeName); c != 0 {
			return c
		}
		va, vb := a.CurrentVersion(), b.CurrentVersion()
		if va != vb {
			if va < vb {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Path, b.Path)
	})
}
