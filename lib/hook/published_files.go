// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package hook

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pipeline-foundation/breakdown/lib/entity"
	"github.com/pipeline-foundation/breakdown/lib/filter"
	"github.com/pipeline-foundation/breakdown/lib/tracker"
)

// identityFields pin a version chain: two published files are versions
// of the same logical file when all five match.
var identityFields = []string{"project", "name", "task", "entity", "published_file_type"}

// versionOrder sorts queries newest version first.
var versionOrder = []tracker.Sort{{Field: "version_number", Descending: true}}

// builtinPublishedFiles queries the tracking service directly.
type builtinPublishedFiles struct{}

func (builtinPublishedFiles) LatestPublishedFile(ctx context.Context, client *tracker.Client, record entity.Record, opts QueryOptions) (entity.Record, error) {
	filters := append(identityFilters(record), opts.Filters...)
	return findLatest(ctx, client, filters, opts.Fields)
}

func (builtinPublishedFiles) FileHistory(ctx context.Context, client *tracker.Client, record entity.Record, opts QueryOptions) ([]entity.Record, error) {
	filters := append(identityFilters(record), opts.Filters...)
	return findHistory(ctx, client, filters, opts.Fields, opts.Limit)
}

// identityFilters builds the triples matching every version of the
// record's logical file. Absent fields filter as null, so a record
// without a task only matches other task-less versions.
func identityFilters(record entity.Record) filter.List {
	list := make(filter.List, 0, len(identityFields))
	for _, field := range identityFields {
		list = append(list, filter.Filter{Field: field, Operator: filter.OpIs, Value: record[field]})
	}
	return list
}

// ChainKey returns a stable key for the version chain the record
// belongs to. Two published files with equal keys are versions of the
// same logical file, so one latest-version query answers for both.
func ChainKey(record entity.Record) string {
	var b strings.Builder
	for i, field := range identityFields {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(field)
		b.WriteByte('=')
		value := record[field]
		if ref, ok := entity.RefFrom(value); ok {
			b.WriteString(ref.Type)
			b.WriteByte(':')
			b.WriteString(strconv.FormatInt(ref.ID, 10))
			continue
		}
		b.WriteString(entity.Display(value))
	}
	return b.String()
}

// findLatest returns the newest matching published file, or nil when
// nothing matches. No match is an answer here, not an error.
func findLatest(ctx context.Context, client *tracker.Client, filters filter.List, fields []string) (entity.Record, error) {
	latest, err := client.FindOne(ctx, "PublishedFile", filters, tracker.FindOptions{
		Fields: fields,
		Sort:   versionOrder,
	})
	if errors.Is(err, tracker.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("hook: latest published file: %w", err)
	}
	return latest, nil
}

func findHistory(ctx context.Context, client *tracker.Client, filters filter.List, fields []string, limit int) ([]entity.Record, error) {
	history, err := client.Find(ctx, "PublishedFile", filters, tracker.FindOptions{
		Fields: fields,
		Sort:   versionOrder,
		Limit:  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("hook: file history: %w", err)
	}
	return history, nil
}
