// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/pipeline-foundation/breakdown/lib/entity"
	"github.com/pipeline-foundation/breakdown/lib/filter"
)

// Sort orders search results by one field.
type Sort struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending,omitempty"`
}

// FindOptions narrows a search. The zero value fetches every matching
// record with the service's default field set.
type FindOptions struct {
	// Fields lists the record fields to fetch. Dotted deep-link paths
	// are accepted. Empty means the service default.
	Fields []string

	// Sort orders the results; clauses apply in sequence.
	Sort []Sort

	// Limit caps the total records returned, 0 meaning no cap.
	Limit int

	// PageSize overrides the per-request page size. Zero lets the
	// service choose.
	PageSize int
}

// searchRequest is the wire form of one search page request.
type searchRequest struct {
	Filters  filter.List `json:"filters"`
	Fields   []string    `json:"fields,omitempty"`
	Sort     []Sort      `json:"sort,omitempty"`
	PageSize int         `json:"page_size,omitempty"`
	Page     int         `json:"page,omitempty"`
}

// searchResponse is the wire form of one search page.
type searchResponse struct {
	Records  []entity.Record `json:"records"`
	NextPage int             `json:"next_page"`
}

// Find runs an entity search and collects the matching records,
// following pagination until exhausted or the option limit is reached.
func (client *Client) Find(ctx context.Context, entityType string, filters filter.List, opts FindOptions) ([]entity.Record, error) {
	pages := client.Search(ctx, entityType, filters, opts)
	var all []entity.Record
	for {
		records, err := pages.Next(ctx)
		if err != nil {
			return nil, err
		}
		if records == nil {
			return all, nil
		}
		all = append(all, records...)
		if opts.Limit > 0 && len(all) >= opts.Limit {
			return all[:opts.Limit], nil
		}
	}
}

// FindOne runs a search and returns the first record, or ErrNotFound
// when nothing matches.
func (client *Client) FindOne(ctx context.Context, entityType string, filters filter.List, opts FindOptions) (entity.Record, error) {
	opts.Limit = 1
	if opts.PageSize == 0 {
		opts.PageSize = 1
	}
	records, err := client.Find(ctx, entityType, filters, opts)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records[0], nil
}

// Get fetches one record by id. Returns ErrNotFound on a 404.
func (client *Client) Get(ctx context.Context, entityType string, id int64, fields []string) (entity.Record, error) {
	path := "/api/v1/entity/" + url.PathEscape(entityType) + "/" + strconv.FormatInt(id, 10)
	if len(fields) > 0 {
		query := url.Values{}
		for _, field := range fields {
			query.Add("fields", field)
		}
		path += "?" + query.Encode()
	}

	var record entity.Record
	if err := client.get(ctx, path, &record); err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("tracker: %s %d: %w", entityType, id, ErrNotFound)
		}
		return nil, err
	}
	return record, nil
}

// Search returns a page iterator over an entity search. Find is the
// collect-everything convenience; Search is for callers that stream.
func (client *Client) Search(ctx context.Context, entityType string, filters filter.List, opts FindOptions) *PageIterator {
	if filters == nil {
		filters = filter.List{}
	}
	return &PageIterator{
		client:     client,
		entityType: entityType,
		filters:    filters,
		opts:       opts,
		page:       1,
	}
}

// PageIterator fetches search result pages lazily. Each Next call
// fetches one page; it returns nil records once every page has been
// consumed. Not safe for concurrent use.
type PageIterator struct {
	client     *Client
	entityType string
	filters    filter.List
	opts       FindOptions
	page       int
	done       bool
}

// Next fetches the next page. A nil slice with nil error means the
// iterator is exhausted.
func (iterator *PageIterator) Next(ctx context.Context) ([]entity.Record, error) {
	if iterator.done {
		return nil, nil
	}

	body, err := iterator.client.do(ctx, "POST",
		"/api/v1/entity/"+url.PathEscape(iterator.entityType)+"/_search",
		searchRequest{
			Filters:  iterator.filters,
			Fields:   iterator.opts.Fields,
			Sort:     iterator.opts.Sort,
			PageSize: iterator.opts.PageSize,
			Page:     iterator.page,
		})
	if err != nil {
		return nil, err
	}

	var page searchResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("tracker: decoding search response: %w", err)
	}

	if page.NextPage > iterator.page {
		iterator.page = page.NextPage
	} else {
		iterator.done = true
	}

	// A nil Records on a live page still counts as content so callers
	// can tell "empty page" from "iterator exhausted".
	if page.Records == nil {
		page.Records = []entity.Record{}
	}
	return page.Records, nil
}

// ResolvePaths maps local file paths to their published-file records.
// Paths the service does not know are absent from the result; the call
// succeeds as long as the request itself does.
func (client *Client) ResolvePaths(ctx context.Context, paths []string, fields []string) (map[string]entity.Record, error) {
	if len(paths) == 0 {
		return map[string]entity.Record{}, nil
	}

	var response struct {
		Files map[string]entity.Record `json:"files"`
	}
	err := client.post(ctx, "/api/v1/published_files/_resolve", map[string]any{
		"paths":  paths,
		"fields": fields,
	}, &response)
	if err != nil {
		return nil, err
	}
	if response.Files == nil {
		response.Files = map[string]entity.Record{}
	}
	return response.Files, nil
}
