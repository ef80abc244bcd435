// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

// Package publishcache is the local cache of tracking-service answers,
// backed by SQLite. It stores two lookups: local path to published
// file (what a scene scan resolves) and version chain to latest
// published file (what the status poller re-queries). Entries carry
// their fetch time; readers get a staleness verdict against the TTL
// and decide for themselves, so online callers refetch stale answers
// while offline callers use them with a warning.
package publishcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/pipeline-foundation/breakdown/lib/clock"
	"github.com/pipeline-foundation/breakdown/lib/codec"
	"github.com/pipeline-foundation/breakdown/lib/entity"
	"github.com/pipeline-foundation/breakdown/lib/sqlitepool"
)

// ErrNotCached means the key has never been stored. In offline mode
// this is terminal; online callers fall through to the service.
var ErrNotCached = errors.New("publishcache: not cached")

// DefaultTTL is how long a cached answer counts as fresh.
const DefaultTTL = 5 * time.Minute

const schema = `
CREATE TABLE IF NOT EXISTS path_resolve (
	local_path TEXT PRIMARY KEY,
	record     BLOB NOT NULL,
	fetched_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS latest_lookup (
	chain_key  TEXT PRIMARY KEY,
	record     BLOB NOT NULL,
	fetched_at INTEGER NOT NULL
);
`

// Options configures a Cache.
type Options struct {
	// Path is the SQLite database file. The parent directory must
	// exist.
	Path string

	// TTL is the freshness window. Zero means DefaultTTL.
	TTL time.Duration

	// Clock defaults to the system clock.
	Clock clock.Clock

	Logger *slog.Logger
}

// Entry is one cached answer.
type Entry struct {
	// Record is the cached published file. Nil is a cached answer
	// too: the last query matched nothing.
	Record entity.Record

	// FetchedAt is when the answer came from the service.
	FetchedAt time.Time

	// Stale reports whether the entry is older than the TTL.
	Stale bool
}

// Cache is a read-through lookaside for published-file answers. Safe
// for concurrent use.
type Cache struct {
	pool   *sqlitepool.Pool
	ttl    time.Duration
	clk    clock.Clock
	logger *slog.Logger
}

// Open opens or creates the cache database.
func Open(opts Options) (*Cache, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("publishcache: Options.Path is required")
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   opts.Path,
		Logger: opts.Logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("publishcache: %w", err)
	}
	return &Cache{
		pool:   pool,
		ttl:    opts.TTL,
		clk:    opts.Clock,
		logger: opts.Logger,
	}, nil
}

// Close closes the underlying pool.
func (cache *Cache) Close() error {
	return cache.pool.Close()
}

// PutResolved stores the published file a local path resolved to.
func (cache *Cache) PutResolved(ctx context.Context, localPath string, record entity.Record) error {
	return cache.store(ctx,
		"INSERT OR REPLACE INTO path_resolve (local_path, record, fetched_at) VALUES (?, ?, ?)",
		localPath, record)
}

// Resolved returns the cached published file for a local path.
func (cache *Cache) Resolved(ctx context.Context, localPath string) (Entry, error) {
	return cache.lookup(ctx,
		"SELECT record, fetched_at FROM path_resolve WHERE local_path = ?",
		localPath)
}

// PutLatest stores the latest-version answer for a version chain. A
// nil record means the query matched nothing; cache that too, so
// offline mode can report it.
func (cache *Cache) PutLatest(ctx context.Context, chainKey string, record entity.Record) error {
	return cache.store(ctx,
		"INSERT OR REPLACE INTO latest_lookup (chain_key, record, fetched_at) VALUES (?, ?, ?)",
		chainKey, record)
}

// Latest returns the cached latest-version answer for a version
// chain.
func (cache *Cache) Latest(ctx context.Context, chainKey string) (Entry, error) {
	return cache.lookup(ctx,
		"SELECT record, fetched_at FROM latest_lookup WHERE chain_key = ?",
		chainKey)
}

func (cache *Cache) store(ctx context.Context, query, key string, record entity.Record) error {
	blob, err := codec.Marshal(record)
	if err != nil {
		return fmt.Errorf("publishcache: encoding record: %w", err)
	}

	conn, err := cache.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("publishcache: %w", err)
	}
	defer cache.pool.Put(conn)

	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: []any{key, blob, cache.clk.Now().Unix()},
	})
	if err != nil {
		return fmt.Errorf("publishcache: storing %q: %w", key, err)
	}
	return nil
}

func (cache *Cache) lookup(ctx context.Context, query, key string) (Entry, error) {
	conn, err := cache.pool.Take(ctx)
	if err != nil {
		return Entry{}, fmt.Errorf("publishcache: %w", err)
	}
	defer cache.pool.Put(conn)

	var entry Entry
	found := false
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: []any{key},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			found = true
			blob := make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, blob)
			var record entity.Record
			if err := codec.Unmarshal(blob, &record); err != nil {
				return fmt.Errorf("decoding cached record: %w", err)
			}
			entry.Record = record
			entry.FetchedAt = time.Unix(stmt.ColumnInt64(1), 0)
			return nil
		},
	})
	if err != nil {
		return Entry{}, fmt.Errorf("publishcache: reading %q: %w", key, err)
	}
	if !found {
		return Entry{}, ErrNotCached
	}
	entry.Stale = cache.clk.Now().Sub(entry.FetchedAt) > cache.ttl
	return entry, nil
}
