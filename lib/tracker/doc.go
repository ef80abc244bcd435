// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

// Package tracker is the typed HTTP client for the production tracking
// service. It authenticates with script credentials exchanged for a
// short-lived session token (rotated automatically near expiry),
// respects the service's rate-limit headers with clock-injected
// backoff, and exposes the small query surface breakdown needs:
// entity search with filter triples, single-record fetch, and local
// path resolution to published files.
//
// The client is safe for concurrent use. All operations take a
// context and return *APIError for non-2xx responses; 404s from Get
// and FindOne map to ErrNotFound so callers can branch without
// inspecting status codes.
package tracker
