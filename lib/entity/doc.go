// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

// Package entity models the tracking service's records as this tool
// sees them: loosely-typed field maps decoded from the wire, linked
// entities as nested maps, and dotted deep-link paths for reaching
// through links ("entity.Shot.code").
//
// Values keep their decoded dynamic types. JSON decoding produces
// float64 for every number; CBOR decoding (the cache and snapshot
// blobs) produces int64 or uint64. The coercion helpers Int and String
// absorb that difference so callers never switch on wire origin.
package entity
