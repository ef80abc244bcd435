// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package filter

import (
	"strings"

	"github.com/pipeline-foundation/breakdown/lib/entity"
)

// Match evaluates the filter against a record locally, mirroring the
// service's semantics closely enough for client-side narrowing and for
// the test double. Null handling follows the service: "is null"
// matches a field that is absent or nil, "is_not null" matches one
// that is present and non-nil.
func (f Filter) Match(r entity.Record) bool {
	got, present := r.Deep(f.Field)

	switch f.Operator {
	case OpIs:
		if f.Value == nil {
			return !present || got == nil
		}
		return present && equal(got, f.Value)
	case OpIsNot:
		if f.Value == nil {
			return present && got != nil
		}
		return !present || !equal(got, f.Value)
	case OpLessThan:
		order, comparable := compare(got, f.Value)
		return present && comparable && order < 0
	case OpGreaterThan:
		order, comparable := compare(got, f.Value)
		return present && comparable && order > 0
	case OpContains:
		return present && contains(got, f.Value)
	case OpNotContains:
		return !present || !contains(got, f.Value)
	case OpStartsWith:
		s, ok1 := entity.String(got)
		prefix, ok2 := entity.String(f.Value)
		return present && ok1 && ok2 && strings.HasPrefix(s, prefix)
	case OpEndsWith:
		s, ok1 := entity.String(got)
		suffix, ok2 := entity.String(f.Value)
		return present && ok1 && ok2 && strings.HasSuffix(s, suffix)
	case OpIn:
		options, ok := f.Value.([]any)
		if !ok || !present {
			return false
		}
		for _, option := range options {
			if equal(got, option) {
				return true
			}
		}
		return false
	case OpNotIn:
		options, ok := f.Value.([]any)
		if !ok {
			return false
		}
		if !present {
			return true
		}
		for _, option := range options {
			if equal(got, option) {
				return false
			}
		}
		return true
	case OpBetween:
		bounds, ok := f.Value.([]any)
		if !ok || len(bounds) != 2 || !present {
			return false
		}
		low, lowOK := compare(got, bounds[0])
		high, highOK := compare(got, bounds[1])
		return lowOK && highOK && low >= 0 && high <= 0
	default:
		return false
	}
}

// Match reports whether the record satisfies every filter in the list.
// An empty list matches everything.
func (l List) Match(r entity.Record) bool {
	for _, f := range l {
		if !f.Match(r) {
			return false
		}
	}
	return true
}

// equal compares a record value against a filter value. Numbers
// compare by magnitude regardless of decoded width; entity references
// compare by type and id so a filter can carry either a full reference
// or the same nested form the record holds.
func equal(a, b any) bool {
	if an, ok := entity.Int(a); ok {
		if bn, ok := entity.Int(b); ok {
			return an == bn
		}
		return false
	}
	if aRef, ok := entity.RefFrom(a); ok {
		if bRef, ok := entity.RefFrom(b); ok {
			return aRef.Type == bRef.Type && aRef.ID == bRef.ID
		}
		return false
	}
	return a == b
}

// compare orders two values: numerically when both are numbers,
// lexically when both are strings. The second result is false for
// incomparable pairs, which the range operators reject.
func compare(a, b any) (int, bool) {
	if an, ok := toFloat(a); ok {
		if bn, ok := toFloat(b); ok {
			switch {
			case an < bn:
				return -1, true
			case an > bn:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}
	as, aok := entity.String(a)
	bs, bok := entity.String(b)
	if aok && bok {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// contains implements the service's substring-or-membership operator:
// substring on strings, element membership on lists.
func contains(got, want any) bool {
	switch t := got.(type) {
	case string:
		s, ok := entity.String(want)
		return ok && strings.Contains(t, s)
	case []any:
		for _, item := range t {
			if equal(item, want) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
