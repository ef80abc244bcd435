// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package entity

import "fmt"

// Ref is the minimal linked-entity reference the service embeds in
// other records: {"type": "Shot", "id": 1234, "name": "010_0040"}.
type Ref struct {
	Type string
	ID   int64
	Name string
}

// RefFrom extracts a Ref from a decoded value. It reports false when
// the value is not a record carrying a type and id.
func RefFrom(v any) (Ref, bool) {
	r, ok := asRecord(v)
	if !ok {
		return Ref{}, false
	}
	ref := r.Ref()
	if ref.Type == "" || ref.ID == 0 {
		return Ref{}, false
	}
	return ref, true
}

// IsZero reports whether the reference is unset.
func (r Ref) IsZero() bool { return r.Type == "" && r.ID == 0 && r.Name == "" }

// String renders the reference for logs and error messages.
func (r Ref) String() string {
	if r.Name != "" {
		return fmt.Sprintf("%s %d (%s)", r.Type, r.ID, r.Name)
	}
	return fmt.Sprintf("%s %d", r.Type, r.ID)
}
