// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

// Package filter models the tracking service's query filters: ordered
// [field, operator, value] triples combined with AND semantics. The
// triple form is what the manifest, the wire protocol, and the hook
// contracts all speak, so Filter marshals to and from it directly.
package filter

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Filter is one query condition. Field may be a dotted deep-link path
// ("entity.Shot.sg_status_list"); the service resolves those
// server-side and Match resolves them locally the same way.
type Filter struct {
	Field    string
	Operator string
	Value    any
}

// List is a set of filters combined with AND.
type List []Filter

// The operator vocabulary this client validates. The service knows
// more; anything outside this set is rejected before it ships a
// request that would fail remotely anyway.
const (
	OpIs          = "is"
	OpIsNot       = "is_not"
	OpLessThan    = "less_than"
	OpGreaterThan = "greater_than"
	OpContains    = "contains"
	OpNotContains = "not_contains"
	OpStartsWith  = "starts_with"
	OpEndsWith    = "ends_with"
	OpIn          = "in"
	OpNotIn       = "not_in"
	OpBetween     = "between"
)

var knownOperators = map[string]bool{
	OpIs:          true,
	OpIsNot:       true,
	OpLessThan:    true,
	OpGreaterThan: true,
	OpContains:    true,
	OpNotContains: true,
	OpStartsWith:  true,
	OpEndsWith:    true,
	OpIn:          true,
	OpNotIn:       true,
	OpBetween:     true,
}

// Validate checks the triple's shape: a field name and a known
// operator. Value semantics are the service's to judge, except the
// list-shaped operators which need list values.
func (f Filter) Validate() error {
	if f.Field == "" {
		return fmt.Errorf("filter: empty field name")
	}
	if !knownOperators[f.Operator] {
		return fmt.Errorf("filter: unknown operator %q for field %q", f.Operator, f.Field)
	}
	switch f.Operator {
	case OpIn, OpNotIn:
		if _, ok := f.Value.([]any); !ok {
			return fmt.Errorf("filter: operator %q on field %q needs a list value", f.Operator, f.Field)
		}
	case OpBetween:
		bounds, ok := f.Value.([]any)
		if !ok || len(bounds) != 2 {
			return fmt.Errorf("filter: operator %q on field %q needs a two-element bounds list", f.Operator, f.Field)
		}
	}
	return nil
}

// Validate checks every triple in the list.
func (l List) Validate() error {
	for i, f := range l {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("filter %d: %w", i, err)
		}
	}
	return nil
}

// FromTriples converts raw [field, operator, value] triples, the shape
// hook scripts hand back, into a validated List.
func FromTriples(triples [][]any) (List, error) {
	list := make(List, 0, len(triples))
	for i, raw := range triples {
		f, err := fromTriple(raw)
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
		list = append(list, f)
	}
	return list, nil
}

// UnmarshalYAML decodes the manifest form: a three-element sequence
// [field, operator, value].
func (f *Filter) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("filter: expected a [field, operator, value] sequence at line %d", node.Line)
	}
	var raw []any
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("filter: decoding triple at line %d: %w", node.Line, err)
	}
	decoded, err := fromTriple(raw)
	if err != nil {
		return fmt.Errorf("%w (line %d)", err, node.Line)
	}
	*f = decoded
	return nil
}

// MarshalYAML encodes back to the flow-style triple the manifest uses.
func (f Filter) MarshalYAML() (any, error) {
	node := &yaml.Node{}
	if err := node.Encode([]any{f.Field, f.Operator, f.Value}); err != nil {
		return nil, err
	}
	node.Style = yaml.FlowStyle
	return node, nil
}

// UnmarshalJSON decodes the wire form, the same triple as YAML.
func (f *Filter) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("filter: decoding triple: %w", err)
	}
	decoded, err := fromTriple(raw)
	if err != nil {
		return err
	}
	*f = decoded
	return nil
}

// MarshalJSON encodes the wire triple.
func (f Filter) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{f.Field, f.Operator, f.Value})
}

func fromTriple(raw []any) (Filter, error) {
	if len(raw) != 3 {
		return Filter{}, fmt.Errorf("filter: triple has %d elements, want 3", len(raw))
	}
	field, ok := raw[0].(string)
	if !ok {
		return Filter{}, fmt.Errorf("filter: field name is %T, want string", raw[0])
	}
	operator, ok := raw[1].(string)
	if !ok {
		return Filter{}, fmt.Errorf("filter: operator is %T, want string", raw[1])
	}
	return Filter{Field: field, Operator: operator, Value: raw[2]}, nil
}
