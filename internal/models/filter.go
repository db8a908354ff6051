package models

import (
	"encoding/json"
	"fmt"
)

// FilterCondition is the predicate of a filter clause
type FilterCondition string

const (
	FilterIncludes    FilterCondition = "includes"
	FilterNotIncludes FilterCondition = "notIncludes"
	FilterIsEmpty     FilterCondition = "isEmpty"
	FilterIsNotEmpty  FilterCondition = "isNotEmpty"
)

// Valid reports whether c is a known condition
func (c FilterCondition) Valid() bool {
	switch c {
	case FilterIncludes, FilterNotIncludes, FilterIsEmpty, FilterIsNotEmpty:
		return true
	}
	return false
}

// FilterOperation combines the children of a filter group
type FilterOperation string

const (
	FilterAnd FilterOperation = "and"
	FilterOr  FilterOperation = "or"
)

// FilterClause constrains one card property
type FilterClause struct {
	PropertyID string          `json:"property_id"`
	Condition  FilterCondition `json:"condition"`
	Values     []string        `json:"values"`
}

// FilterGroup is a boolean expression over clauses and nested groups
type FilterGroup struct {
	Operation FilterOperation `json:"operation"`
	Filters   []FilterNode    `json:"filters"`
}

// FilterKind discriminates the FilterNode variants
type FilterKind string

const (
	FilterKindClause FilterKind = "clause"
	FilterKindGroup  FilterKind = "group"
)

// FilterNode holds exactly one of Clause or Group, selected by Kind
type FilterNode struct {
	Kind   FilterKind
	Clause *FilterClause
	Group  *FilterGroup
}

// ClauseNode wraps a clause
func ClauseNode(c FilterClause) FilterNode {
	return FilterNode{Kind: FilterKindClause, Clause: &c}
}

// GroupNode wraps a nested group
func GroupNode(g FilterGroup) FilterNode {
	return FilterNode{Kind: FilterKindGroup, Group: &g}
}

// Validate walks the group and reports the first unknown operation, condition
// or node kind. An empty operation reads as and.
func (g FilterGroup) Validate() error {
	switch g.Operation {
	case FilterAnd, FilterOr, "":
	default:
		return fmt.Errorf("unknown filter operation %q", g.Operation)
	}
	for _, node := range g.Filters {
		switch node.Kind {
		case FilterKindClause:
			if node.Clause == nil {
				return fmt.Errorf("filter clause node without clause")
			}
			if !node.Clause.Condition.Valid() {
				return fmt.Errorf("unknown filter condition %q on property %q", node.Clause.Condition, node.Clause.PropertyID)
			}
		case FilterKindGroup:
			if node.Group == nil {
				return fmt.Errorf("filter group node without group")
			}
			if err := node.Group.Validate(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown filter node kind %q", node.Kind)
		}
	}
	return nil
}

// Clauses returns the direct clause children of the group, skipping nested groups
func (g FilterGroup) Clauses() []FilterClause {
	var clauses []FilterClause
	for _, node := range g.Filters {
		if node.Kind == FilterKindClause && node.Clause != nil {
			clauses = append(clauses, *node.Clause)
		}
	}
	return clauses
}

type clauseJSON struct {
	Kind FilterKind `json:"kind"`
	FilterClause
}

type groupJSON struct {
	Kind FilterKind `json:"kind"`
	FilterGroup
}

// MarshalJSON implements json.Marshaler
func (n FilterNode) MarshalJSON() ([]byte, error) {
	switch n.Kind {
	case FilterKindClause:
		if n.Clause == nil {
			return nil, fmt.Errorf("filter clause node without clause")
		}
		return json.Marshal(clauseJSON{Kind: n.Kind, FilterClause: *n.Clause})
	case FilterKindGroup:
		if n.Group == nil {
			return nil, fmt.Errorf("filter group node without group")
		}
		return json.Marshal(groupJSON{Kind: n.Kind, FilterGroup: *n.Group})
	default:
		return nil, fmt.Errorf("unknown filter node kind %q", n.Kind)
	}
}

// UnmarshalJSON reads the kind discriminant. Payloads without one are groups
// when they carry an operation and clauses otherwise.
func (n *FilterNode) UnmarshalJSON(data []byte) error {
	var probe struct {
		Kind      FilterKind       `json:"kind"`
		Operation *FilterOperation `json:"operation"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	kind := probe.Kind
	if kind == "" {
		kind = FilterKindClause
		if probe.Operation != nil {
			kind = FilterKindGroup
		}
	}

	switch kind {
	case FilterKindClause:
		var c FilterClause
		if err := json.Unmarshal(data, &c); err != nil {
			return err
		}
		*n = ClauseNode(c)
	case FilterKindGroup:
		var g FilterGroup
		if err := json.Unmarshal(data, &g); err != nil {
			return err
		}
		*n = GroupNode(g)
	default:
		return fmt.Errorf("unknown filter node kind %q", kind)
	}
	return nil
}
