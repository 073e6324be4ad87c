// ABOUTME: Query descriptor types: conditions, sort keys and aggregates
// ABOUTME: Descriptors are immutable; accessors hand out copies

package query

import (
	"errors"

	"github.com/nainya/entitystore/pkg/value"
)

// ErrInvalidQuery is wrapped by every Build error
var ErrInvalidQuery = errors.New("query: invalid query")

// Operator is a record filter operator
type Operator string

const (
	OpEquals             Operator = "equals"
	OpNotEquals          Operator = "notEquals"
	OpGreaterThan        Operator = "greaterThan"
	OpGreaterThanOrEqual Operator = "greaterThanOrEqual"
	OpLessThan           Operator = "lessThan"
	OpLessThanOrEqual    Operator = "lessThanOrEqual"
	OpContains           Operator = "contains"
	OpStartsWith         Operator = "startsWith"
	OpBetween            Operator = "between" // inclusive
	OpNotNull            Operator = "notNull"
	OpIsNull             Operator = "isNull"
	OpIn                 Operator = "in"
)

// arity returns the accepted operand count; hi < 0 means unbounded
func (op Operator) arity() (lo, hi int, ok bool) {
	switch op {
	case OpEquals, OpNotEquals, OpGreaterThan, OpGreaterThanOrEqual,
		OpLessThan, OpLessThanOrEqual, OpContains, OpStartsWith:
		return 1, 1, true
	case OpBetween:
		return 2, 2, true
	case OpNotNull, OpIsNull:
		return 0, 0, true
	case OpIn:
		return 1, -1, true
	}
	return 0, 0, false
}

// Direction is a sort direction
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// AggregateKind names an aggregate function
type AggregateKind string

const (
	AggCount AggregateKind = "count"
	AggSum   AggregateKind = "sum"
	AggAvg   AggregateKind = "avg"
	AggMin   AggregateKind = "min"
	AggMax   AggregateKind = "max"
)

// Condition filters records on one field
type Condition struct {
	Field    string
	Operator Operator
	Operands []value.Value
}

// SortKey orders records by one field
type SortKey struct {
	Field     string
	Direction Direction
}

// Aggregate is an aggregate function over a field. Count ignores Field.
type Aggregate struct {
	Kind  AggregateKind
	Field string
}

// Name is the column the aggregate fills in result rows: count, sum_<field>, ...
func (a Aggregate) Name() string {
	if a.Kind == AggCount {
		return string(AggCount)
	}
	return string(a.Kind) + "_" + a.Field
}

// Descriptor is a validated, immutable query
type Descriptor struct {
	conditions []Condition
	sortKeys   []SortKey
	aggregates []Aggregate
	groupBy    string
	limit      int
	hasLimit   bool
	offset     int
}

// Conditions returns a copy of the filter conditions
func (d Descriptor) Conditions() []Condition {
	out := make([]Condition, len(d.conditions))
	for i, c := range d.conditions {
		out[i] = c.clone()
	}
	return out
}

// SortKeys returns a copy of the sort keys in precedence order
func (d Descriptor) SortKeys() []SortKey {
	return append([]SortKey(nil), d.sortKeys...)
}

// Aggregates returns a copy of the aggregates
func (d Descriptor) Aggregates() []Aggregate {
	return append([]Aggregate(nil), d.aggregates...)
}

// GroupBy returns the group-by field, if any
func (d Descriptor) GroupBy() (string, bool) {
	return d.groupBy, d.groupBy != ""
}

// Limit returns the limit, if any
func (d Descriptor) Limit() (int, bool) {
	return d.limit, d.hasLimit
}

// Offset returns the offset (0 when unset)
func (d Descriptor) Offset() int {
	return d.offset
}

// Aggregating reports whether the query produces group rows
func (d Descriptor) Aggregating() bool {
	return len(d.aggregates) > 0 || d.groupBy != ""
}

func (c Condition) clone() Condition {
	ops := make([]value.Value, len(c.Operands))
	for i, v := range c.Operands {
		ops[i] = value.Clone(v)
	}
	return Condition{Field: c.Field, Operator: c.Operator, Operands: ops}
}

func (d Descriptor) clone() Descriptor {
	out := d
	out.conditions = d.Conditions()
	out.sortKeys = d.SortKeys()
	out.aggregates = d.Aggregates()
	return out
}
