// ABOUTME: Declarative query specs decoded from JSON or YAML
// ABOUTME: Compiled into descriptors through the Builder

package query

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/nainya/entitystore/pkg/value"
)

// Spec is a query in document form, e.g.
//
//	where:
//	  - {field: active, op: equals, value: true}
//	  - {field: age, op: between, values: [18, 65]}
//	orderBy:
//	  - {field: age, direction: desc}
//	limit: 10
type Spec struct {
	Where     []WhereSpec     `json:"where,omitempty" yaml:"where,omitempty"`
	OrderBy   []OrderSpec     `json:"orderBy,omitempty" yaml:"orderBy,omitempty"`
	Aggregate []AggregateSpec `json:"aggregate,omitempty" yaml:"aggregate,omitempty"`
	GroupBy   string          `json:"groupBy,omitempty" yaml:"groupBy,omitempty"`
	Limit     *int            `json:"limit,omitempty" yaml:"limit,omitempty"`
	Offset    int             `json:"offset,omitempty" yaml:"offset,omitempty"`
}

// WhereSpec is one condition. Value holds the single operand; Values holds
// operands for between and in. A null operand must be written as values: [null]
// since an absent value and value: null decode the same.
type WhereSpec struct {
	Field  string `json:"field" yaml:"field"`
	Op     string `json:"op" yaml:"op"`
	Value  any    `json:"value,omitempty" yaml:"value,omitempty"`
	Values []any  `json:"values,omitempty" yaml:"values,omitempty"`
}

// OrderSpec is one sort key; direction defaults to asc
type OrderSpec struct {
	Field     string `json:"field" yaml:"field"`
	Direction string `json:"direction,omitempty" yaml:"direction,omitempty"`
}

// AggregateSpec is one aggregate; field is ignored for count
type AggregateSpec struct {
	Fn    string `json:"fn" yaml:"fn"`
	Field string `json:"field,omitempty" yaml:"field,omitempty"`
}

// ParseSpec decodes a YAML or JSON query spec
func ParseSpec(data []byte) (Spec, error) {
	var s Spec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Spec{}, fmt.Errorf("%w: decode spec: %v", ErrInvalidQuery, err)
	}
	return s, nil
}

// Build compiles the spec into a descriptor
func (s Spec) Build() (Descriptor, error) {
	b := NewBuilder()

	for i, w := range s.Where {
		op := Operator(w.Op)
		lo, _, ok := op.arity()
		if !ok {
			return Descriptor{}, fmt.Errorf("%w: where[%d]: unknown operator %q", ErrInvalidQuery, i, w.Op)
		}

		raw := w.Values
		if len(raw) == 0 && lo > 0 {
			if w.Value == nil {
				return Descriptor{}, fmt.Errorf("%w: where[%d]: %s on %q needs a value (use values: [null] for null)", ErrInvalidQuery, i, w.Op, w.Field)
			}
			raw = []any{w.Value}
		}
		operands := make([]value.Value, len(raw))
		for j, x := range raw {
			v, err := value.FromAny(x)
			if err != nil {
				return Descriptor{}, fmt.Errorf("%w: where[%d]: %v", ErrInvalidQuery, i, err)
			}
			operands[j] = v
		}
		b.Where(w.Field, op, operands...)
	}

	for _, o := range s.OrderBy {
		b.OrderBy(o.Field, Direction(o.Direction))
	}

	for i, a := range s.Aggregate {
		switch AggregateKind(a.Fn) {
		case AggCount:
			b.Count()
		case AggSum:
			b.Sum(a.Field)
		case AggAvg:
			b.Avg(a.Field)
		case AggMin:
			b.Min(a.Field)
		case AggMax:
			b.Max(a.Field)
		default:
			return Descriptor{}, fmt.Errorf("%w: aggregate[%d]: unknown function %q", ErrInvalidQuery, i, a.Fn)
		}
	}

	if s.GroupBy != "" {
		b.GroupBy(s.GroupBy)
	}
	if s.Limit != nil {
		b.Limit(*s.Limit)
	}
	b.Offset(s.Offset)

	return b.Build()
}
