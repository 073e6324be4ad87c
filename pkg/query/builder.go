// ABOUTME: Fluent builder for query descriptors
// ABOUTME: The first invalid call is remembered and reported by Build

package query

import (
	"fmt"

	"github.com/nainya/entitystore/pkg/value"
)

// Builder accumulates a query. Filters combine with AND. Build consumes the
// builder and leaves it empty.
type Builder struct {
	d   Descriptor
	err error
}

// NewBuilder creates an empty builder
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) fail(format string, args ...any) *Builder {
	if b.err == nil {
		b.err = fmt.Errorf("%w: %s", ErrInvalidQuery, fmt.Sprintf(format, args...))
	}
	return b
}

// Where adds a condition with an explicit operator
func (b *Builder) Where(field string, op Operator, operands ...value.Value) *Builder {
	if field == "" {
		return b.fail("%s condition without field", op)
	}
	lo, hi, ok := op.arity()
	if !ok {
		return b.fail("unknown operator %q", op)
	}
	if len(operands) < lo || (hi >= 0 && len(operands) > hi) {
		return b.fail("%s on %q takes %s operands, got %d", op, field, arityText(lo, hi), len(operands))
	}
	ops := make([]value.Value, len(operands))
	for i, v := range operands {
		if v == nil {
			return b.fail("%s on %q: nil operand", op, field)
		}
		if !value.IsFinite(v) {
			return b.fail("%s on %q: non-finite operand", op, field)
		}
		ops[i] = value.Clone(v)
	}
	b.d.conditions = append(b.d.conditions, Condition{Field: field, Operator: op, Operands: ops})
	return b
}

func arityText(lo, hi int) string {
	switch {
	case hi < 0:
		return fmt.Sprintf("at least %d", lo)
	case lo == hi:
		return fmt.Sprintf("%d", lo)
	default:
		return fmt.Sprintf("%d-%d", lo, hi)
	}
}

func (b *Builder) Equals(field string, v value.Value) *Builder {
	return b.Where(field, OpEquals, v)
}

func (b *Builder) NotEquals(field string, v value.Value) *Builder {
	return b.Where(field, OpNotEquals, v)
}

func (b *Builder) GreaterThan(field string, v value.Value) *Builder {
	return b.Where(field, OpGreaterThan, v)
}

func (b *Builder) GreaterThanOrEqual(field string, v value.Value) *Builder {
	return b.Where(field, OpGreaterThanOrEqual, v)
}

func (b *Builder) LessThan(field string, v value.Value) *Builder {
	return b.Where(field, OpLessThan, v)
}

func (b *Builder) LessThanOrEqual(field string, v value.Value) *Builder {
	return b.Where(field, OpLessThanOrEqual, v)
}

// Contains matches text containing v, or lists holding an element equal to v
func (b *Builder) Contains(field string, v value.Value) *Builder {
	return b.Where(field, OpContains, v)
}

func (b *Builder) StartsWith(field string, prefix string) *Builder {
	return b.Where(field, OpStartsWith, value.Text(prefix))
}

// Between matches lo <= field <= hi
func (b *Builder) Between(field string, lo, hi value.Value) *Builder {
	return b.Where(field, OpBetween, lo, hi)
}

func (b *Builder) NotNull(field string) *Builder {
	return b.Where(field, OpNotNull)
}

// IsNull matches records where field is absent or null
func (b *Builder) IsNull(field string) *Builder {
	return b.Where(field, OpIsNull)
}

// In matches records whose field equals one of vs
func (b *Builder) In(field string, vs ...value.Value) *Builder {
	return b.Where(field, OpIn, vs...)
}

// OrderBy appends a sort key; earlier keys take precedence
func (b *Builder) OrderBy(field string, dir Direction) *Builder {
	if field == "" {
		return b.fail("order by without field")
	}
	if dir == "" {
		dir = Asc
	}
	if dir != Asc && dir != Desc {
		return b.fail("unknown sort direction %q", dir)
	}
	b.d.sortKeys = append(b.d.sortKeys, SortKey{Field: field, Direction: dir})
	return b
}

func (b *Builder) OrderByAsc(field string) *Builder {
	return b.OrderBy(field, Asc)
}

func (b *Builder) OrderByDesc(field string) *Builder {
	return b.OrderBy(field, Desc)
}

func (b *Builder) aggregate(kind AggregateKind, field string) *Builder {
	if kind != AggCount && field == "" {
		return b.fail("%s without field", kind)
	}
	b.d.aggregates = append(b.d.aggregates, Aggregate{Kind: kind, Field: field})
	return b
}

// Count adds a record count per group
func (b *Builder) Count() *Builder { return b.aggregate(AggCount, "") }

func (b *Builder) Sum(field string) *Builder { return b.aggregate(AggSum, field) }
func (b *Builder) Avg(field string) *Builder { return b.aggregate(AggAvg, field) }
func (b *Builder) Min(field string) *Builder { return b.aggregate(AggMin, field) }
func (b *Builder) Max(field string) *Builder { return b.aggregate(AggMax, field) }

// GroupBy partitions filtered records by field before aggregation
func (b *Builder) GroupBy(field string) *Builder {
	if field == "" {
		return b.fail("group by without field")
	}
	b.d.groupBy = field
	return b
}

func (b *Builder) Limit(n int) *Builder {
	if n < 0 {
		return b.fail("negative limit %d", n)
	}
	b.d.limit = n
	b.d.hasLimit = true
	return b
}

func (b *Builder) Offset(n int) *Builder {
	if n < 0 {
		return b.fail("negative offset %d", n)
	}
	b.d.offset = n
	return b
}

// Build returns the descriptor, or the first error recorded. The builder is
// reset either way.
func (b *Builder) Build() (Descriptor, error) {
	d, err := b.d, b.err
	*b = Builder{}
	if err != nil {
		return Descriptor{}, err
	}
	return d.clone(), nil
}
