// ABOUTME: Query executor over in-memory record sets
// ABOUTME: Pipeline is filter, group/aggregate, stable sort, then paginate

package query

import (
	"slices"
	"strings"
	"time"

	"github.com/nainya/entitystore/internal/logger"
	"github.com/nainya/entitystore/internal/metrics"
	"github.com/nainya/entitystore/pkg/value"
)

// Result is the output of one execution
type Result struct {
	// Records is the requested page; group rows when Grouped is set
	Records []value.Map
	// Total counts records (or groups) before pagination
	Total   int
	HasMore bool
	Grouped bool
}

// Aggregate returns the named aggregate column of the first row. Handy for
// queries without group-by, which produce exactly one row.
func (r *Result) Aggregate(name string) (value.Value, bool) {
	if len(r.Records) == 0 {
		return nil, false
	}
	return r.Records[0].Get(name)
}

// Executor runs descriptors against record sets. It holds no per-query state
// and is safe for concurrent use.
type Executor struct {
	log     *logger.Logger
	metrics *metrics.Metrics
}

// Option configures an Executor
type Option func(*Executor)

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.log = l.Component("query")
		}
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// NewExecutor creates an executor
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{log: logger.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute applies d to records. Neither records nor d are modified; returned
// records are copies.
func (e *Executor) Execute(d Descriptor, records []value.Map) *Result {
	start := time.Now()

	rows := filter(d.conditions, records)
	matched := len(rows)

	result := &Result{}
	if d.Aggregating() {
		rows = aggregate(d, rows)
		result.Grouped = true
	}

	if len(d.sortKeys) > 0 {
		sortRows(rows, d.sortKeys)
	}

	result.Total = len(rows)
	limit := len(rows)
	if d.hasLimit {
		limit = d.limit
	}
	page := applyPagination(rows, limit, d.offset)
	result.HasMore = result.Total > d.offset+len(page)

	result.Records = make([]value.Map, len(page))
	for i, r := range page {
		result.Records[i] = r.Clone()
	}

	dur := time.Since(start)
	e.metrics.RecordQuery(shapeOf(d), dur, len(records), len(result.Records))
	e.log.LogQuery(dur, len(records), matched, len(result.Records))
	return result
}

func shapeOf(d Descriptor) string {
	switch {
	case d.groupBy != "":
		return "group"
	case len(d.aggregates) > 0:
		return "aggregate"
	case len(d.conditions) > 0:
		return "filter"
	default:
		return "scan"
	}
}

func filter(conds []Condition, records []value.Map) []value.Map {
	out := make([]value.Map, 0, len(records))
	for _, r := range records {
		if matchesAll(conds, r) {
			out = append(out, r)
		}
	}
	return out
}

func matchesAll(conds []Condition, r value.Map) bool {
	for _, c := range conds {
		if !matches(c, r) {
			return false
		}
	}
	return true
}

func matches(c Condition, r value.Map) bool {
	v, ok := r.Lookup(c.Field)
	present := ok && !value.IsNull(v)

	if c.Operator == OpIsNull {
		return !present
	}
	if !present {
		return false
	}

	switch c.Operator {
	case OpNotNull:
		return true
	case OpEquals:
		return value.Equal(v, c.Operands[0])
	case OpNotEquals:
		return !value.Equal(v, c.Operands[0])
	case OpGreaterThan:
		return ordered(v, c.Operands[0], func(n int) bool { return n > 0 })
	case OpGreaterThanOrEqual:
		return ordered(v, c.Operands[0], func(n int) bool { return n >= 0 })
	case OpLessThan:
		return ordered(v, c.Operands[0], func(n int) bool { return n < 0 })
	case OpLessThanOrEqual:
		return ordered(v, c.Operands[0], func(n int) bool { return n <= 0 })
	case OpBetween:
		return ordered(v, c.Operands[0], func(n int) bool { return n >= 0 }) &&
			ordered(v, c.Operands[1], func(n int) bool { return n <= 0 })
	case OpContains:
		return contains(v, c.Operands[0])
	case OpStartsWith:
		s, ok1 := v.(value.Text)
		p, ok2 := c.Operands[0].(value.Text)
		return ok1 && ok2 && strings.HasPrefix(string(s), string(p))
	case OpIn:
		return slices.ContainsFunc(c.Operands, func(o value.Value) bool { return value.Equal(v, o) })
	}
	return false
}

// ordered applies test to Compare(v, operand); mismatched kinds never match
func ordered(v, operand value.Value, test func(int) bool) bool {
	return value.Comparable(v, operand) && test(value.Compare(v, operand))
}

func contains(v, operand value.Value) bool {
	switch x := v.(type) {
	case value.Text:
		sub, ok := operand.(value.Text)
		return ok && strings.Contains(string(x), string(sub))
	case value.List:
		return slices.ContainsFunc(x, func(el value.Value) bool { return value.Equal(el, operand) })
	}
	return false
}

func fieldOrNull(r value.Map, field string) value.Value {
	if v, ok := r.Lookup(field); ok && v != nil {
		return v
	}
	return value.Null{}
}

type group struct {
	key     value.Value
	records []value.Map
}

// aggregate partitions rows by the group-by field in first-appearance order
// and folds every aggregate per group. Without group-by, all rows form one
// group, even when there are none.
func aggregate(d Descriptor, rows []value.Map) []value.Map {
	var groups []*group
	if d.groupBy == "" {
		groups = []*group{{records: rows}}
	} else {
		byKey := make(map[string]*group)
		for _, r := range rows {
			gv := fieldOrNull(r, d.groupBy)
			k := value.Key(gv)
			g, ok := byKey[k]
			if !ok {
				g = &group{key: gv}
				byKey[k] = g
				groups = append(groups, g)
			}
			g.records = append(g.records, r)
		}
	}

	aggs := d.aggregates
	if len(aggs) == 0 {
		// group-by alone lists distinct values with their sizes
		aggs = []Aggregate{{Kind: AggCount}}
	}

	out := make([]value.Map, 0, len(groups))
	for _, g := range groups {
		row := make(value.Map, 0, len(aggs)+1)
		if d.groupBy != "" {
			row.Set(d.groupBy, value.Clone(g.key))
		}
		for _, a := range aggs {
			row.Set(a.Name(), fold(a, g.records))
		}
		out = append(out, row)
	}
	return out
}

// fold computes one aggregate. Only numeric values contribute to sum, avg,
// min and max; avg, min and max of no contributors are Null.
func fold(a Aggregate, records []value.Map) value.Value {
	if a.Kind == AggCount {
		return value.Number(len(records))
	}

	var (
		n      int
		sum    float64
		lo, hi float64
	)
	for _, r := range records {
		v, ok := r.Lookup(a.Field)
		if !ok {
			continue
		}
		num, ok := v.(value.Number)
		if !ok {
			continue
		}
		f := float64(num)
		if n == 0 || f < lo {
			lo = f
		}
		if n == 0 || f > hi {
			hi = f
		}
		sum += f
		n++
	}

	switch a.Kind {
	case AggSum:
		return value.Number(sum)
	case AggAvg:
		if n == 0 {
			return value.Null{}
		}
		return value.Number(sum / float64(n))
	case AggMin:
		if n == 0 {
			return value.Null{}
		}
		return value.Number(lo)
	case AggMax:
		if n == 0 {
			return value.Null{}
		}
		return value.Number(hi)
	}
	return value.Null{}
}

// sortRows sorts in place by keys in precedence order, keeping the input
// order of ties. Missing fields sort as Null.
func sortRows(rows []value.Map, keys []SortKey) {
	slices.SortStableFunc(rows, func(a, b value.Map) int {
		for _, k := range keys {
			c := value.Compare(fieldOrNull(a, k.Field), fieldOrNull(b, k.Field))
			if k.Direction == Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}

func applyPagination[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}

	if limit > len(items)-offset {
		limit = len(items) - offset
	}

	return items[offset : offset+limit]
}
