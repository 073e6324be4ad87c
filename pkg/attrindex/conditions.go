// ABOUTME: Compound attribute queries combining conditions with AND or OR
// ABOUTME: Conditions are validated up front; evaluation never mutates the index

package attrindex

import (
	"fmt"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/nainya/entitystore/pkg/value"
)

// ParseCombinator maps "and"/"or" (any case) to a Combinator. Empty means AND.
func ParseCombinator(s string) (Combinator, error) {
	switch Combinator(strings.ToUpper(s)) {
	case "", And:
		return And, nil
	case Or:
		return Or, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCombinator, s)
	}
}

func validateCondition(i int, c Condition) error {
	if c.Attribute == "" {
		return fmt.Errorf("%w: condition %d has no attribute", ErrMissingField, i)
	}
	if c.Operator == "" {
		return fmt.Errorf("%w: condition %d has no operator", ErrMissingField, i)
	}
	if !c.Operator.valid() {
		return fmt.Errorf("%w: %q", ErrInvalidOperator, c.Operator)
	}
	if !c.Operator.needsValue() {
		return nil
	}
	if c.Value == nil {
		return fmt.Errorf("%w: condition %d (%s %s) needs a value", ErrMissingField, i, c.Attribute, c.Operator)
	}
	if c.Operator == OpContains || c.Operator == OpStartsWith {
		if _, ok := c.Value.(value.Text); !ok {
			return fmt.Errorf("%w: %s needs a text operand, got %s", ErrInvalidArgument, c.Operator, value.KindOf(c.Value))
		}
	}
	return nil
}

// FindByAttributes evaluates conditions and joins their results with comb.
// An empty combinator means AND. An empty condition list matches nothing.
func (ix *Index) FindByAttributes(conditions []Condition, comb Combinator) (ids []string, err error) {
	start := time.Now()
	defer func() { ix.observe("find_by_attributes", start, len(ids), err) }()

	switch comb {
	case "":
		comb = And
	case And, Or:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidCombinator, comb)
	}
	for i, c := range conditions {
		if err := validateCondition(i, c); err != nil {
			return nil, err
		}
	}
	if len(conditions) == 0 {
		return []string{}, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var acc *roaring.Bitmap
	for _, c := range conditions {
		bm := ix.st.evaluate(c)
		switch {
		case acc == nil:
			acc = bm
		case comb == And:
			acc.And(bm)
		default:
			acc.Or(bm)
		}
		if comb == And && acc.IsEmpty() {
			break
		}
	}
	return ix.st.dict.resolve(acc), nil
}

// evaluate returns a bitmap owned by the caller
func (s *state) evaluate(c Condition) *roaring.Bitmap {
	switch c.Operator {
	case OpEquals:
		return s.equals(c.Attribute, value.Key(c.Value))
	case OpExists:
		return s.union(c.Attribute, nil)
	case OpContains:
		needle := string(c.Value.(value.Text))
		return s.union(c.Attribute, func(v value.Value) bool {
			t, ok := v.(value.Text)
			return ok && strings.Contains(string(t), needle)
		})
	case OpStartsWith:
		prefix := string(c.Value.(value.Text))
		return s.union(c.Attribute, func(v value.Value) bool {
			t, ok := v.(value.Text)
			return ok && strings.HasPrefix(string(t), prefix)
		})
	}
	return roaring.New()
}
