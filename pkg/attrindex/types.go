// ABOUTME: Attribute index data model: conditions, combinators and errors
// ABOUTME: Errors are sentinels wrapped with context by the operations

package attrindex

import (
	"errors"

	"github.com/nainya/entitystore/pkg/value"
)

var (
	// ErrInvalidArgument indicates an empty entity id or attribute name,
	// a missing value or a non-finite number
	ErrInvalidArgument = errors.New("attrindex: invalid argument")

	// ErrInvalidOperator indicates an unknown condition operator
	ErrInvalidOperator = errors.New("attrindex: invalid operator")

	// ErrInvalidCombinator indicates a combinator other than AND or OR
	ErrInvalidCombinator = errors.New("attrindex: invalid combinator")

	// ErrMissingField indicates a condition without attribute, operator or a required value
	ErrMissingField = errors.New("attrindex: missing field")

	// ErrInvalidDataStructure indicates a persisted document that failed validation
	ErrInvalidDataStructure = errors.New("attrindex: invalid data structure")

	// ErrStorageFailure indicates the storage backend failed
	ErrStorageFailure = errors.New("attrindex: storage failure")
)

// Operator is a condition operator for FindByAttributes
type Operator string

const (
	OpEquals     Operator = "equals"
	OpExists     Operator = "exists"
	OpContains   Operator = "contains"   // substring of text values, case-sensitive
	OpStartsWith Operator = "startsWith" // prefix of text values, case-sensitive
)

// needsValue reports whether the operator takes an operand
func (op Operator) needsValue() bool {
	return op != OpExists
}

func (op Operator) valid() bool {
	switch op {
	case OpEquals, OpExists, OpContains, OpStartsWith:
		return true
	}
	return false
}

// Combinator joins condition results
type Combinator string

const (
	And Combinator = "AND"
	Or  Combinator = "OR"
)

// Condition is one predicate over a single attribute
type Condition struct {
	Attribute string
	Operator  Operator
	Value     value.Value // ignored for exists
}

// Statistics summarizes index size
type Statistics struct {
	TotalEntities          int
	TotalAttributes        int
	TotalAssociations      int
	AvgAttributesPerEntity float64
}
