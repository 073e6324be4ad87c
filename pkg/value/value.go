// ABOUTME: Tagged union for indexable and queryable values
// ABOUTME: Null, Bool, Number, Text, List and ordered Map with path lookup

package value

import "strings"

// Kind identifies the concrete type stored in a Value
type Kind uint8

// Kinds are declared in their sort rank: Null sorts before Bool, Bool before Number, etc.
const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindText
	KindList
	KindMap
)

var kindNames = [...]string{"null", "bool", "number", "text", "list", "map"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// Value is a sealed interface; only the types in this package implement it.
// A nil Value is treated as Null everywhere in this package.
type Value interface {
	Kind() Kind
	sealed()
}

// Null is the absent/empty value
type Null struct{}

// Bool is a boolean value
type Bool bool

// Number is a numeric value. All numbers are float64.
type Number float64

// Text is a string value
type Text string

// List is an ordered sequence of values
type List []Value

// Field is one key/value entry of a Map
type Field struct {
	Key   string
	Value Value
}

// Map is an ordered key→Value mapping. Keys are unique; insertion order is kept
// for encoding but ignored by Equal and Compare.
type Map []Field

func (Null) Kind() Kind   { return KindNull }
func (Bool) Kind() Kind   { return KindBool }
func (Number) Kind() Kind { return KindNumber }
func (Text) Kind() Kind   { return KindText }
func (List) Kind() Kind   { return KindList }
func (Map) Kind() Kind    { return KindMap }

func (Null) sealed()   {}
func (Bool) sealed()   {}
func (Number) sealed() {}
func (Text) sealed()   {}
func (List) sealed()   {}
func (Map) sealed()    {}

// KindOf returns the kind of v, mapping nil to KindNull
func KindOf(v Value) Kind {
	if v == nil {
		return KindNull
	}
	return v.Kind()
}

// IsNull reports whether v is nil or Null
func IsNull(v Value) bool {
	return KindOf(v) == KindNull
}

// NewMap builds a Map from fields. Later duplicates replace earlier ones in place.
func NewMap(fields ...Field) Map {
	m := make(Map, 0, len(fields))
	for _, f := range fields {
		m.Set(f.Key, f.Value)
	}
	return m
}

// F is shorthand for Field{Key: key, Value: v}
func F(key string, v Value) Field {
	return Field{Key: key, Value: v}
}

// Get returns the value stored under key
func (m Map) Get(key string) (Value, bool) {
	for _, f := range m {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Set stores v under key, replacing an existing entry without moving it
func (m *Map) Set(key string, v Value) {
	for i := range *m {
		if (*m)[i].Key == key {
			(*m)[i].Value = v
			return
		}
	}
	*m = append(*m, Field{Key: key, Value: v})
}

// Keys returns the keys in insertion order
func (m Map) Keys() []string {
	keys := make([]string, len(m))
	for i, f := range m {
		keys[i] = f.Key
	}
	return keys
}

// Lookup resolves a field path. An exact key match wins; otherwise the path is
// split on '.' and each segment descends into a nested Map.
func (m Map) Lookup(path string) (Value, bool) {
	if v, ok := m.Get(path); ok {
		return v, true
	}
	head, rest, found := strings.Cut(path, ".")
	if !found {
		return nil, false
	}
	v, ok := m.Get(head)
	if !ok {
		return nil, false
	}
	inner, ok := v.(Map)
	if !ok {
		return nil, false
	}
	return inner.Lookup(rest)
}

// Clone returns a deep copy of m
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for i, f := range m {
		out[i] = Field{Key: f.Key, Value: Clone(f.Value)}
	}
	return out
}

// Clone returns a deep copy of v. Scalars are returned as is.
func Clone(v Value) Value {
	switch x := v.(type) {
	case List:
		if x == nil {
			return List(nil)
		}
		out := make(List, len(x))
		for i := range x {
			out[i] = Clone(x[i])
		}
		return out
	case Map:
		return x.Clone()
	default:
		return v
	}
}
