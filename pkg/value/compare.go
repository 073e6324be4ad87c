// ABOUTME: Structural equality and total ordering for Values
// ABOUTME: Cross-kind pairs order by kind rank so sorts stay deterministic

package value

import (
	"cmp"
	"slices"
	"strings"
)

// Equal reports deep, type-sensitive equality. Number(1) never equals Text("1").
// Maps are equal when they hold the same keys with equal values, in any order.
func Equal(a, b Value) bool {
	ka, kb := KindOf(a), KindOf(b)
	if ka != kb {
		return false
	}

	switch ka {
	case KindNull:
		return true
	case KindBool:
		return a.(Bool) == b.(Bool)
	case KindNumber:
		return a.(Number) == b.(Number)
	case KindText:
		return a.(Text) == b.(Text)
	case KindList:
		la, lb := a.(List), b.(List)
		if len(la) != len(lb) {
			return false
		}
		for i := range la {
			if !Equal(la[i], lb[i]) {
				return false
			}
		}
		return true
	case KindMap:
		ma, mb := a.(Map), b.(Map)
		if len(ma) != len(mb) {
			return false
		}
		for _, f := range ma {
			other, ok := mb.Get(f.Key)
			if !ok || !Equal(f.Value, other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Compare returns -1, 0 or +1. It is a total order: values of different kinds
// order by kind rank (Null < Bool < Number < Text < List < Map), values of the
// same kind by their contents.
func Compare(a, b Value) int {
	ka, kb := KindOf(a), KindOf(b)
	if ka != kb {
		return cmp.Compare(ka, kb)
	}

	switch ka {
	case KindNull:
		return 0
	case KindBool:
		return compareBool(bool(a.(Bool)), bool(b.(Bool)))
	case KindNumber:
		return cmp.Compare(float64(a.(Number)), float64(b.(Number)))
	case KindText:
		return strings.Compare(string(a.(Text)), string(b.(Text)))
	case KindList:
		la, lb := a.(List), b.(List)
		for i := 0; i < len(la) && i < len(lb); i++ {
			if c := Compare(la[i], lb[i]); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(la), len(lb))
	case KindMap:
		return compareMaps(a.(Map), b.(Map))
	default:
		return 0
	}
}

// Comparable reports whether a and b can be range-compared in a filter: both must
// be the same kind and that kind must be Bool, Number or Text.
func Comparable(a, b Value) bool {
	ka := KindOf(a)
	if ka != KindOf(b) {
		return false
	}
	return ka == KindBool || ka == KindNumber || ka == KindText
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func compareMaps(a, b Map) int {
	ak := a.Keys()
	bk := b.Keys()
	slices.Sort(ak)
	slices.Sort(bk)

	for i := 0; i < len(ak) && i < len(bk); i++ {
		if c := strings.Compare(ak[i], bk[i]); c != 0 {
			return c
		}
		av, _ := a.Get(ak[i])
		bv, _ := b.Get(bk[i])
		if c := Compare(av, bv); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(ak), len(bk))
}
