// ABOUTME: Tests for the Value tagged union
// ABOUTME: Verifies equality, ordering, canonical keys and conversions

package value

import (
	"encoding/json"
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestEqualIsTypeSensitive(t *testing.T) {
	assert.True(t, Equal(Number(1), Number(1)))
	assert.False(t, Equal(Number(1), Text("1")))
	assert.False(t, Equal(Bool(true), Number(1)))
	assert.True(t, Equal(nil, Null{}))
	assert.False(t, Equal(Null{}, Text("")))

	assert.True(t, Equal(List{Number(1), Text("a")}, List{Number(1), Text("a")}))
	assert.False(t, Equal(List{Number(1)}, List{Number(1), Number(2)}))
}

func TestEqualMapIgnoresKeyOrder(t *testing.T) {
	a := NewMap(F("x", Number(1)), F("y", Text("b")))
	b := NewMap(F("y", Text("b")), F("x", Number(1)))
	c := NewMap(F("x", Number(1)), F("y", Text("c")))

	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c))
	assert.Equal(t, Key(a), Key(b))
}

func TestCompareWithinKind(t *testing.T) {
	assert.Equal(t, -1, Compare(Number(1), Number(2)))
	assert.Equal(t, 1, Compare(Text("b"), Text("a")))
	assert.Equal(t, 0, Compare(Text("a"), Text("a")))
	assert.Equal(t, -1, Compare(Bool(false), Bool(true)))
	assert.Equal(t, -1, Compare(List{Number(1)}, List{Number(1), Number(0)}))
	assert.Equal(t, 1, Compare(List{Number(2)}, List{Number(1), Number(9)}))
}

func TestCompareAcrossKindsUsesRank(t *testing.T) {
	ordered := []Value{
		NewMap(F("a", Number(1))),
		List{Number(1)},
		Text("z"),
		Number(100),
		Bool(true),
		Null{},
	}
	slices.SortStableFunc(ordered, Compare)

	kinds := make([]Kind, len(ordered))
	for i, v := range ordered {
		kinds[i] = v.Kind()
	}
	assert.Equal(t, []Kind{KindNull, KindBool, KindNumber, KindText, KindList, KindMap}, kinds)
}

func TestComparable(t *testing.T) {
	assert.True(t, Comparable(Number(1), Number(2)))
	assert.True(t, Comparable(Text("a"), Text("b")))
	assert.False(t, Comparable(Number(1), Text("1")))
	assert.False(t, Comparable(List{}, List{}))
	assert.False(t, Comparable(nil, Null{}))
}

func TestKeyNeverCollidesAcrossKinds(t *testing.T) {
	keys := map[string]Value{}
	for _, v := range []Value{
		Number(1), Text("1"), Bool(true), Text("true"), Null{}, Text("null"),
		List{Number(1)}, Text("[1]"), NewMap(F("a", Number(1))),
	} {
		k := Key(v)
		_, dup := keys[k]
		require.False(t, dup, "key %q collides", k)
		keys[k] = v
	}
}

func TestKeyRoundTrip(t *testing.T) {
	for _, v := range []Value{
		Null{},
		Bool(false),
		Number(-3.25),
		Number(1e21),
		Text("quote \" and <tag>"),
		List{Number(1), List{Text("nested")}, Null{}},
		NewMap(F("b", Number(2)), F("a", NewMap(F("c", Bool(true))))),
	} {
		parsed, err := ParseKey(Key(v))
		require.NoError(t, err)
		assert.True(t, Equal(v, parsed), "round trip of %s", Key(v))
	}
}

func TestKeyFoldsNegativeZero(t *testing.T) {
	assert.Equal(t, Key(Number(0)), Key(Number(math.Copysign(0, -1))))
}

func TestDecodePreservesOrder(t *testing.T) {
	v, err := Decode([]byte(`{"z":1,"a":{"y":true,"b":null},"m":[1,"x"]}`))
	require.NoError(t, err)

	m, ok := v.(Map)
	require.True(t, ok)
	assert.Equal(t, []string{"z", "a", "m"}, m.Keys())

	out, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"z":1,"a":{"y":true,"b":null},"m":[1,"x"]}`, string(out))
	assert.Equal(t, `{"z":1,"a":{"y":true,"b":null},"m":[1,"x"]}`, string(out))
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	_, err := Decode([]byte(`{"a":1} {"b":2}`))
	assert.ErrorIs(t, err, ErrTrailingData)
}

func TestDecodeRecords(t *testing.T) {
	records, err := DecodeRecords([]byte(`[{"age":25},{"age":31}]`))
	require.NoError(t, err)
	require.Len(t, records, 2)
	age, ok := records[1].Get("age")
	require.True(t, ok)
	assert.Equal(t, Number(31), age)

	_, err = DecodeRecords([]byte(`[{"age":25}, 3]`))
	assert.Error(t, err)
}

func TestLookupPath(t *testing.T) {
	m := NewMap(
		F("meta", NewMap(F("lang", Text("go")), F("loc", NewMap(F("file", Text("a.go")))))),
		F("a.b", Number(7)),
	)

	v, ok := m.Lookup("meta.lang")
	require.True(t, ok)
	assert.Equal(t, Text("go"), v)

	v, ok = m.Lookup("meta.loc.file")
	require.True(t, ok)
	assert.Equal(t, Text("a.go"), v)

	v, ok = m.Lookup("a.b")
	require.True(t, ok)
	assert.Equal(t, Number(7), v)

	_, ok = m.Lookup("meta.missing")
	assert.False(t, ok)
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(map[string]any{"b": 1, "a": []any{"x", true, nil}})
	require.NoError(t, err)
	assert.Equal(t, NewMap(F("a", List{Text("x"), Bool(true), Null{}}), F("b", Number(1))), v)

	_, err = FromAny(math.NaN())
	assert.Error(t, err)

	_, err = FromAny(struct{}{})
	assert.Error(t, err)

	assert.Equal(t, map[string]any{"a": []any{"x", true, nil}, "b": float64(1)}, ToAny(v))
}

func TestProtoRoundTrip(t *testing.T) {
	v := NewMap(
		F("name", Text("parse")),
		F("lines", Number(42)),
		F("exported", Bool(true)),
		F("tags", List{Text("a"), Null{}}),
	)

	pv := ToProto(v)
	_, isStruct := pv.GetKind().(*structpb.Value_StructValue)
	require.True(t, isStruct)

	back, err := FromProto(pv)
	require.NoError(t, err)
	assert.True(t, Equal(v, back))
}

func TestValidUTF8(t *testing.T) {
	assert.True(t, ValidUTF8(Text("héllo")))
	assert.True(t, ValidUTF8(Number(1)))
	assert.False(t, ValidUTF8(Text("a\xff")))
	assert.False(t, ValidUTF8(List{Text("ok"), Text("\xc3")}))
	assert.False(t, ValidUTF8(Map{{Key: "k\xff", Value: Null{}}}))
	assert.False(t, ValidUTF8(Map{{Key: "k", Value: List{Text("\xfe")}}}))
}
