// ABOUTME: Conversion between Values and plain Go / protobuf representations
// ABOUTME: Accepts decoded JSON shapes and structpb messages

package value

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"

	"google.golang.org/protobuf/types/known/structpb"
)

// FromAny converts a plain Go value (as produced by encoding/json, YAML decoders or
// literals) into a Value. Non-finite numbers are rejected.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null{}, nil
	case Value:
		if !IsFinite(t) {
			return nil, fmt.Errorf("non-finite number")
		}
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return Text(t), nil
	case float64:
		return number(t)
	case float32:
		return number(float64(t))
	case int:
		return Number(t), nil
	case int8:
		return Number(t), nil
	case int16:
		return Number(t), nil
	case int32:
		return Number(t), nil
	case int64:
		return Number(t), nil
	case uint:
		return Number(t), nil
	case uint8:
		return Number(t), nil
	case uint16:
		return Number(t), nil
	case uint32:
		return Number(t), nil
	case uint64:
		return Number(t), nil
	case json.Number:
		f, err := strconv.ParseFloat(string(t), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", t, err)
		}
		return number(f)
	case []string:
		list := make(List, len(t))
		for i, s := range t {
			list[i] = Text(s)
		}
		return list, nil
	case []any:
		list := make(List, len(t))
		for i, el := range t {
			v, err := FromAny(el)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			list[i] = v
		}
		return list, nil
	case map[string]any:
		// plain maps carry no order; sort for determinism
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		m := make(Map, 0, len(t))
		for _, k := range keys {
			v, err := FromAny(t[k])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			m = append(m, Field{Key: k, Value: v})
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", x)
	}
}

// MustFrom is FromAny that panics on error. Intended for literals and tests.
func MustFrom(x any) Value {
	v, err := FromAny(x)
	if err != nil {
		panic(err)
	}
	return v
}

// ToAny converts a Value into plain Go types: nil, bool, float64, string,
// []any and map[string]any.
func ToAny(v Value) any {
	switch x := v.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(x)
	case Number:
		return float64(x)
	case Text:
		return string(x)
	case List:
		out := make([]any, len(x))
		for i, el := range x {
			out[i] = ToAny(el)
		}
		return out
	case Map:
		out := make(map[string]any, len(x))
		for _, f := range x {
			out[f.Key] = ToAny(f.Value)
		}
		return out
	default:
		return nil
	}
}

func number(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite number %v", f)
	}
	return Number(f), nil
}

// FromProto converts a protobuf Value. Struct fields are ordered by key.
func FromProto(pv *structpb.Value) (Value, error) {
	if pv == nil {
		return Null{}, nil
	}
	switch k := pv.GetKind().(type) {
	case nil, *structpb.Value_NullValue:
		return Null{}, nil
	case *structpb.Value_BoolValue:
		return Bool(k.BoolValue), nil
	case *structpb.Value_NumberValue:
		return number(k.NumberValue)
	case *structpb.Value_StringValue:
		return Text(k.StringValue), nil
	case *structpb.Value_ListValue:
		list := make(List, 0, len(k.ListValue.GetValues()))
		for i, el := range k.ListValue.GetValues() {
			v, err := FromProto(el)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			list = append(list, v)
		}
		return list, nil
	case *structpb.Value_StructValue:
		return FromProtoStruct(k.StructValue)
	default:
		return nil, fmt.Errorf("unsupported protobuf value kind %T", k)
	}
}

// FromProtoStruct converts a protobuf Struct into a Map ordered by key
func FromProtoStruct(s *structpb.Struct) (Map, error) {
	fields := s.GetFields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	m := make(Map, 0, len(keys))
	for _, k := range keys {
		v, err := FromProto(fields[k])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		m = append(m, Field{Key: k, Value: v})
	}
	return m, nil
}

// ToProto converts a Value into a protobuf Value
func ToProto(v Value) *structpb.Value {
	switch x := v.(type) {
	case nil, Null:
		return structpb.NewNullValue()
	case Bool:
		return structpb.NewBoolValue(bool(x))
	case Number:
		return structpb.NewNumberValue(float64(x))
	case Text:
		return structpb.NewStringValue(string(x))
	case List:
		values := make([]*structpb.Value, len(x))
		for i, el := range x {
			values[i] = ToProto(el)
		}
		return structpb.NewListValue(&structpb.ListValue{Values: values})
	case Map:
		return structpb.NewStructValue(ToProtoStruct(x))
	default:
		return structpb.NewNullValue()
	}
}

// ToProtoStruct converts a Map into a protobuf Struct
func ToProtoStruct(m Map) *structpb.Struct {
	fields := make(map[string]*structpb.Value, len(m))
	for _, f := range m {
		fields[f.Key] = ToProto(f.Value)
	}
	return &structpb.Struct{Fields: fields}
}
