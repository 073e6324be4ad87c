// ABOUTME: JSON encoding and order-preserving decoding for Values
// ABOUTME: Maps keep document key order; numbers decode as float64

package value

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrTrailingData is returned when a document holds more than one JSON value
var ErrTrailingData = errors.New("value: trailing data after JSON value")

// Decode parses a single JSON document into a Value, preserving object key order
func Decode(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeNext(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, ErrTrailingData
	}
	return v, nil
}

// DecodeRecords parses a JSON array of objects into records
func DecodeRecords(data []byte) ([]Map, error) {
	v, err := Decode(data)
	if err != nil {
		return nil, err
	}
	list, ok := v.(List)
	if !ok {
		return nil, fmt.Errorf("records: expected array, got %s", KindOf(v))
	}
	records := make([]Map, 0, len(list))
	for i, el := range list {
		m, ok := el.(Map)
		if !ok {
			return nil, fmt.Errorf("records[%d]: expected object, got %s", i, KindOf(el))
		}
		records = append(records, m)
	}
	return records, nil
}

func decodeNext(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(t), nil
	case string:
		return Text(t), nil
	case json.Number:
		f, err := strconv.ParseFloat(string(t), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", t, err)
		}
		return Number(f), nil
	case json.Delim:
		switch t {
		case '[':
			list := List{}
			for dec.More() {
				el, err := decodeNext(dec)
				if err != nil {
					return nil, err
				}
				list = append(list, el)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return list, nil
		case '{':
			m := Map{}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("invalid object key %v", keyTok)
				}
				el, err := decodeNext(dec)
				if err != nil {
					return nil, err
				}
				m.Set(key, el)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	return nil, fmt.Errorf("unexpected JSON token %v", tok)
}

// MarshalJSON encodes Null as JSON null
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// MarshalJSON encodes the map as a JSON object in insertion order
func (m Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeString(&buf, f.Key)
		buf.WriteByte(':')
		data, err := marshalValue(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Key, err)
		}
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping key order
func (m *Map) UnmarshalJSON(data []byte) error {
	v, err := Decode(data)
	if err != nil {
		return err
	}
	decoded, ok := v.(Map)
	if !ok {
		return fmt.Errorf("expected object, got %s", KindOf(v))
	}
	*m = decoded
	return nil
}

// MarshalJSON encodes the list as a JSON array
func (l List) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, el := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		data, err := marshalValue(el)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON array
func (l *List) UnmarshalJSON(data []byte) error {
	v, err := Decode(data)
	if err != nil {
		return err
	}
	decoded, ok := v.(List)
	if !ok {
		return fmt.Errorf("expected array, got %s", KindOf(v))
	}
	*l = decoded
	return nil
}

// Marshal encodes any Value as JSON
func Marshal(v Value) ([]byte, error) {
	return marshalValue(v)
}

func marshalValue(v Value) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	if !IsFinite(v) {
		return nil, fmt.Errorf("non-finite number in %s value", v.Kind())
	}
	return json.Marshal(v)
}
