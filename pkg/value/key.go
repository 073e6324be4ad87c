// ABOUTME: Canonical, type-preserving serialization of Values
// ABOUTME: Used as inverted-index bucket keys and in persisted index documents

package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"unicode/utf8"
)

// Key returns the canonical serialized form of v. It is canonical JSON: map keys
// sorted, no insignificant whitespace, -0 folded into 0. Number(1) serializes as
// `1` and Text("1") as `"1"`, so the two never collide.
//
// Keys are persisted; keep the encoding stable.
func Key(v Value) string {
	var buf bytes.Buffer
	writeCanonical(&buf, v)
	return buf.String()
}

// ParseKey decodes a string produced by Key
func ParseKey(key string) (Value, error) {
	v, err := Decode([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("parse value key %q: %w", key, err)
	}
	return v, nil
}

func writeCanonical(buf *bytes.Buffer, v Value) {
	switch x := v.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(bool(x)))
	case Number:
		buf.WriteString(formatNumber(float64(x)))
	case Text:
		writeString(buf, string(x))
	case List:
		buf.WriteByte('[')
		for i, el := range x {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonical(buf, el)
		}
		buf.WriteByte(']')
	case Map:
		keys := x.Keys()
		slices.Sort(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, k)
			buf.WriteByte(':')
			el, _ := x.Get(k)
			writeCanonical(buf, el)
		}
		buf.WriteByte('}')
	}
}

func formatNumber(f float64) string {
	if f == 0 {
		return "0"
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		// not representable in JSON; FromAny and the index reject these
		return strconv.Quote(strconv.FormatFloat(f, 'g', -1, 64))
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func writeString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	// Encode appends a newline
	buf.Truncate(buf.Len() - 1)
}

// IsFinite reports whether every number inside v is finite
func IsFinite(v Value) bool {
	switch x := v.(type) {
	case Number:
		f := float64(x)
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	case List:
		for _, el := range x {
			if !IsFinite(el) {
				return false
			}
		}
	case Map:
		for _, f := range x {
			if !IsFinite(f.Value) {
				return false
			}
		}
	}
	return true
}

// ValidUTF8 reports whether every text and map key inside v is valid UTF-8.
// JSON encoding replaces invalid bytes, so such values cannot round-trip.
func ValidUTF8(v Value) bool {
	switch x := v.(type) {
	case Text:
		return utf8.ValidString(string(x))
	case List:
		for _, el := range x {
			if !ValidUTF8(el) {
				return false
			}
		}
	case Map:
		for _, f := range x {
			if !utf8.ValidString(f.Key) || !ValidUTF8(f.Value) {
				return false
			}
		}
	}
	return true
}
