package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind is the scalar type held by a Value.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindString
	KindNumber
)

// Value is a single scalar field value of a Record.
// The zero Value is empty. Values are comparable and usable as map keys.
type Value struct {
	kind Kind
	str  string
	num  float64
}

// String returns a string Value.
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Number returns a numeric Value.
func Number(n float64) Value {
	return Value{kind: KindNumber, num: n}
}

// Kind reports the scalar type of the value.
func (v Value) Kind() Kind { return v.kind }

// IsEmpty reports whether the value is absent or the empty string.
// Numeric zero is a real value.
func (v Value) IsEmpty() bool {
	return v.kind == KindEmpty || (v.kind == KindString && v.str == "")
}

// Str returns the string payload and whether the value holds a string.
func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindString
}

// Num returns the numeric payload and whether the value holds a number.
func (v Value) Num() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// String renders the value for display and as a JSON object key.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	default:
		return ""
	}
}

// MarshalJSON encodes the value as a JSON string, number or null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a string, number, bool or null.
// Booleans are kept as the strings "true" and "false".
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = String(strconv.FormatBool(b))
	case '{', '[':
		return fmt.Errorf("field value must be a scalar, got %s", data)
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*v = Number(n)
	}
	return nil
}
