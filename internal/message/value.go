package message

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind tags the type held by a Value.
type Kind int

// Value kinds. The zero Value is KindNull.
const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
)

// Value is a scalar metadata value: string, number, boolean or null.
type Value struct {
	kind Kind
	s    string
	n    float64
	b    bool
}

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Number returns a numeric Value.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Null returns the null Value.
func Null() Value { return Value{} }

// ValueOf converts a decoded YAML or JSON scalar into a Value.
func ValueOf(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case int:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case uint64:
		return Number(float64(x)), nil
	case float64:
		return Number(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("metadata number %q: %w", x, err)
		}
		return Number(f), nil
	default:
		return Value{}, fmt.Errorf("metadata value of type %T is not a scalar", v)
	}
}

// Kind reports which type v holds.
func (v Value) Kind() Kind { return v.kind }

// Interface returns the held value as string, float64, bool or nil.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindNumber:
		return v.n
	case KindBool:
		return v.b
	default:
		return nil
	}
}

// String renders the value as text; providers that only accept string
// metadata use this form. Null renders as "".
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
