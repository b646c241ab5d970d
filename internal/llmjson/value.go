package llmjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/buger/jsonparser"
)

var (
	ErrNotFound = errors.New("json: key not found")
	ErrKind     = errors.New("json: unexpected kind")
)

// Kind is the JSON type of a Value.
type Kind int

const (
	Invalid Kind = iota
	Null
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "invalid"
	}
}

// Value is a parsed JSON value. String values hold their escaped body
// without quotes, as jsonparser returns them.
type Value struct {
	raw  []byte
	kind Kind
}

// Parse validates data and wraps it as a Value.
func Parse(data []byte) (Value, error) {
	if !json.Valid(data) {
		return Value{}, fmt.Errorf("json: invalid document")
	}
	for i, c := range data {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		case '{':
			return Value{raw: data[i:], kind: Object}, nil
		case '[':
			return Value{raw: data[i:], kind: Array}, nil
		case '"':
			s, err := strconv.Unquote(string(bytesTrimRight(data[i:])))
			if err != nil {
				return Value{}, fmt.Errorf("json: %w", err)
			}
			b, _ := json.Marshal(s)
			return Value{raw: b[1 : len(b)-1], kind: String}, nil
		case 't', 'f':
			return Value{raw: bytesTrimRight(data[i:]), kind: Bool}, nil
		case 'n':
			return Value{raw: bytesTrimRight(data[i:]), kind: Null}, nil
		default:
			return Value{raw: bytesTrimRight(data[i:]), kind: Number}, nil
		}
	}
	return Value{}, fmt.Errorf("json: empty document")
}

// ParseString is Parse for text input.
func ParseString(s string) (Value, error) {
	return Parse([]byte(s))
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == Null }

// Raw returns the JSON encoding of v.
func (v Value) Raw() []byte {
	if v.kind == String {
		out := make([]byte, 0, len(v.raw)+2)
		out = append(out, '"')
		out = append(out, v.raw...)
		return append(out, '"')
	}
	return v.raw
}

// Get walks path through objects and arrays. Array indexes use the
// jsonparser form "[0]".
func (v Value) Get(path ...string) (Value, error) {
	if v.kind != Object && v.kind != Array {
		return Value{}, fmt.Errorf("%w: cannot index %s", ErrKind, v.kind)
	}
	raw, typ, _, err := jsonparser.Get(v.raw, path...)
	if errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return Value{}, fmt.Errorf("%w: %v", ErrNotFound, path)
	}
	if err != nil {
		return Value{}, fmt.Errorf("json: get %v: %w", path, err)
	}
	return Value{raw: raw, kind: kindOf(typ)}, nil
}

// Has reports whether path resolves to a value.
func (v Value) Has(path ...string) bool {
	_, err := v.Get(path...)
	return err == nil
}

// Str returns the unescaped string value.
func (v Value) Str() (string, error) {
	if v.kind != String {
		return "", fmt.Errorf("%w: want string, got %s", ErrKind, v.kind)
	}
	return jsonparser.ParseString(v.raw)
}

// Float returns a numeric value as float64.
func (v Value) Float() (float64, error) {
	if v.kind != Number {
		return 0, fmt.Errorf("%w: want number, got %s", ErrKind, v.kind)
	}
	return jsonparser.ParseFloat(v.raw)
}

// Int returns a numeric value as int64. Fractional numbers are rejected.
func (v Value) Int() (int64, error) {
	if v.kind != Number {
		return 0, fmt.Errorf("%w: want number, got %s", ErrKind, v.kind)
	}
	return jsonparser.ParseInt(v.raw)
}

// Items returns the elements of an array.
func (v Value) Items() ([]Value, error) {
	if v.kind != Array {
		return nil, fmt.Errorf("%w: want array, got %s", ErrKind, v.kind)
	}
	var (
		items []Value
		inner error
	)
	_, err := jsonparser.ArrayEach(v.raw, func(raw []byte, typ jsonparser.ValueType, _ int, err error) {
		if err != nil {
			inner = err
			return
		}
		items = append(items, Value{raw: raw, kind: kindOf(typ)})
	})
	if err != nil {
		return nil, fmt.Errorf("json: iterating array: %w", err)
	}
	if inner != nil {
		return nil, fmt.Errorf("json: iterating array: %w", inner)
	}
	return items, nil
}

// Decode unmarshals v into dst.
func (v Value) Decode(dst any) error {
	return json.Unmarshal(v.Raw(), dst)
}

func kindOf(t jsonparser.ValueType) Kind {
	switch t {
	case jsonparser.Null:
		return Null
	case jsonparser.Boolean:
		return Bool
	case jsonparser.Number:
		return Number
	case jsonparser.String:
		return String
	case jsonparser.Array:
		return Array
	case jsonparser.Object:
		return Object
	default:
		return Invalid
	}
}

func bytesTrimRight(b []byte) []byte {
	end := len(b)
	for end > 0 {
		switch b[end-1] {
		case ' ', '\t', '\r', '\n':
			end--
			continue
		}
		break
	}
	return b[:end]
}
