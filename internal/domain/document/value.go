package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
)

// Kind tags the variant held by a Value.
type Kind uint8

// Value kinds.
const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindDecimal
	KindString
	KindObject
	KindArray
)

var kindNames = [...]string{"null", "bool", "int", "float", "decimal", "string", "object", "array"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a node of a document tree.
// The zero value is null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	d    decimal.Decimal
	s    string
	obj  *Object
	arr  []Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int wraps an integer.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float wraps a float.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Decimal wraps an arbitrary-precision decimal.
func Decimal(d decimal.Decimal) Value { return Value{kind: KindDecimal, d: d} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// ObjectValue wraps an object. A nil object becomes an empty one.
func ObjectValue(o *Object) Value {
	if o == nil {
		o = NewObject()
	}
	return Value{kind: KindObject, obj: o}
}

// Array wraps a list of values.
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, arr: items}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Truthy reports whether v is neither null nor false.
func (v Value) Truthy() bool {
	return v.kind != KindNull && !(v.kind == KindBool && !v.b)
}

// BoolValue returns the boolean payload.
func (v Value) BoolValue() bool { return v.b }

// IntValue returns the integer payload.
func (v Value) IntValue() int64 { return v.i }

// FloatValue returns the float payload.
func (v Value) FloatValue() float64 { return v.f }

// DecimalValue returns the decimal payload.
func (v Value) DecimalValue() decimal.Decimal { return v.d }

// StringValue returns the string payload.
func (v Value) StringValue() string { return v.s }

// Object returns the object payload, nil unless v is an object.
func (v Value) Object() *Object { return v.obj }

// Items returns the array payload, nil unless v is an array.
func (v Value) Items() []Value { return v.arr }

// ToFloat converts numeric and numeric-string values to float64.
// Null converts to 0. ok is false for booleans, objects and arrays.
func (v Value) ToFloat() (f float64, ok bool) {
	switch v.kind {
	case KindNull:
		return 0, true
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	case KindDecimal:
		return v.d.InexactFloat64(), true
	case KindString:
		parsed, err := strconv.ParseFloat(v.s, 64)
		if err != nil {
			return 0, true
		}
		return parsed, true
	default:
		return 0, false
	}
}

// Interface converts v into plain Go values: nil, bool, int64, float64,
// decimal.Decimal, string, map[string]any and []any.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindDecimal:
		return v.d
	case KindString:
		return v.s
	case KindObject:
		return v.obj.Map()
	case KindArray:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON encodes v; object keys keep their insertion order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindInt:
		buf.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return fmt.Errorf("unsupported float value %v", v.f)
		}
		raw, err := json.Marshal(v.f)
		if err != nil {
			return err
		}
		buf.Write(raw)
	case KindDecimal:
		buf.WriteString(v.d.String())
	case KindString:
		raw, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(raw)
	case KindObject:
		return v.obj.encode(buf)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("unknown value kind %s", v.kind)
	}
	return nil
}

// Object is an insertion-ordered string-keyed map of values.
type Object struct {
	keys   []string
	fields map[string]Value
}

// NewObject creates an empty object.
func NewObject() *Object {
	return &Object{fields: make(map[string]Value)}
}

// Len returns the number of fields.
func (o *Object) Len() int { return len(o.keys) }

// Keys returns the field names in order.
func (o *Object) Keys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Get returns the value of a field.
func (o *Object) Get(key string) (Value, bool) {
	v, ok := o.fields[key]
	return v, ok
}

// Set assigns a field, appending the key when it is new.
func (o *Object) Set(key string, v Value) {
	if _, ok := o.fields[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.fields[key] = v
}

// Delete removes a field if present.
func (o *Object) Delete(key string) {
	if _, ok := o.fields[key]; !ok {
		return
	}
	delete(o.fields, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Map converts the object into a plain map.
func (o *Object) Map() map[string]any {
	out := make(map[string]any, len(o.keys))
	for _, k := range o.keys {
		out[k] = o.fields[k].Interface()
	}
	return out
}

// MarshalJSON encodes the object with keys in insertion order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := o.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (o *Object) encode(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if err := o.fields[k].encode(buf); err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// ObjectFromMap converts a plain map; keys are ordered lexically.
func ObjectFromMap(m map[string]any) (*Object, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	o := NewObject()
	for _, k := range keys {
		v, err := FromAny(m[k])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		o.Set(k, v)
	}
	return o, nil
}
