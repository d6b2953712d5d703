package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
)

// FromAny builds a Value from plain Go data. Slices, maps, pointers and
// structs are walked field by field so decimals keep their kind at any
// depth. Types with their own JSON or text encoding go through it.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case *Object:
		return ObjectValue(t), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return fromUint(uint64(t)), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		return fromUint(t), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case decimal.Decimal:
		return Decimal(t), nil
	case *decimal.Decimal:
		if t == nil {
			return Null(), nil
		}
		return Decimal(*t), nil
	case *big.Float:
		if t == nil {
			return Null(), nil
		}
		d, err := decimal.NewFromString(t.Text('f', -1))
		if err != nil {
			return Value{}, fmt.Errorf("big.Float %s: %w", t.String(), err)
		}
		return Decimal(d), nil
	case json.Number:
		return fromNumber(t)
	case map[string]any:
		o, err := ObjectFromMap(t)
		if err != nil {
			return Value{}, err
		}
		return ObjectValue(o), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items[i] = v
		}
		return Array(items...), nil
	case []string:
		items := make([]Value, len(t))
		for i, s := range t {
			items[i] = String(s)
		}
		return Array(items...), nil
	case []float64:
		items := make([]Value, len(t))
		for i, f := range t {
			items[i] = Float(f)
		}
		return Array(items...), nil
	case []int:
		items := make([]Value, len(t))
		for i, n := range t {
			items[i] = Int(int64(n))
		}
		return Array(items...), nil
	case [][]float64:
		items := make([]Value, len(t))
		for i, pair := range t {
			inner := make([]Value, len(pair))
			for j, f := range pair {
				inner[j] = Float(f)
			}
			items[i] = Array(inner...)
		}
		return Array(items...), nil
	case map[string]int:
		o := NewObject()
		for _, k := range sortedKeys(t) {
			o.Set(k, Int(int64(t[k])))
		}
		return ObjectValue(o), nil
	case map[string]int64:
		o := NewObject()
		for _, k := range sortedKeys(t) {
			o.Set(k, Int(t[k]))
		}
		return ObjectValue(o), nil
	case map[string]string:
		o := NewObject()
		for _, k := range sortedKeys(t) {
			o.Set(k, String(t[k]))
		}
		return ObjectValue(o), nil
	default:
		return fromReflect(reflect.ValueOf(x))
	}
}

// Decode parses JSON into a Value, keeping object key order and number precision.
func Decode(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, err
	}
	if dec.More() {
		return Value{}, fmt.Errorf("trailing data after JSON value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			o := NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("unexpected object key %v", keyTok)
				}
				v, err := decodeValue(dec)
				if err != nil {
					return Value{}, fmt.Errorf("field %q: %w", key, err)
				}
				o.Set(key, v)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return ObjectValue(o), nil
		case '[':
			items := []Value{}
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, v)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Array(items...), nil
		default:
			return Value{}, fmt.Errorf("unexpected delimiter %v", t)
		}
	default:
		return FromAny(t)
	}
}

func fromJSON(x any) (Value, error) {
	raw, err := json.Marshal(x)
	if err != nil {
		return Value{}, fmt.Errorf("unsupported value of type %T: %w", x, err)
	}
	return Decode(raw)
}

func fromNumber(n json.Number) (Value, error) {
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		return Int(i), nil
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return Value{}, fmt.Errorf("number %q: %w", n, err)
	}
	return Float(f), nil
}

func fromUint(u uint64) Value {
	if u > 1<<63-1 {
		return Decimal(decimal.NewFromBigInt(new(big.Int).SetUint64(u), 0))
	}
	return Int(int64(u))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
