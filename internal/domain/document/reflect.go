package document

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

var (
	jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// fromReflect converts values outside the FromAny fast path. Containers and
// structs are walked so their elements reach FromAny one by one; names follow
// encoding/json (json tags, omitempty, embedded structs, sorted map keys).
func fromReflect(rv reflect.Value) (Value, error) {
	if !rv.IsValid() {
		return Null(), nil
	}
	if marshalsItself(rv) {
		return fromJSON(rv.Interface())
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return elem(rv.Elem())
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return fromUint(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	case reflect.Slice:
		if rv.IsNil() {
			return Null(), nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			// []byte encodes as base64 text
			return fromJSON(rv.Interface())
		}
		return fromList(rv)
	case reflect.Array:
		return fromList(rv)
	case reflect.Map:
		if rv.IsNil() {
			return Null(), nil
		}
		if rv.Type().Key().Kind() != reflect.String {
			return fromJSON(rv.Interface())
		}
		return fromStringMap(rv)
	case reflect.Struct:
		o := NewObject()
		if err := addFields(o, rv); err != nil {
			return Value{}, err
		}
		return ObjectValue(o), nil
	default:
		return Value{}, fmt.Errorf("unsupported value of type %s", rv.Type())
	}
}

// elem converts a nested value, giving the FromAny fast path first pick.
func elem(rv reflect.Value) (Value, error) {
	if !rv.IsValid() {
		return Null(), nil
	}
	if rv.CanInterface() {
		return FromAny(rv.Interface())
	}
	return fromReflect(rv)
}

func marshalsItself(rv reflect.Value) bool {
	t := rv.Type()
	if t.Kind() == reflect.Interface || !rv.CanInterface() {
		return false
	}
	return t.Implements(jsonMarshalerType) || t.Implements(textMarshalerType)
}

func fromList(rv reflect.Value) (Value, error) {
	items := make([]Value, rv.Len())
	for i := range items {
		v, err := elem(rv.Index(i))
		if err != nil {
			return Value{}, fmt.Errorf("index %d: %w", i, err)
		}
		items[i] = v
	}
	return Array(items...), nil
}

func fromStringMap(rv reflect.Value) (Value, error) {
	keys := make([]string, 0, rv.Len())
	byKey := make(map[string]reflect.Value, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k := iter.Key().String()
		keys = append(keys, k)
		byKey[k] = iter.Value()
	}
	sort.Strings(keys)

	o := NewObject()
	for _, k := range keys {
		v, err := elem(byKey[k])
		if err != nil {
			return Value{}, fmt.Errorf("field %q: %w", k, err)
		}
		o.Set(k, v)
	}
	return ObjectValue(o), nil
}

func addFields(o *Object, rv reflect.Value) error {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, omitEmpty, skip := jsonName(f)
		if skip {
			continue
		}
		fv := rv.Field(i)

		if f.Anonymous && name == "" {
			inner := fv
			if inner.Kind() == reflect.Pointer {
				if inner.IsNil() {
					continue
				}
				inner = inner.Elem()
			}
			if inner.Kind() == reflect.Struct && !marshalsItself(inner) {
				if err := addFields(o, inner); err != nil {
					return err
				}
				continue
			}
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		if omitEmpty && isEmpty(fv) {
			continue
		}
		v, err := elem(fv)
		if err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
		o.Set(name, v)
	}
	return nil
}

// jsonName reads the json tag of f. skip is set for "-" and for unexported
// non-embedded fields.
func jsonName(f reflect.StructField) (name string, omitEmpty, skip bool) {
	if !f.IsExported() && !f.Anonymous {
		return "", false, true
	}
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	name, opts, _ := strings.Cut(tag, ",")
	for opts != "" {
		var opt string
		opt, opts, _ = strings.Cut(opts, ",")
		if opt == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, false
}

// isEmpty mirrors the omitempty rule of encoding/json.
func isEmpty(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return rv.Len() == 0
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.Interface, reflect.Pointer:
		return rv.IsZero()
	}
	return false
}
