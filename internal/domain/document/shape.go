package document

import (
	"fmt"

	"github.com/kailas-cloud/esdex/internal/domain"
)

// IDField is never written into a document body; the id travels in the identity.
const IDField = "_id"

// Options names the fields that get engine-specific treatment.
type Options struct {
	Conversions string   // query → count map, stored as [{query, count}]
	Suggest     []string // always present, null when missing
	Locations   []string // [lat, lon] pairs, stored as [lon, lat]
}

// Shape turns raw search data into an engine-ready document.
// source is not modified.
func Shape(source *Object, opts Options) (*Object, error) {
	doc := NewObject()
	if source != nil {
		for _, k := range source.keys {
			if k == IDField {
				continue
			}
			doc.Set(k, source.fields[k])
		}
	}

	if opts.Conversions != "" {
		if v, ok := doc.Get(opts.Conversions); ok && v.Truthy() {
			list, err := conversionList(opts.Conversions, v)
			if err != nil {
				return nil, err
			}
			doc.Set(opts.Conversions, list)
		}
	}

	for _, field := range opts.Suggest {
		if v, ok := doc.Get(field); !ok || !v.Truthy() {
			doc.Set(field, Null())
		}
	}

	for _, field := range opts.Locations {
		v, ok := doc.Get(field)
		if !ok || !v.Truthy() {
			continue
		}
		loc, err := reverseLocation(field, v)
		if err != nil {
			return nil, err
		}
		doc.Set(field, loc)
	}

	return CoerceDecimals(ObjectValue(doc)).Object(), nil
}

// CoerceDecimals replaces every decimal in the tree with its float64 value.
// Precision beyond float64 is lost.
func CoerceDecimals(v Value) Value {
	switch v.kind {
	case KindDecimal:
		return Float(v.d.InexactFloat64())
	case KindObject:
		out := NewObject()
		for _, k := range v.obj.keys {
			out.Set(k, CoerceDecimals(v.obj.fields[k]))
		}
		return ObjectValue(out)
	case KindArray:
		items := make([]Value, len(v.arr))
		for i, item := range v.arr {
			items[i] = CoerceDecimals(item)
		}
		return Array(items...)
	default:
		return v
	}
}

func conversionList(field string, v Value) (Value, error) {
	switch v.kind {
	case KindObject:
		items := make([]Value, 0, v.obj.Len())
		for _, q := range v.obj.keys {
			items = append(items, conversionEntry(String(q), v.obj.fields[q]))
		}
		return Array(items...), nil
	case KindArray:
		// Already a list of [query, count] pairs.
		items := make([]Value, 0, len(v.arr))
		for i, pair := range v.arr {
			if pair.kind != KindArray || len(pair.arr) != 2 {
				return Value{}, domain.NewFieldError(field, fmt.Sprintf("entry %d is not a [query, count] pair", i))
			}
			items = append(items, conversionEntry(pair.arr[0], pair.arr[1]))
		}
		return Array(items...), nil
	default:
		return Value{}, domain.NewFieldError(field, "conversions must be a map of query to count, got "+v.kind.String())
	}
}

func conversionEntry(query, count Value) Value {
	o := NewObject()
	o.Set("query", query)
	o.Set("count", count)
	return ObjectValue(o)
}

func reverseLocation(field string, v Value) (Value, error) {
	if v.kind != KindArray {
		return Value{}, domain.NewFieldError(field, "location must be a [lat, lon] pair, got "+v.kind.String())
	}
	if len(v.arr) > 0 && v.arr[0].kind == KindArray {
		pairs := make([]Value, len(v.arr))
		for i, pair := range v.arr {
			if pair.kind != KindArray {
				return Value{}, domain.NewFieldError(field, fmt.Sprintf("location %d is not a pair", i))
			}
			rev, err := reversedFloats(field, pair.arr)
			if err != nil {
				return Value{}, err
			}
			pairs[i] = rev
		}
		return Array(pairs...), nil
	}
	return reversedFloats(field, v.arr)
}

func reversedFloats(field string, items []Value) (Value, error) {
	out := make([]Value, len(items))
	for i, item := range items {
		f, ok := item.ToFloat()
		if !ok {
			return Value{}, domain.NewFieldError(field, "coordinate is not numeric: "+item.kind.String())
		}
		out[len(items)-1-i] = Float(f)
	}
	return Array(out...), nil
}
