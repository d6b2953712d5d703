// Package mapping builds index-creation bodies from model options.
package mapping

import (
	"errors"
	"fmt"
)

// Field types emitted by the builder.
const (
	TypeGeoPoint = "geo_point"
	TypeNested   = "nested"
	TypeKeyword  = "keyword"
	TypeInteger  = "integer"
)

type typeMapping struct {
	name        string
	parent      string
	locations   []string
	conversions string
	custom      map[string]any
}

// Builder is a fluent builder for index settings and per-type mappings.
// Field methods apply to the type most recently selected with Type.
type Builder struct {
	settings map[string]any
	types    []*typeMapping
	current  *typeMapping
	err      error
}

// New starts building an index body.
func New() *Builder {
	return &Builder{}
}

// Type selects a document type, adding it on first use.
func (b *Builder) Type(name string) *Builder {
	if name == "" {
		b.fail(errors.New("document type is required"))
		return b
	}
	for _, t := range b.types {
		if t.name == name {
			b.current = t
			return b
		}
	}
	t := &typeMapping{name: name}
	b.types = append(b.types, t)
	b.current = t
	return b
}

// Locations maps fields as geo_point.
func (b *Builder) Locations(fields ...string) *Builder {
	if t := b.selected("Locations"); t != nil {
		t.locations = append(t.locations, fields...)
	}
	return b
}

// Conversions maps field as a nested list of {query, count}.
func (b *Builder) Conversions(field string) *Builder {
	if t := b.selected("Conversions"); t != nil {
		t.conversions = field
	}
	return b
}

// Parent declares the selected type a child of parentType.
func (b *Builder) Parent(parentType string) *Builder {
	if t := b.selected("Parent"); t != nil {
		t.parent = parentType
	}
	return b
}

// Merge deep-merges a caller-supplied mapping into the selected type.
// Caller values win over generated ones.
func (b *Builder) Merge(m map[string]any) *Builder {
	if t := b.selected("Merge"); t != nil {
		t.custom = deepMerge(t.custom, m)
	}
	return b
}

// Settings deep-merges index settings.
func (b *Builder) Settings(s map[string]any) *Builder {
	b.settings = deepMerge(b.settings, s)
	return b
}

// Build validates and returns the body accepted by index creation.
func (b *Builder) Build() (map[string]any, error) {
	if b.err != nil {
		return nil, b.err
	}

	known := make(map[string]bool, len(b.types))
	for _, t := range b.types {
		known[t.name] = true
	}

	body := map[string]any{}
	if len(b.settings) > 0 {
		body["settings"] = deepMerge(nil, b.settings)
	}
	if len(b.types) == 0 {
		return body, nil
	}

	mappings := make(map[string]any, len(b.types))
	for _, t := range b.types {
		if t.parent == t.name {
			return nil, fmt.Errorf("type %q cannot be its own parent", t.name)
		}
		if t.parent != "" && !known[t.parent] {
			return nil, fmt.Errorf("type %q: parent type %q is not mapped", t.name, t.parent)
		}
		m, err := t.build()
		if err != nil {
			return nil, err
		}
		mappings[t.name] = m
	}
	body["mappings"] = mappings
	return body, nil
}

// MustBuild calls Build and panics on error.
func (b *Builder) MustBuild() map[string]any {
	body, err := b.Build()
	if err != nil {
		panic(err)
	}
	return body
}

func (b *Builder) selected(method string) *typeMapping {
	if b.current == nil {
		b.fail(fmt.Errorf("%s called before Type", method))
	}
	return b.current
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (t *typeMapping) build() (map[string]any, error) {
	props := map[string]any{}
	seen := map[string]bool{}
	for _, f := range t.locations {
		if f == "" {
			return nil, fmt.Errorf("type %q: location field name is required", t.name)
		}
		if seen[f] {
			return nil, fmt.Errorf("type %q: duplicate field %q", t.name, f)
		}
		seen[f] = true
		props[f] = map[string]any{"type": TypeGeoPoint}
	}
	if t.conversions != "" {
		if seen[t.conversions] {
			return nil, fmt.Errorf("type %q: duplicate field %q", t.name, t.conversions)
		}
		props[t.conversions] = map[string]any{
			"type": TypeNested,
			"properties": map[string]any{
				"query": map[string]any{"type": TypeKeyword},
				"count": map[string]any{"type": TypeInteger},
			},
		}
	}

	m := map[string]any{}
	if len(props) > 0 {
		m["properties"] = props
	}
	if t.parent != "" {
		m["_parent"] = map[string]any{"type": t.parent}
	}
	return deepMerge(m, t.custom), nil
}

// deepMerge returns a copy of dst with src merged in; nested maps merge
// recursively and src wins on conflicts.
func deepMerge(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		if nested, ok := v.(map[string]any); ok {
			out[k] = deepMerge(nil, nested)
			continue
		}
		out[k] = v
	}
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]any)
		dstMap, dstIsMap := out[k].(map[string]any)
		switch {
		case srcIsMap && dstIsMap:
			out[k] = deepMerge(dstMap, srcMap)
		case srcIsMap:
			out[k] = deepMerge(nil, srcMap)
		default:
			out[k] = v
		}
	}
	return out
}
