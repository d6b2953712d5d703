package esdex

import (
	"fmt"

	"github.com/kailas-cloud/esdex/internal/domain/mapping"
)

// Mapping builds the index-creation body for a model and its children:
// geo_point location fields, nested conversions, _parent links and the
// caller's own mappings and settings.
func Mapping(m Model) (map[string]any, error) {
	opts := m.SearchOptions()
	b := mapping.New()
	addModel(b, m)
	for _, child := range opts.Children {
		addModel(b, child)
	}
	if len(opts.Settings) > 0 {
		b.Settings(opts.Settings)
	}
	body, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("mapping %s: %w", m.ModelName(), err)
	}
	return body, nil
}

func addModel(b *mapping.Builder, m Model) {
	opts := m.SearchOptions()
	b.Type(KlassDocumentType(m)).Locations(opts.Locations...)
	if opts.Conversions != "" {
		b.Conversions(opts.Conversions)
	}
	if opts.Parent != nil {
		b.Parent(KlassDocumentType(opts.Parent))
	}
	if len(opts.Mappings) > 0 {
		b.Merge(opts.Mappings)
	}
}
