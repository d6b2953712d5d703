package index

import (
	"fmt"
	"sort"

	"github.com/kailas-cloud/esdex"
	"github.com/kailas-cloud/esdex/internal/domain"
)

// ModelSpec declares a model by name.
type ModelSpec struct {
	Name         string
	DocumentType string
	Conversions  string
	Suggest      []string
	Locations    []string
	Parent       string
	Mappings     map[string]any
	Settings     map[string]any
}

// Catalog resolves model names to esdex models.
type Catalog struct {
	models map[string]esdex.Model
	roots  []string
}

// NewCatalog builds models from specs, linking children to their parents.
func NewCatalog(specs []ModelSpec) (*Catalog, error) {
	byName := make(map[string]ModelSpec, len(specs))
	children := make(map[string][]string)
	for _, s := range specs {
		if s.Name == "" {
			return nil, fmt.Errorf("model name is required")
		}
		if _, dup := byName[s.Name]; dup {
			return nil, fmt.Errorf("model %s declared twice", s.Name)
		}
		byName[s.Name] = s
	}
	for _, s := range specs {
		if s.Parent == "" {
			continue
		}
		if _, ok := byName[s.Parent]; !ok {
			return nil, fmt.Errorf("model %s: parent %q: %w", s.Name, s.Parent, domain.ErrUnknownModel)
		}
		children[s.Parent] = append(children[s.Parent], s.Name)
	}

	c := &Catalog{models: make(map[string]esdex.Model, len(specs))}
	visiting := make(map[string]bool)
	var build func(name string) (esdex.Model, error)
	build = func(name string) (esdex.Model, error) {
		if m, ok := c.models[name]; ok {
			return m, nil
		}
		if visiting[name] {
			return nil, fmt.Errorf("model %s: parent cycle", name)
		}
		visiting[name] = true

		s := byName[name]
		opts := esdex.Options{
			Conversions: s.Conversions,
			Suggest:     s.Suggest,
			Locations:   s.Locations,
			Mappings:    s.Mappings,
			Settings:    s.Settings,
		}
		if s.Parent != "" {
			opts.Parent = stub(byName[s.Parent])
		}
		for _, child := range children[name] {
			cm, err := build(child)
			if err != nil {
				return nil, err
			}
			opts.Children = append(opts.Children, cm)
		}

		m := typed(esdex.NewModel(name, opts), s.DocumentType)
		c.models[name] = m
		return m, nil
	}

	for _, s := range specs {
		if _, err := build(s.Name); err != nil {
			return nil, err
		}
		if s.Parent == "" {
			c.roots = append(c.roots, s.Name)
		}
	}
	if len(c.roots) == 0 && len(specs) > 0 {
		return nil, fmt.Errorf("models: parent cycle")
	}
	return c, nil
}

// stub stands in for a parent model where only its document type matters.
func stub(s ModelSpec) esdex.Model {
	return typed(esdex.NewModel(s.Name, esdex.Options{}), s.DocumentType)
}

func typed(m esdex.Model, docType string) esdex.Model {
	if docType == "" {
		return m
	}
	return esdex.WithDocumentType(m, docType)
}

// Model returns the named model.
func (c *Catalog) Model(name string) (esdex.Model, error) {
	m, ok := c.models[name]
	if !ok {
		return nil, fmt.Errorf("model %q: %w", name, domain.ErrUnknownModel)
	}
	return m, nil
}

// Names returns all model names, sorted.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.models))
	for name := range c.models {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Mapping returns an index body covering every model: the mappings of all
// root models and their children, with settings merged in declaration order.
func (c *Catalog) Mapping() (map[string]any, error) {
	mappings := map[string]any{}
	settings := map[string]any{}
	for _, name := range c.roots {
		body, err := esdex.Mapping(c.models[name])
		if err != nil {
			return nil, err
		}
		if m, ok := body["mappings"].(map[string]any); ok {
			for docType, v := range m {
				mappings[docType] = v
			}
		}
		if s, ok := body["settings"].(map[string]any); ok {
			for k, v := range s {
				settings[k] = v
			}
		}
	}
	body := map[string]any{"mappings": mappings}
	if len(settings) > 0 {
		body["settings"] = settings
	}
	return body, nil
}
