package esdex

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kailas-cloud/esdex/internal/engine"
)

// --- in-memory engine ---

type docKey struct {
	index, docType, id, parent string
}

type bulkCall struct {
	index   string
	docType string
	items   []engine.BulkItem
}

type memEngine struct {
	mu sync.Mutex

	indices map[string]map[string]bool // index -> aliases
	bodies  map[string]any             // index -> create body
	docs    map[docKey]json.RawMessage

	writes       []engine.Identity
	deletes      []engine.Identity
	gets         []engine.Identity
	bulks        []bulkCall
	aliasUpdates [][]engine.AliasAction
	deleted      []string

	bulkErr    error
	bulkStatus func(item engine.BulkItem) int // default 201
	searchFn   func(index string, types []string, query any) (*engine.SearchResult, error)
	refreshFn  func(name string) error
}

func newMemEngine() *memEngine {
	return &memEngine{
		indices: make(map[string]map[string]bool),
		bodies:  make(map[string]any),
		docs:    make(map[docKey]json.RawMessage),
	}
}

func key(ident engine.Identity) docKey {
	return docKey{ident.Index, ident.Type, ident.ID.String(), ident.Parent}
}

func (m *memEngine) CreateIndex(_ context.Context, name string, body any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.indices[name]; ok {
		return engine.Classify(engine.OpCreateIndex, 400, &engine.ErrorCause{Type: "resource_already_exists_exception"})
	}
	m.indices[name] = map[string]bool{}
	m.bodies[name] = body
	return nil
}

func (m *memEngine) DeleteIndex(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.indices[name]; !ok {
		return engine.Classify(engine.OpDeleteIndex, 404, &engine.ErrorCause{Type: "index_not_found_exception"})
	}
	delete(m.indices, name)
	for k := range m.docs {
		if k.index == name {
			delete(m.docs, k)
		}
	}
	m.deleted = append(m.deleted, name)
	return nil
}

func (m *memEngine) IndexExists(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.indices[name]
	return ok, nil
}

func (m *memEngine) RefreshIndex(_ context.Context, name string) error {
	if m.refreshFn != nil {
		return m.refreshFn(name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.indices[name]; !ok {
		return engine.Classify(engine.OpRefreshIndex, 404, nil)
	}
	return nil
}

func (m *memEngine) GetAliases(_ context.Context, pattern string) (map[string][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	out := make(map[string][]string)
	for index, aliases := range m.indices {
		if !strings.HasPrefix(index, prefix) {
			continue
		}
		names := []string{}
		for a := range aliases {
			names = append(names, a)
		}
		sort.Strings(names)
		out[index] = names
	}
	return out, nil
}

func (m *memEngine) IndicesForAlias(_ context.Context, alias string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for index, aliases := range m.indices {
		if aliases[alias] {
			out = append(out, index)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memEngine) UpdateAliases(_ context.Context, actions []engine.AliasAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range actions {
		aliases, ok := m.indices[a.Index]
		if !ok {
			return engine.Classify(engine.OpUpdateAliases, 404, &engine.ErrorCause{Type: "index_not_found_exception"})
		}
		if a.Add {
			aliases[a.Alias] = true
		} else {
			delete(aliases, a.Alias)
		}
	}
	m.aliasUpdates = append(m.aliasUpdates, actions)
	return nil
}

func (m *memEngine) IndexDocument(_ context.Context, ident engine.Identity, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, ident)
	if _, ok := m.indices[ident.Index]; !ok {
		m.indices[ident.Index] = map[string]bool{}
	}
	m.docs[key(ident)] = raw
	return nil
}

func (m *memEngine) DeleteDocument(_ context.Context, ident engine.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, ident)
	if _, ok := m.docs[key(ident)]; !ok {
		return engine.Classify(engine.OpDelete, 404, nil)
	}
	delete(m.docs, key(ident))
	return nil
}

func (m *memEngine) GetDocument(_ context.Context, ident engine.Identity) (*engine.GetResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets = append(m.gets, ident)
	if _, ok := m.indices[ident.Index]; !ok {
		return nil, engine.Classify(engine.OpGet, 404, &engine.ErrorCause{Type: "index_not_found_exception"})
	}
	raw, ok := m.docs[key(ident)]
	if !ok {
		return nil, engine.Classify(engine.OpGet, 404, nil)
	}
	return &engine.GetResult{Index: ident.Index, Type: ident.Type, ID: ident.ID.String(), Found: true, Source: raw}, nil
}

func (m *memEngine) Bulk(_ context.Context, index, docType string, items []engine.BulkItem) (*engine.BulkResponse, error) {
	if m.bulkErr != nil {
		return nil, m.bulkErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bulks = append(m.bulks, bulkCall{index: index, docType: docType, items: items})
	if _, ok := m.indices[index]; !ok {
		m.indices[index] = map[string]bool{}
	}
	resp := &engine.BulkResponse{}
	for _, item := range items {
		raw, err := json.Marshal(item.Body)
		if err != nil {
			return nil, err
		}
		res := engine.BulkResponseItem{Index: index, Type: docType, ID: item.ID.String(), Status: 201, Result: "created"}
		if m.bulkStatus != nil {
			res.Status = m.bulkStatus(item)
		}
		if res.Status >= 300 {
			resp.Errors = true
			res.Result = ""
			res.Error = &engine.ErrorCause{Type: "mapper_parsing_exception", Reason: "failed to parse [price]"}
		} else {
			m.docs[docKey{index, docType, item.ID.String(), item.Parent}] = raw
		}
		resp.Items = append(resp.Items, map[string]engine.BulkResponseItem{"index": res})
	}
	return resp, nil
}

func (m *memEngine) Search(_ context.Context, index string, types []string, query any) (*engine.SearchResult, error) {
	if m.searchFn != nil {
		return m.searchFn(index, types, query)
	}
	return &engine.SearchResult{}, nil
}

func (m *memEngine) addIndex(name string, aliases ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := map[string]bool{}
	for _, a := range aliases {
		set[a] = true
	}
	m.indices[name] = set
}

func (m *memEngine) hasIndex(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.indices[name]
	return ok
}

// --- fixtures ---

var (
	productModel = NewModel("Product", Options{
		Conversions: "conversions",
		Suggest:     []string{"name", "color"},
		Locations:   []string{"location", "multiple_locations"},
	})
	storeModel = NewModel("Store", Options{
		Mappings: map[string]any{
			"properties": map[string]any{
				"name": map[string]any{"type": "string", "analyzer": "keyword"},
			},
		},
	})
)

type product struct {
	id        int
	name      string
	latitude  any
	longitude any
	skip      bool
}

func (p *product) Model() Model  { return productModel }
func (p *product) SearchID() any { return p.id }
func (p *product) SearchData() map[string]any {
	return map[string]any{
		"_id":                p.id,
		"name":               p.name,
		"location":           []any{p.latitude, p.longitude},
		"multiple_locations": []any{[]any{p.latitude, p.longitude}, []any{0, 0}},
	}
}
func (p *product) ShouldIndex() bool { return !p.skip }

// fakeLocker records lock usage.
type fakeLocker struct {
	acquireFn func(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
	keys      []string
	released  int
}

func (l *fakeLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	l.keys = append(l.keys, key)
	if l.acquireFn != nil {
		return l.acquireFn(ctx, key, ttl)
	}
	return func(context.Context) error {
		l.released++
		return nil
	}, nil
}
