package esdex

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/esdex/internal/domain/document"
	"github.com/kailas-cloud/esdex/internal/engine"
)

// Engine types re-exported for callers of Index.
type (
	BulkItem         = engine.BulkItem
	BulkResponse     = engine.BulkResponse
	BulkResponseItem = engine.BulkResponseItem
	GetResult        = engine.GetResult
	SearchResult     = engine.SearchResult
	SearchHit        = engine.SearchHit
	AliasAction      = engine.AliasAction
	EngineError      = engine.Error
	ErrorCause       = engine.ErrorCause
)

// SearchClient is the part of the engine an Index talks to.
type SearchClient interface {
	engine.IndexManager
	engine.DocumentStore
	engine.Searcher
}

// Index binds records to one index name. It holds no mutable state and is
// safe for concurrent use.
type Index struct {
	name      string
	client    SearchClient
	chunkSize int
	obs       *observer
}

// NewIndex creates an index handle over an injected client.
// If metrics cannot be registered they are disabled and a warning is logged.
func NewIndex(name string, client SearchClient, opts ...Option) *Index {
	cfg := newConfig(opts)
	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		cfg.logger.Warn("metrics disabled", zap.Error(err))
		obs = &observer{logger: cfg.logger}
	}
	return newIndex(name, client, cfg, obs)
}

func newIndex(name string, client SearchClient, cfg *config, obs *observer) *Index {
	return &Index{
		name:      name,
		client:    client,
		chunkSize: cfg.chunkSize,
		obs:       obs,
	}
}

// Name returns the index name.
func (i *Index) Name() string { return i.name }

// Create creates the index with a settings/mappings body. Creating an
// existing index fails with ErrIndexExists.
func (i *Index) Create(ctx context.Context, body any) (err error) {
	start := time.Now()
	defer func() { i.obs.observe("create", i.name, start, err) }()

	if err := i.client.CreateIndex(ctx, i.name, body); err != nil {
		return fmt.Errorf("create index %s: %w", i.name, err)
	}
	return nil
}

// Delete deletes the index. A missing index fails with ErrIndexNotFound.
func (i *Index) Delete(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { i.obs.observe("delete", i.name, start, err) }()

	if err := i.client.DeleteIndex(ctx, i.name); err != nil {
		return fmt.Errorf("delete index %s: %w", i.name, err)
	}
	return nil
}

// Exists reports whether the index exists.
func (i *Index) Exists(ctx context.Context) (ok bool, err error) {
	start := time.Now()
	defer func() { i.obs.observe("exists", i.name, start, err) }()

	ok, err = i.client.IndexExists(ctx, i.name)
	if err != nil {
		return false, fmt.Errorf("index exists %s: %w", i.name, err)
	}
	return ok, nil
}

// Refresh makes recent writes visible to reads.
func (i *Index) Refresh(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { i.obs.observe("refresh", i.name, start, err) }()

	if err := i.client.RefreshIndex(ctx, i.name); err != nil {
		return fmt.Errorf("refresh index %s: %w", i.name, err)
	}
	return nil
}

// Store writes one record.
func (i *Index) Store(ctx context.Context, r Record) (err error) {
	start := time.Now()
	ident := i.Identity(r)
	defer func() { i.obs.observe("store", i.name, start, err, docFields(ident)...) }()

	doc, err := shape(r)
	if err != nil {
		return fmt.Errorf("store %s/%s: %w", ident.Type, ident.ID, err)
	}
	if err := i.client.IndexDocument(ctx, ident, doc); err != nil {
		return fmt.Errorf("store %s/%s: %w", ident.Type, ident.ID, err)
	}
	return nil
}

// Remove deletes one record. A missing document fails with ErrDocumentNotFound.
func (i *Index) Remove(ctx context.Context, r Record) (err error) {
	start := time.Now()
	ident := i.Identity(r)
	defer func() { i.obs.observe("remove", i.name, start, err, docFields(ident)...) }()

	if err := i.client.DeleteDocument(ctx, ident); err != nil {
		return fmt.Errorf("remove %s/%s: %w", ident.Type, ident.ID, err)
	}
	return nil
}

// Import indexes records with one bulk request per document type, split
// into chunks when a chunk size is configured. Per-item failures are not
// interpreted; inspect the returned responses. On error the responses of
// the requests already sent are returned with it.
func (i *Index) Import(ctx context.Context, records []Record) (out []*BulkResponse, err error) {
	start := time.Now()
	defer func() { i.obs.observe("import", i.name, start, err) }()

	for _, g := range groupByType(records) {
		for _, chunk := range chunks(g.records, i.chunkSize) {
			items := make([]engine.BulkItem, len(chunk))
			for n, r := range chunk {
				ident := i.Identity(r)
				doc, err := shape(r)
				if err != nil {
					return out, fmt.Errorf("import %s/%s: %w", ident.Type, ident.ID, err)
				}
				items[n] = engine.BulkItem{ID: ident.ID, Parent: ident.Parent, Body: doc}
			}
			resp, err := i.client.Bulk(ctx, i.name, g.docType, items)
			if err != nil {
				return out, fmt.Errorf("import %s: %w", g.docType, err)
			}
			i.obs.observeBulk(i.name, g.docType, resp)
			out = append(out, resp)
		}
	}
	return out, nil
}

// Retrieve returns the stored source of one record.
func (i *Index) Retrieve(ctx context.Context, r Record) (src map[string]any, err error) {
	start := time.Now()
	ident := i.Identity(r)
	defer func() { i.obs.observe("retrieve", i.name, start, err, docFields(ident)...) }()

	res, err := i.client.GetDocument(ctx, ident)
	if err != nil {
		return nil, fmt.Errorf("retrieve %s/%s: %w", ident.Type, ident.ID, err)
	}
	if err := json.Unmarshal(res.Source, &src); err != nil {
		return nil, fmt.Errorf("retrieve %s/%s: decode source: %w", ident.Type, ident.ID, err)
	}
	return src, nil
}

// Search runs a raw query DSL body, optionally restricted to document types.
func (i *Index) Search(ctx context.Context, types []string, query any) (res *SearchResult, err error) {
	start := time.Now()
	defer func() { i.obs.observe("search", i.name, start, err) }()

	res, err = i.client.Search(ctx, i.name, types, query)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", i.name, err)
	}
	return res, nil
}

// KlassDocumentType returns the document type of a model.
func (i *Index) KlassDocumentType(m Model) string {
	return KlassDocumentType(m)
}

// Identity returns the address of r in this index.
func (i *Index) Identity(r Record) Identity {
	return identity(i.name, r)
}

// SearchData returns the shaped document of r as plain values.
func (i *Index) SearchData(r Record) (map[string]any, error) {
	doc, err := shape(r)
	if err != nil {
		return nil, err
	}
	return doc.Map(), nil
}

func docFields(ident Identity) []zap.Field {
	fields := []zap.Field{zap.String("type", ident.Type), zap.Stringer("id", ident.ID)}
	if ident.Parent != "" {
		fields = append(fields, zap.String("parent", ident.Parent))
	}
	return fields
}

// shape turns a record's search data into an engine document.
func shape(r Record) (*document.Object, error) {
	src, err := document.ObjectFromMap(r.SearchData())
	if err != nil {
		return nil, fmt.Errorf("search data: %w", err)
	}
	opts := r.Model().SearchOptions()
	return document.Shape(src, document.Options{
		Conversions: opts.Conversions,
		Suggest:     opts.Suggest,
		Locations:   opts.Locations,
	})
}

type typeGroup struct {
	docType string
	records []Record
}

// groupByType partitions records by document type in order of first appearance.
func groupByType(records []Record) []typeGroup {
	var groups []typeGroup
	pos := make(map[string]int)
	for _, r := range records {
		t := KlassDocumentType(r.Model())
		n, ok := pos[t]
		if !ok {
			n = len(groups)
			pos[t] = n
			groups = append(groups, typeGroup{docType: t})
		}
		groups[n].records = append(groups[n].records, r)
	}
	return groups
}

// chunks splits records into slices of at most size; size <= 0 means one chunk.
func chunks(records []Record, size int) [][]Record {
	if len(records) == 0 {
		return nil
	}
	if size <= 0 || size >= len(records) {
		return [][]Record{records}
	}
	out := make([][]Record, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		out = append(out, records[start:end])
	}
	return out
}
