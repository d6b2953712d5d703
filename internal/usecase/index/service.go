package index

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/esdex"
	"github.com/kailas-cloud/esdex/internal/domain"
)

// Item is one record in request form.
type Item struct {
	Model    string
	ID       any
	ParentID any
	Data     map[string]any
}

// ImportResult summarises an import.
type ImportResult struct {
	Items  int
	Failed []esdex.BulkResponseItem
}

// Service drives index adapters for records declared in the catalog.
type Service struct {
	open      Opener
	reindexer Reindexer
	catalog   *Catalog
}

// New creates an index service.
func New(open Opener, reindexer Reindexer, catalog *Catalog) *Service {
	return &Service{open: open, reindexer: reindexer, catalog: catalog}
}

// Create creates an index. An empty body is replaced by the catalog mapping.
func (s *Service) Create(ctx context.Context, index string, body map[string]any) error {
	if len(body) == 0 {
		var err error
		if body, err = s.catalog.Mapping(); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	if err := s.open(index).Create(ctx, body); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// Delete removes an index.
func (s *Service) Delete(ctx context.Context, index string) error {
	if err := s.open(index).Delete(ctx); err != nil {
		return fmt.Errorf("delete index: %w", err)
	}
	return nil
}

// Exists reports whether an index exists.
func (s *Service) Exists(ctx context.Context, index string) (bool, error) {
	ok, err := s.open(index).Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("index exists: %w", err)
	}
	return ok, nil
}

// Refresh makes recent writes searchable.
func (s *Service) Refresh(ctx context.Context, index string) error {
	if err := s.open(index).Refresh(ctx); err != nil {
		return fmt.Errorf("refresh index: %w", err)
	}
	return nil
}

// Store indexes one record.
func (s *Service) Store(ctx context.Context, index string, item Item) error {
	r, err := s.record(item)
	if err != nil {
		return err
	}
	if err := s.open(index).Store(ctx, r); err != nil {
		return fmt.Errorf("store document: %w", err)
	}
	return nil
}

// Retrieve returns the stored source of one record.
func (s *Service) Retrieve(ctx context.Context, index string, item Item) (map[string]any, error) {
	r, err := s.record(item)
	if err != nil {
		return nil, err
	}
	src, err := s.open(index).Retrieve(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("retrieve document: %w", err)
	}
	return src, nil
}

// Remove deletes one record.
func (s *Service) Remove(ctx context.Context, index string, item Item) error {
	r, err := s.record(item)
	if err != nil {
		return err
	}
	if err := s.open(index).Remove(ctx, r); err != nil {
		return fmt.Errorf("remove document: %w", err)
	}
	return nil
}

// Import bulk-indexes items and collects the per-item failures.
func (s *Service) Import(ctx context.Context, index string, items []Item) (ImportResult, error) {
	records, err := s.records(items)
	if err != nil {
		return ImportResult{}, err
	}
	responses, err := s.open(index).Import(ctx, records)
	if err != nil {
		return ImportResult{}, fmt.Errorf("import: %w", err)
	}
	res := ImportResult{Items: len(records)}
	for _, resp := range responses {
		res.Failed = append(res.Failed, resp.Failed()...)
	}
	return res, nil
}

// Search runs a raw query against an index.
func (s *Service) Search(ctx context.Context, index string, types []string, query any) (*esdex.SearchResult, error) {
	res, err := s.open(index).Search(ctx, types, query)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return res, nil
}

// Reindex rebuilds alias for model from the given items.
func (s *Service) Reindex(ctx context.Context, alias, model string, items []Item) (*esdex.ReindexResult, error) {
	m, err := s.catalog.Model(model)
	if err != nil {
		return nil, err
	}
	if m.SearchOptions().Parent != nil {
		return nil, fmt.Errorf("reindex %s: %w", model, domain.ErrChildReindex)
	}
	records, err := s.records(items)
	if err != nil {
		return nil, err
	}
	res, err := s.reindexer.Reindex(ctx, alias, m, esdex.SliceSource(records))
	if err != nil {
		return nil, fmt.Errorf("reindex: %w", err)
	}
	return res, nil
}

// Clean removes unaliased timestamped indices of alias.
func (s *Service) Clean(ctx context.Context, alias string) ([]string, error) {
	deleted, err := s.reindexer.CleanIndices(ctx, alias)
	if err != nil {
		return nil, fmt.Errorf("clean indices: %w", err)
	}
	return deleted, nil
}

func (s *Service) records(items []Item) ([]esdex.Record, error) {
	out := make([]esdex.Record, len(items))
	for i, item := range items {
		r, err := s.record(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out[i] = r
	}
	return out, nil
}

func (s *Service) record(item Item) (esdex.Record, error) {
	m, err := s.catalog.Model(item.Model)
	if err != nil {
		return nil, err
	}
	if isBlank(item.ID) {
		return nil, domain.NewFieldError("id", "is required")
	}
	data := item.Data
	if data == nil {
		data = map[string]any{}
	}
	if isBlank(item.ParentID) {
		if m.SearchOptions().Parent != nil {
			return nil, domain.NewFieldError("parent_id", "is required for child model "+item.Model)
		}
		return esdex.NewRecord(m, item.ID, data), nil
	}
	return esdex.NewChildRecord(m, item.ID, item.ParentID, data), nil
}

func isBlank(v any) bool {
	s, ok := v.(string)
	return v == nil || (ok && s == "")
}
