package index

import (
	"context"

	"github.com/kailas-cloud/esdex"
)

// Adapter is a handle on one index.
type Adapter interface {
	Create(ctx context.Context, body any) error
	Delete(ctx context.Context) error
	Exists(ctx context.Context) (bool, error)
	Refresh(ctx context.Context) error
	Store(ctx context.Context, r esdex.Record) error
	Remove(ctx context.Context, r esdex.Record) error
	Retrieve(ctx context.Context, r esdex.Record) (map[string]any, error)
	Import(ctx context.Context, records []esdex.Record) ([]*esdex.BulkResponse, error)
	Search(ctx context.Context, types []string, query any) (*esdex.SearchResult, error)
}

// Opener returns the Adapter for an index name.
type Opener func(name string) Adapter

// Reindexer rebuilds aliases onto fresh indices.
type Reindexer interface {
	Reindex(ctx context.Context, alias string, m esdex.Model, source esdex.RecordSource) (*esdex.ReindexResult, error)
	CleanIndices(ctx context.Context, alias string) ([]string, error)
}

// Compile-time checks: the library handles satisfy the contracts.
var (
	_ Adapter   = (*esdex.Index)(nil)
	_ Reindexer = (*esdex.Reindexer)(nil)
)
