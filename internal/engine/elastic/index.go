package elastic

import (
	"context"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/elastic/go-elasticsearch/v8/esutil"

	"github.com/kailas-cloud/esdex/internal/engine"
)

// CreateIndex creates an index with the given settings/mappings body.
// A nil body creates an index with engine defaults.
func (s *Store) CreateIndex(ctx context.Context, name string, body any) error {
	var r io.Reader
	if body != nil {
		r = esutil.NewJSONReader(body)
	}
	res, err := esapi.IndicesCreateRequest{Index: name, Body: r}.Do(ctx, s.tp)
	if err != nil {
		return &engine.Error{Op: engine.OpCreateIndex, Err: err}
	}
	defer closeBody(res)
	if res.IsError() {
		return responseError(engine.OpCreateIndex, res)
	}
	return nil
}

// DeleteIndex removes an index; a missing index is an error.
func (s *Store) DeleteIndex(ctx context.Context, name string) error {
	res, err := esapi.IndicesDeleteRequest{Index: []string{name}}.Do(ctx, s.tp)
	if err != nil {
		return &engine.Error{Op: engine.OpDeleteIndex, Err: err}
	}
	defer closeBody(res)
	if res.IsError() {
		return responseError(engine.OpDeleteIndex, res)
	}
	return nil
}

// IndexExists checks an index with HEAD; 404 means absent.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	res, err := esapi.IndicesExistsRequest{Index: []string{name}}.Do(ctx, s.tp)
	if err != nil {
		return false, &engine.Error{Op: engine.OpIndexExists, Err: err}
	}
	defer closeBody(res)
	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, responseError(engine.OpIndexExists, res)
	}
}

// RefreshIndex makes recent writes visible to search.
func (s *Store) RefreshIndex(ctx context.Context, name string) error {
	res, err := esapi.IndicesRefreshRequest{Index: []string{name}}.Do(ctx, s.tp)
	if err != nil {
		return &engine.Error{Op: engine.OpRefreshIndex, Err: err}
	}
	defer closeBody(res)
	if res.IsError() {
		return responseError(engine.OpRefreshIndex, res)
	}
	return nil
}
