package elastic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/kailas-cloud/esdex/internal/engine"
)

// Search posts a raw query DSL body to the index, optionally scoped to types.
func (s *Store) Search(ctx context.Context, index string, types []string, query any) (*engine.SearchResult, error) {
	segments := []string{index}
	if len(types) > 0 {
		segments = append(segments, strings.Join(types, ","))
	}
	segments = append(segments, "_search")

	var body []byte
	if query != nil {
		raw, err := json.Marshal(query)
		if err != nil {
			return nil, &engine.Error{Op: engine.OpSearch, Err: fmt.Errorf("encode query: %w", err)}
		}
		body = raw
	}

	res, err := s.perform(ctx, http.MethodPost, segments, nil, body, contentTypeJSON)
	if err != nil {
		return nil, &engine.Error{Op: engine.OpSearch, Err: err}
	}
	defer closeBody(res)
	if res.IsError() {
		return nil, responseError(engine.OpSearch, res)
	}

	var out engine.SearchResult
	if err := decode(engine.OpSearch, res, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
