package elastic

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/elastic/go-elasticsearch/v8/esutil"

	"github.com/kailas-cloud/esdex/internal/engine"
)

type aliasesEntry struct {
	Aliases map[string]struct{} `json:"aliases"`
}

// GetAliases returns the aliases of every index matching pattern.
func (s *Store) GetAliases(ctx context.Context, pattern string) (map[string][]string, error) {
	res, err := esapi.IndicesGetAliasRequest{Index: []string{pattern}}.Do(ctx, s.tp)
	if err != nil {
		return nil, &engine.Error{Op: engine.OpGetAliases, Err: err}
	}
	defer closeBody(res)
	if res.IsError() {
		return nil, responseError(engine.OpGetAliases, res)
	}

	var body map[string]aliasesEntry
	if err := decode(engine.OpGetAliases, res, &body); err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(body))
	for index, entry := range body {
		names := make([]string, 0, len(entry.Aliases))
		for name := range entry.Aliases {
			names = append(names, name)
		}
		sort.Strings(names)
		out[index] = names
	}
	return out, nil
}

// IndicesForAlias returns the indices alias points at, sorted by name.
func (s *Store) IndicesForAlias(ctx context.Context, alias string) ([]string, error) {
	res, err := esapi.IndicesGetAliasRequest{Name: []string{alias}}.Do(ctx, s.tp)
	if err != nil {
		return nil, &engine.Error{Op: engine.OpGetAliases, Err: err}
	}
	defer closeBody(res)
	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.IsError() {
		return nil, responseError(engine.OpGetAliases, res)
	}

	var body map[string]aliasesEntry
	if err := decode(engine.OpGetAliases, res, &body); err != nil {
		return nil, err
	}
	indices := make([]string, 0, len(body))
	for index := range body {
		indices = append(indices, index)
	}
	sort.Strings(indices)
	return indices, nil
}

// UpdateAliases applies all actions atomically.
func (s *Store) UpdateAliases(ctx context.Context, actions []engine.AliasAction) error {
	if len(actions) == 0 {
		return errors.New("no alias actions")
	}
	body := map[string]any{"actions": actions}
	res, err := esapi.IndicesUpdateAliasesRequest{Body: esutil.NewJSONReader(body)}.Do(ctx, s.tp)
	if err != nil {
		return &engine.Error{Op: engine.OpUpdateAliases, Err: err}
	}
	defer closeBody(res)
	if res.IsError() {
		return responseError(engine.OpUpdateAliases, res)
	}
	return nil
}
