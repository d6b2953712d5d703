package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/kailas-cloud/esdex/internal/engine"
)

func documentPath(ident engine.Identity) []string {
	return []string{ident.Index, ident.Type, ident.ID.String()}
}

func parentParams(parent string) url.Values {
	if parent == "" {
		return nil
	}
	return url.Values{"parent": []string{parent}}
}

// IndexDocument writes one document, replacing any previous version.
func (s *Store) IndexDocument(ctx context.Context, ident engine.Identity, body any) error {
	if err := validIdentity(ident); err != nil {
		return &engine.Error{Op: engine.OpIndex, Err: err}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return &engine.Error{Op: engine.OpIndex, Err: fmt.Errorf("encode document: %w", err)}
	}

	res, err := s.perform(ctx, http.MethodPut, documentPath(ident), parentParams(ident.Parent), raw, contentTypeJSON)
	if err != nil {
		return &engine.Error{Op: engine.OpIndex, Err: err}
	}
	defer closeBody(res)
	if res.IsError() {
		return responseError(engine.OpIndex, res)
	}
	return nil
}

// DeleteDocument removes one document; a missing document is an error.
func (s *Store) DeleteDocument(ctx context.Context, ident engine.Identity) error {
	if err := validIdentity(ident); err != nil {
		return &engine.Error{Op: engine.OpDelete, Err: err}
	}
	res, err := s.perform(ctx, http.MethodDelete, documentPath(ident), parentParams(ident.Parent), nil, "")
	if err != nil {
		return &engine.Error{Op: engine.OpDelete, Err: err}
	}
	defer closeBody(res)
	if res.IsError() {
		return responseError(engine.OpDelete, res)
	}
	return nil
}

// GetDocument fetches one document.
func (s *Store) GetDocument(ctx context.Context, ident engine.Identity) (*engine.GetResult, error) {
	if err := validIdentity(ident); err != nil {
		return nil, &engine.Error{Op: engine.OpGet, Err: err}
	}
	res, err := s.perform(ctx, http.MethodGet, documentPath(ident), parentParams(ident.Parent), nil, "")
	if err != nil {
		return nil, &engine.Error{Op: engine.OpGet, Err: err}
	}
	defer closeBody(res)
	if res.IsError() {
		return nil, responseError(engine.OpGet, res)
	}

	var out engine.GetResult
	if err := decode(engine.OpGet, res, &out); err != nil {
		return nil, err
	}
	if !out.Found {
		return nil, engine.Classify(engine.OpGet, http.StatusNotFound, nil)
	}
	return &out, nil
}

// Bulk indexes items into one index and type with a single request.
func (s *Store) Bulk(ctx context.Context, index, docType string, items []engine.BulkItem) (*engine.BulkResponse, error) {
	if len(items) == 0 {
		return nil, &engine.Error{Op: engine.OpBulk, Err: errors.New("no items")}
	}
	payload, err := encodeBulk(items)
	if err != nil {
		return nil, &engine.Error{Op: engine.OpBulk, Err: err}
	}

	res, err := s.perform(ctx, http.MethodPost, []string{index, docType, "_bulk"}, nil, payload, contentTypeNDJSON)
	if err != nil {
		return nil, &engine.Error{Op: engine.OpBulk, Err: err}
	}
	defer closeBody(res)
	if res.IsError() {
		return nil, responseError(engine.OpBulk, res)
	}

	var out engine.BulkResponse
	if err := decode(engine.OpBulk, res, &out); err != nil {
		return nil, err
	}
	s.logger.Debug("bulk indexed",
		zap.String("index", index),
		zap.String("type", docType),
		zap.Int("items", len(items)),
		zap.Bool("errors", out.Errors),
	)
	return &out, nil
}

type bulkMeta struct {
	ID     engine.ID `json:"_id"`
	Parent string    `json:"_parent,omitempty"`
}

// encodeBulk writes the NDJSON body: one action line and one source line per item.
func encodeBulk(items []engine.BulkItem) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, item := range items {
		if item.ID.IsZero() {
			return nil, fmt.Errorf("item %d: id is required", i)
		}
		if err := enc.Encode(map[string]bulkMeta{"index": {ID: item.ID, Parent: item.Parent}}); err != nil {
			return nil, fmt.Errorf("item %d: encode action: %w", i, err)
		}
		if err := enc.Encode(item.Body); err != nil {
			return nil, fmt.Errorf("item %d: encode document: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

func validIdentity(ident engine.Identity) error {
	switch {
	case ident.Index == "":
		return errors.New("index is required")
	case ident.Type == "":
		return errors.New("document type is required")
	case ident.ID.IsZero():
		return errors.New("id is required")
	}
	return nil
}
