package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/kailas-cloud/esdex/internal/engine"
)

const (
	contentTypeJSON   = "application/json"
	contentTypeNDJSON = "application/x-ndjson"
)

// perform sends a request to a path built from raw segments.
// Typed document endpoints have no esapi request struct in v8.
func (s *Store) perform(
	ctx context.Context, method string, segments []string, params url.Values, body []byte, contentType string,
) (*esapi.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, "/", reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.URL = buildURL(segments, params)
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", contentTypeJSON)

	res, err := s.tp.Perform(req)
	if err != nil {
		return nil, err
	}
	return &esapi.Response{StatusCode: res.StatusCode, Header: res.Header, Body: res.Body}, nil
}

func buildURL(segments []string, params url.Values) *url.URL {
	escaped := make([]string, len(segments))
	for i, seg := range segments {
		// Commas separate multiple indices or types and stay literal.
		escaped[i] = strings.ReplaceAll(url.PathEscape(seg), "%2C", ",")
	}
	return &url.URL{
		Path:     "/" + strings.Join(segments, "/"),
		RawPath:  "/" + strings.Join(escaped, "/"),
		RawQuery: params.Encode(),
	}
}

// errorBody is an engine error response. Old engines send error as a string.
type errorBody struct {
	Error  json.RawMessage `json:"error"`
	Status int             `json:"status"`
}

// responseError reads a failed response and classifies it.
func responseError(op string, res *esapi.Response) error {
	var cause *engine.ErrorCause
	if res.Body != nil {
		raw, err := io.ReadAll(res.Body)
		if err == nil && len(raw) > 0 {
			cause = parseCause(raw)
		}
	}
	return engine.Classify(op, res.StatusCode, cause)
}

func parseCause(raw []byte) *engine.ErrorCause {
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return &engine.ErrorCause{Reason: strings.TrimSpace(string(raw))}
	}
	if len(body.Error) == 0 || bytes.Equal(body.Error, []byte("null")) {
		return nil
	}
	var cause engine.ErrorCause
	if err := json.Unmarshal(body.Error, &cause); err == nil {
		return &cause
	}
	var reason string
	if err := json.Unmarshal(body.Error, &reason); err == nil {
		return &engine.ErrorCause{Reason: reason}
	}
	return nil
}

// decode reads a successful response into v.
func decode(op string, res *esapi.Response, v any) error {
	if err := json.NewDecoder(res.Body).Decode(v); err != nil {
		return &engine.Error{Op: op, Status: res.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func closeBody(res *esapi.Response) {
	if res != nil && res.Body != nil {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}
}
