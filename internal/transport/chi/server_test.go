package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/esdex"
	"github.com/kailas-cloud/esdex/internal/domain"
	logpkg "github.com/kailas-cloud/esdex/internal/logger"
	healthuc "github.com/kailas-cloud/esdex/internal/usecase/health"
	indexuc "github.com/kailas-cloud/esdex/internal/usecase/index"
)

// --- Mocks ---

type mockIndexService struct {
	createFn   func(ctx context.Context, index string, body map[string]any) error
	deleteFn   func(ctx context.Context, index string) error
	existsFn   func(ctx context.Context, index string) (bool, error)
	storeFn    func(ctx context.Context, index string, item indexuc.Item) error
	retrieveFn func(ctx context.Context, index string, item indexuc.Item) (map[string]any, error)
	removeFn   func(ctx context.Context, index string, item indexuc.Item) error
	importFn   func(ctx context.Context, index string, items []indexuc.Item) (indexuc.ImportResult, error)
	searchFn   func(ctx context.Context, index string, types []string, query any) (*esdex.SearchResult, error)
	reindexFn  func(ctx context.Context, alias, model string, items []indexuc.Item) (*esdex.ReindexResult, error)
	cleanFn    func(ctx context.Context, alias string) ([]string, error)
}

func (m *mockIndexService) Create(ctx context.Context, index string, body map[string]any) error {
	return m.createFn(ctx, index, body)
}
func (m *mockIndexService) Delete(ctx context.Context, index string) error {
	return m.deleteFn(ctx, index)
}
func (m *mockIndexService) Exists(ctx context.Context, index string) (bool, error) {
	return m.existsFn(ctx, index)
}
func (m *mockIndexService) Refresh(_ context.Context, _ string) error { return nil }
func (m *mockIndexService) Store(ctx context.Context, index string, item indexuc.Item) error {
	return m.storeFn(ctx, index, item)
}
func (m *mockIndexService) Retrieve(ctx context.Context, index string, item indexuc.Item) (map[string]any, error) {
	return m.retrieveFn(ctx, index, item)
}
func (m *mockIndexService) Remove(ctx context.Context, index string, item indexuc.Item) error {
	return m.removeFn(ctx, index, item)
}
func (m *mockIndexService) Import(ctx context.Context, index string, items []indexuc.Item) (indexuc.ImportResult, error) {
	return m.importFn(ctx, index, items)
}
func (m *mockIndexService) Search(ctx context.Context, index string, types []string, query any) (*esdex.SearchResult, error) {
	return m.searchFn(ctx, index, types, query)
}
func (m *mockIndexService) Reindex(
	ctx context.Context, alias, model string, items []indexuc.Item,
) (*esdex.ReindexResult, error) {
	return m.reindexFn(ctx, alias, model, items)
}
func (m *mockIndexService) Clean(ctx context.Context, alias string) ([]string, error) {
	return m.cleanFn(ctx, alias)
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

func newTestRouter(svc *mockIndexService, health *mockHealth) http.Handler {
	if health == nil {
		health = &mockHealth{report: healthuc.Report{Status: healthuc.Healthy}}
	}
	r := chi.NewRouter()
	NewServer(svc, health, zap.NewNop()).Mount(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader = http.NoBody
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

// --- Index routes ---

func TestCreateIndex_EmptyBody(t *testing.T) {
	var gotBody map[string]any
	svc := &mockIndexService{createFn: func(_ context.Context, index string, body map[string]any) error {
		if index != "products" {
			t.Errorf("index = %q", index)
		}
		gotBody = body
		return nil
	}}

	rr := do(t, newTestRouter(svc, nil), "PUT", "/indices/products", "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	if gotBody != nil {
		t.Errorf("body = %v, want nil", gotBody)
	}
}

func TestCreateIndex_Exists(t *testing.T) {
	svc := &mockIndexService{createFn: func(context.Context, string, map[string]any) error {
		return fmt.Errorf("create index: %w", domain.ErrIndexExists)
	}}

	rr := do(t, newTestRouter(svc, nil), "PUT", "/indices/products", `{"settings":{}}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != codeIndexExists {
		t.Errorf("code = %s", resp.Code)
	}
}

func TestCreateIndex_BadJSON(t *testing.T) {
	rr := do(t, newTestRouter(&mockIndexService{}, nil), "PUT", "/indices/products", `{`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestDeleteIndex_NotFound(t *testing.T) {
	svc := &mockIndexService{deleteFn: func(context.Context, string) error { return domain.ErrIndexNotFound }}

	rr := do(t, newTestRouter(svc, nil), "DELETE", "/indices/missing", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != codeIndexNotFound || resp.Message != domain.ErrIndexNotFound.Error() {
		t.Errorf("resp = %+v", resp)
	}
}

func TestDomainError_LogsWithRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	reqLogger := zap.New(core).With(zap.String("request_id", "req-42"))

	svc := &mockIndexService{deleteFn: func(context.Context, string) error { return domain.ErrIndexNotFound }}
	h := newTestRouter(svc, nil)

	req := httptest.NewRequest("DELETE", "/indices/missing", http.NoBody)
	req = req.WithContext(logpkg.ContextWithLogger(req.Context(), reqLogger))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	entries := logs.FilterMessage("domain error").All()
	if len(entries) != 1 {
		t.Fatalf("domain error entries = %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "req-42" || fields["path"] != "/indices/missing" {
		t.Errorf("fields = %v", fields)
	}
}

func TestIndexExists(t *testing.T) {
	svc := &mockIndexService{existsFn: func(_ context.Context, index string) (bool, error) {
		return index == "products", nil
	}}
	h := newTestRouter(svc, nil)

	for index, want := range map[string]bool{"products": true, "other": false} {
		rr := do(t, h, "GET", "/indices/"+index, "")
		var resp map[string]bool
		_ = json.NewDecoder(rr.Body).Decode(&resp)
		if rr.Code != http.StatusOK || resp["exists"] != want {
			t.Errorf("%s: status = %d, exists = %v", index, rr.Code, resp["exists"])
		}
	}
}

func TestRefresh(t *testing.T) {
	rr := do(t, newTestRouter(&mockIndexService{}, nil), "POST", "/indices/products/_refresh", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
}

// --- Document routes ---

func TestStoreDocument(t *testing.T) {
	var got indexuc.Item
	svc := &mockIndexService{storeFn: func(_ context.Context, _ string, item indexuc.Item) error {
		got = item
		return nil
	}}

	rr := do(t, newTestRouter(svc, nil), "PUT", "/indices/products/models/Part/documents/7",
		`{"parent_id":1,"data":{"name":"bolt","price":10.5}}`)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	if got.Model != "Part" || got.ID != "7" || got.ParentID != json.Number("1") {
		t.Errorf("item = %+v", got)
	}
	if got.Data["price"] != json.Number("10.5") {
		t.Errorf("price = %#v, want exact number", got.Data["price"])
	}
}

func TestStoreDocument_FieldError(t *testing.T) {
	svc := &mockIndexService{storeFn: func(context.Context, string, indexuc.Item) error {
		return fmt.Errorf("store: %w", domain.NewFieldError("location", "coordinate is not numeric"))
	}}

	rr := do(t, newTestRouter(svc, nil), "PUT", "/indices/products/models/Product/documents/1",
		`{"data":{"location":[true,1]}}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decodeError(t, rr)
	if resp.Code != codeValidationFailed || !strings.Contains(resp.Message, "location") {
		t.Errorf("resp = %+v", resp)
	}
}

func TestRetrieveDocument(t *testing.T) {
	svc := &mockIndexService{retrieveFn: func(_ context.Context, _ string, item indexuc.Item) (map[string]any, error) {
		if item.ParentID != "3" {
			t.Errorf("parent = %v", item.ParentID)
		}
		return map[string]any{"name": "bolt"}, nil
	}}

	rr := do(t, newTestRouter(svc, nil), "GET", "/indices/products/models/Part/documents/7?parent_id=3", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var src map[string]any
	_ = json.NewDecoder(rr.Body).Decode(&src)
	if src["name"] != "bolt" {
		t.Errorf("src = %v", src)
	}
}

func TestRemoveDocument_NotFound(t *testing.T) {
	svc := &mockIndexService{removeFn: func(context.Context, string, indexuc.Item) error {
		return domain.ErrDocumentNotFound
	}}

	rr := do(t, newTestRouter(svc, nil), "DELETE", "/indices/products/models/Product/documents/1", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != codeDocumentNotFound {
		t.Errorf("code = %s", resp.Code)
	}
}

func TestUnknownModel(t *testing.T) {
	svc := &mockIndexService{retrieveFn: func(context.Context, string, indexuc.Item) (map[string]any, error) {
		return nil, domain.ErrUnknownModel
	}}

	rr := do(t, newTestRouter(svc, nil), "GET", "/indices/products/models/Nope/documents/1", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

// --- Import / search ---

func TestImport(t *testing.T) {
	svc := &mockIndexService{importFn: func(_ context.Context, _ string, items []indexuc.Item) (indexuc.ImportResult, error) {
		if len(items) != 2 || items[1].Model != "Store" {
			t.Errorf("items = %+v", items)
		}
		return indexuc.ImportResult{
			Items: 2,
			Failed: []esdex.BulkResponseItem{{
				ID:     "2",
				Type:   "store",
				Status: 400,
				Error:  &engineCause,
			}},
		}, nil
	}}

	rr := do(t, newTestRouter(svc, nil), "POST", "/indices/products/_import",
		`[{"model":"Product","id":1,"data":{}},{"model":"Store","id":2}]`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	var resp importResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Errors || len(resp.Failed) != 1 || resp.Failed[0].Error != "mapper_parsing_exception: failed to parse" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestImport_Empty(t *testing.T) {
	rr := do(t, newTestRouter(&mockIndexService{}, nil), "POST", "/indices/products/_import", `[]`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestSearch_Types(t *testing.T) {
	svc := &mockIndexService{searchFn: func(_ context.Context, _ string, types []string, query any) (*esdex.SearchResult, error) {
		if !reflect.DeepEqual(types, []string{"product", "store", "part"}) {
			t.Errorf("types = %v", types)
		}
		if _, ok := query.(map[string]any)["query"]; !ok {
			t.Errorf("query = %v", query)
		}
		return &esdex.SearchResult{}, nil
	}}

	rr := do(t, newTestRouter(svc, nil), "POST", "/indices/products/_search?type=product,store&type=part",
		`{"query":{"match_all":{}}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
}

func TestSearch_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrInvalidQuery, http.StatusBadRequest, codeInvalidQuery},
		{domain.ErrUnsupportedVersion, http.StatusNotImplemented, codeUnsupportedVersion},
		{domain.ErrIndexNotFound, http.StatusNotFound, codeIndexNotFound},
		{errors.New("connection reset"), http.StatusInternalServerError, codeInternalError},
	}
	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			svc := &mockIndexService{searchFn: func(context.Context, string, []string, any) (*esdex.SearchResult, error) {
				return nil, fmt.Errorf("search: %w", tc.err)
			}}
			rr := do(t, newTestRouter(svc, nil), "POST", "/indices/products/_search", "")
			if rr.Code != tc.status {
				t.Fatalf("status = %d, want %d", rr.Code, tc.status)
			}
			resp := decodeError(t, rr)
			if resp.Code != tc.code {
				t.Errorf("code = %s, want %s", resp.Code, tc.code)
			}
			if tc.code == codeInternalError && resp.Message != "internal error" {
				t.Errorf("internal details leaked: %q", resp.Message)
			}
		})
	}
}

// --- Alias routes ---

func TestReindex(t *testing.T) {
	svc := &mockIndexService{reindexFn: func(
		_ context.Context, alias, model string, items []indexuc.Item,
	) (*esdex.ReindexResult, error) {
		if alias != "products" || model != "Product" {
			t.Errorf("alias = %q, model = %q", alias, model)
		}
		if items[0].Model != "Product" || items[1].Model != "Part" {
			t.Errorf("items = %+v", items)
		}
		return &esdex.ReindexResult{Index: "products_20240101000000000", Imported: 2}, nil
	}}

	rr := do(t, newTestRouter(svc, nil), "POST", "/aliases/products/_reindex",
		`{"model":"Product","records":[{"id":1},{"model":"Part","id":2,"parent_id":1}]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	var resp map[string]any
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp["index"] != "products_20240101000000000" {
		t.Errorf("resp = %v", resp)
	}
	if cleaned, ok := resp["cleaned"].([]any); !ok || len(cleaned) != 0 {
		t.Errorf("cleaned = %v, want empty list", resp["cleaned"])
	}
}

func TestReindex_Errors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{domain.ErrLocked, http.StatusConflict},
		{domain.ErrChildReindex, http.StatusBadRequest},
	}
	for _, tc := range tests {
		svc := &mockIndexService{reindexFn: func(context.Context, string, string, []indexuc.Item) (*esdex.ReindexResult, error) {
			return nil, tc.err
		}}
		rr := do(t, newTestRouter(svc, nil), "POST", "/aliases/products/_reindex", `{"model":"Product"}`)
		if rr.Code != tc.status {
			t.Errorf("%v: status = %d, want %d", tc.err, rr.Code, tc.status)
		}
	}

	rr := do(t, newTestRouter(&mockIndexService{}, nil), "POST", "/aliases/products/_reindex", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing model: status = %d", rr.Code)
	}
}

func TestClean(t *testing.T) {
	svc := &mockIndexService{cleanFn: func(context.Context, string) ([]string, error) {
		return []string{"products_20130801000000000"}, nil
	}}

	rr := do(t, newTestRouter(svc, nil), "POST", "/aliases/products/_clean", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp map[string][]string
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if len(resp["deleted"]) != 1 {
		t.Errorf("resp = %v", resp)
	}
}

// --- Health ---

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		status healthuc.Status
		code   int
	}{
		{healthuc.Healthy, http.StatusOK},
		{healthuc.Degraded, http.StatusOK},
		{healthuc.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		h := &mockHealth{report: healthuc.Report{
			Status: tc.status,
			Checks: map[string]healthuc.CheckResult{"elasticsearch": healthuc.CheckOK},
		}}
		rr := do(t, newTestRouter(&mockIndexService{}, h), "GET", "/health", "")
		if rr.Code != tc.code {
			t.Errorf("%s: status = %d, want %d", tc.status, rr.Code, tc.code)
		}
	}
}

var engineCause = esdex.ErrorCause{Type: "mapper_parsing_exception", Reason: "failed to parse"}
