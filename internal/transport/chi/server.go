package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/esdex"
	healthuc "github.com/kailas-cloud/esdex/internal/usecase/health"
	indexuc "github.com/kailas-cloud/esdex/internal/usecase/index"
	"github.com/kailas-cloud/esdex/internal/version"
)

// IndexService is the index adapter surface exposed over HTTP.
type IndexService interface {
	Create(ctx context.Context, index string, body map[string]any) error
	Delete(ctx context.Context, index string) error
	Exists(ctx context.Context, index string) (bool, error)
	Refresh(ctx context.Context, index string) error
	Store(ctx context.Context, index string, item indexuc.Item) error
	Retrieve(ctx context.Context, index string, item indexuc.Item) (map[string]any, error)
	Remove(ctx context.Context, index string, item indexuc.Item) error
	Import(ctx context.Context, index string, items []indexuc.Item) (indexuc.ImportResult, error)
	Search(ctx context.Context, index string, types []string, query any) (*esdex.SearchResult, error)
	Reindex(ctx context.Context, alias, model string, items []indexuc.Item) (*esdex.ReindexResult, error)
	Clean(ctx context.Context, alias string) ([]string, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Server serves the index adapter API.
type Server struct {
	indices       IndexService
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(indices IndexService, health HealthChecker, logger *zap.Logger) *Server {
	return &Server{
		indices:       indices,
		health:        health,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// Mount registers all routes on r.
func (s *Server) Mount(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/indices/{index}", func(r chi.Router) {
		r.Put("/", s.CreateIndex)
		r.Delete("/", s.DeleteIndex)
		r.Get("/", s.IndexExists)
		r.Post("/_refresh", s.RefreshIndex)
		r.Post("/_import", s.Import)
		r.Post("/_search", s.Search)

		r.Route("/models/{model}/documents/{id}", func(r chi.Router) {
			r.Put("/", s.StoreDocument)
			r.Get("/", s.RetrieveDocument)
			r.Delete("/", s.RemoveDocument)
		})
	})

	r.Post("/aliases/{alias}/_reindex", s.Reindex)
	r.Post("/aliases/{alias}/_clean", s.Clean)
}

// CreateIndex handles PUT /indices/{index}.
func (s *Server) CreateIndex(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decodeOptionalBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	index := chi.URLParam(r, "index")
	if err := s.indices.Create(r.Context(), index, body); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"index": index, "acknowledged": true})
}

// DeleteIndex handles DELETE /indices/{index}.
func (s *Server) DeleteIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.indices.Delete(r.Context(), chi.URLParam(r, "index")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// IndexExists handles GET /indices/{index}.
func (s *Server) IndexExists(w http.ResponseWriter, r *http.Request) {
	ok, err := s.indices.Exists(r.Context(), chi.URLParam(r, "index"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"exists": ok})
}

// RefreshIndex handles POST /indices/{index}/_refresh.
func (s *Server) RefreshIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.indices.Refresh(r.Context(), chi.URLParam(r, "index")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type storeRequest struct {
	ParentID any            `json:"parent_id"`
	Data     map[string]any `json:"data"`
}

// StoreDocument handles PUT /indices/{index}/models/{model}/documents/{id}.
func (s *Server) StoreDocument(w http.ResponseWriter, r *http.Request) {
	var req storeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	item := documentItem(r)
	item.ParentID = req.ParentID
	item.Data = req.Data
	if err := s.indices.Store(r.Context(), chi.URLParam(r, "index"), item); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RetrieveDocument handles GET /indices/{index}/models/{model}/documents/{id}.
func (s *Server) RetrieveDocument(w http.ResponseWriter, r *http.Request) {
	src, err := s.indices.Retrieve(r.Context(), chi.URLParam(r, "index"), documentItem(r))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, src)
}

// RemoveDocument handles DELETE /indices/{index}/models/{model}/documents/{id}.
func (s *Server) RemoveDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.indices.Remove(r.Context(), chi.URLParam(r, "index"), documentItem(r)); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type recordRequest struct {
	Model    string         `json:"model"`
	ID       any            `json:"id"`
	ParentID any            `json:"parent_id"`
	Data     map[string]any `json:"data"`
}

func (rr recordRequest) item(defaultModel string) indexuc.Item {
	model := rr.Model
	if model == "" {
		model = defaultModel
	}
	return indexuc.Item{Model: model, ID: rr.ID, ParentID: rr.ParentID, Data: rr.Data}
}

// Import handles POST /indices/{index}/_import.
func (s *Server) Import(w http.ResponseWriter, r *http.Request) {
	var req []recordRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req) == 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "at least one record is required")
		return
	}

	items := make([]indexuc.Item, len(req))
	for i, rec := range req {
		items[i] = rec.item("")
	}

	res, err := s.indices.Import(r.Context(), chi.URLParam(r, "index"), items)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	failed := make([]importFailure, len(res.Failed))
	for i, f := range res.Failed {
		failed[i] = importFailure{ID: f.ID, Type: f.Type, Status: f.Status}
		if f.Error != nil {
			failed[i].Error = f.Error.Type + ": " + f.Error.Reason
		}
	}
	writeJSON(w, http.StatusOK, importResponse{Items: res.Items, Errors: len(failed) > 0, Failed: failed})
}

type importFailure struct {
	ID     string `json:"id"`
	Type   string `json:"type,omitempty"`
	Status int    `json:"status"`
	Error  string `json:"error,omitempty"`
}

type importResponse struct {
	Items  int             `json:"items"`
	Errors bool            `json:"errors"`
	Failed []importFailure `json:"failed"`
}

// Search handles POST /indices/{index}/_search.
// Document types are taken from repeated or comma-separated ?type= params.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var query map[string]any
	if err := decodeOptionalBody(r, &query); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if query == nil {
		query = map[string]any{}
	}

	var types []string
	for _, v := range r.URL.Query()["type"] {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, t)
			}
		}
	}

	res, err := s.indices.Search(r.Context(), chi.URLParam(r, "index"), types, query)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type reindexRequest struct {
	Model   string          `json:"model"`
	Records []recordRequest `json:"records"`
}

// Reindex handles POST /aliases/{alias}/_reindex.
func (s *Server) Reindex(w http.ResponseWriter, r *http.Request) {
	var req reindexRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "model is required")
		return
	}

	items := make([]indexuc.Item, len(req.Records))
	for i, rec := range req.Records {
		items[i] = rec.item(req.Model)
	}

	res, err := s.indices.Reindex(r.Context(), chi.URLParam(r, "alias"), req.Model, items)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"index":    res.Index,
		"imported": res.Imported,
		"failed":   res.Failed,
		"cleaned":  nonNil(res.Cleaned),
	})
}

// Clean handles POST /aliases/{alias}/_clean.
func (s *Server) Clean(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.indices.Clean(r.Context(), chi.URLParam(r, "alias"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": nonNil(deleted)})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	writeJSON(w, status, map[string]any{
		"status":  string(report.Status),
		"checks":  checks,
		"version": version.Version,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func documentItem(r *http.Request) indexuc.Item {
	item := indexuc.Item{
		Model: chi.URLParam(r, "model"),
		ID:    chi.URLParam(r, "id"),
	}
	if p := r.URL.Query().Get("parent_id"); p != "" {
		item.ParentID = p
	}
	return item
}

// decodeBody decodes a JSON body, keeping numbers exact.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// decodeOptionalBody is decodeBody that accepts an empty body.
func decodeOptionalBody(r *http.Request, v any) error {
	err := decodeBody(r, v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
