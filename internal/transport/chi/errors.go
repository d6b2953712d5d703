package chi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/esdex/internal/domain"
	logpkg "github.com/kailas-cloud/esdex/internal/logger"
)

// Error codes returned in errorResponse.Code.
const (
	codeBadRequest         = "bad_request"
	codeUnauthorized       = "unauthorized"
	codeValidationFailed   = "validation_failed"
	codeIndexNotFound      = "index_not_found"
	codeDocumentNotFound   = "document_not_found"
	codeIndexExists        = "index_already_exists"
	codeInvalidQuery       = "invalid_query"
	codeUnknownModel       = "unknown_model"
	codeChildReindex       = "child_reindex"
	codeLocked             = "reindex_locked"
	codeUnsupportedVersion = "unsupported_version"
	codeInternalError      = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		fieldErrorHandler,
		sentinelHandler(domain.ErrIndexNotFound, http.StatusNotFound, codeIndexNotFound),
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, codeDocumentNotFound),
		sentinelHandler(domain.ErrIndexExists, http.StatusConflict, codeIndexExists),
		sentinelHandler(domain.ErrLocked, http.StatusConflict, codeLocked),
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, codeInvalidQuery),
		sentinelHandler(domain.ErrInvalidDocument, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrUnknownModel, http.StatusBadRequest, codeUnknownModel),
		sentinelHandler(domain.ErrChildReindex, http.StatusBadRequest, codeChildReindex),
		sentinelHandler(domain.ErrUnsupportedVersion, http.StatusNotImplemented, codeUnsupportedVersion),
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrIndexNotFound,
		domain.ErrDocumentNotFound,
		domain.ErrIndexExists,
		domain.ErrLocked,
		domain.ErrInvalidQuery,
		domain.ErrInvalidDocument,
		domain.ErrUnknownModel,
		domain.ErrChildReindex,
		domain.ErrUnsupportedVersion,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// fieldErrorHandler reports which document field was rejected.
func fieldErrorHandler(w http.ResponseWriter, err error, _ string) bool {
	var fe *domain.FieldError
	if !errors.As(err, &fe) {
		return false
	}
	writeError(w, http.StatusBadRequest, codeValidationFailed, fe.Error())
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContextOr(r.Context(), s.logger)
	log.Warn("domain error", zap.String("path", r.URL.Path), zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.String("path", r.URL.Path), zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
