package esdex

import "github.com/kailas-cloud/esdex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrIndexNotFound      = domain.ErrIndexNotFound
	ErrIndexExists        = domain.ErrIndexExists
	ErrDocumentNotFound   = domain.ErrDocumentNotFound
	ErrInvalidQuery       = domain.ErrInvalidQuery
	ErrUnsupportedVersion = domain.ErrUnsupportedVersion
	ErrInvalidDocument    = domain.ErrInvalidDocument
	ErrUnknownModel       = domain.ErrUnknownModel
	ErrChildReindex       = domain.ErrChildReindex
	ErrLocked             = domain.ErrLocked
)

// FieldError reports the field that could not be shaped.
type FieldError = domain.FieldError
