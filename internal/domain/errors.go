package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexNotFound signals a missing index.
	ErrIndexNotFound = errors.New("index not found")
	// ErrIndexExists signals an attempt to create an index that already exists.
	ErrIndexExists = errors.New("index already exists")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrInvalidQuery signals a query or mapping the engine rejected.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrUnsupportedVersion signals an engine too old for the request.
	ErrUnsupportedVersion = errors.New("unsupported engine version")

	// ErrInvalidDocument signals search data that cannot be shaped into a document.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrUnknownModel signals a model name with no registered definition.
	ErrUnknownModel = errors.New("unknown model")
	// ErrChildReindex signals a reindex requested for a child model.
	ErrChildReindex = errors.New("child models are reindexed through their parent")
	// ErrLocked signals that another process holds the reindex lock.
	ErrLocked = errors.New("locked by another process")
)

// FieldError wraps ErrInvalidDocument with the offending field name.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: field %q: %s", ErrInvalidDocument.Error(), e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrInvalidDocument }

// NewFieldError creates a field-level shaping error.
func NewFieldError(field, reason string) error {
	return &FieldError{Field: field, Reason: reason}
}
