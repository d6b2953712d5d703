package engine

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/esdex/internal/domain"
)

// Op names used in error context; they follow the engine API names.
const (
	OpPing          = "ping"
	OpCreateIndex   = "indices.create"
	OpDeleteIndex   = "indices.delete"
	OpIndexExists   = "indices.exists"
	OpRefreshIndex  = "indices.refresh"
	OpGetAliases    = "indices.get_alias"
	OpUpdateAliases = "indices.update_aliases"
	OpIndex         = "index"
	OpDelete        = "delete"
	OpGet           = "get"
	OpBulk          = "bulk"
	OpSearch        = "search"
)

// ErrorCause is the engine's description of a failure.
type ErrorCause struct {
	Type      string       `json:"type"`
	Reason    string       `json:"reason"`
	Index     string       `json:"index,omitempty"`
	RootCause []ErrorCause `json:"root_cause,omitempty"`
}

// Error is an engine failure with the operation that caused it.
// It unwraps to a domain sentinel when the failure is recognised.
type Error struct {
	Op     string
	Status int
	Type   string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	if e.Status != 0 {
		fmt.Fprintf(&b, "[%d] ", e.Status)
	}
	switch {
	case e.Type != "" && e.Reason != "":
		b.WriteString(e.Type + ": " + e.Reason)
	case e.Type != "":
		b.WriteString(e.Type)
	case e.Reason != "":
		b.WriteString(e.Reason)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString("engine error")
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

var invalidQueryTypes = map[string]bool{
	"search_phase_execution_exception": true,
	"parsing_exception":                true,
	"query_parsing_exception":          true,
	"query_shard_exception":            true,
	"mapper_parsing_exception":         true,
	"illegal_argument_exception":       true,
}

// documentOps address a single document; a bare 404 there means the
// document, not the index, is missing.
var documentOps = map[string]bool{
	OpIndex:  true,
	OpDelete: true,
	OpGet:    true,
}

// Classify builds an Error for a failed response and picks the sentinel it
// unwraps to. cause may be nil when the engine sent no error body.
func Classify(op string, status int, cause *ErrorCause) *Error {
	e := &Error{Op: op, Status: status}
	if cause != nil {
		e.Type = cause.Type
		e.Reason = cause.Reason
	}
	e.Err = sentinelFor(op, status, cause)
	return e
}

func sentinelFor(op string, status int, cause *ErrorCause) error {
	causes := flatten(cause)

	for _, c := range causes {
		if strings.Contains(c.Reason, "No query registered for") {
			return domain.ErrUnsupportedVersion
		}
	}
	for _, c := range causes {
		switch c.Type {
		case "index_not_found_exception", "IndexMissingException":
			return domain.ErrIndexNotFound
		case "resource_already_exists_exception", "index_already_exists_exception", "IndexAlreadyExistsException":
			return domain.ErrIndexExists
		}
	}
	if op == OpSearch || op == OpCreateIndex {
		for _, c := range causes {
			if invalidQueryTypes[c.Type] {
				return domain.ErrInvalidQuery
			}
		}
	}

	if status == 404 {
		if documentOps[op] {
			return domain.ErrDocumentNotFound
		}
		return domain.ErrIndexNotFound
	}
	return nil
}

func flatten(cause *ErrorCause) []ErrorCause {
	if cause == nil {
		return nil
	}
	out := []ErrorCause{*cause}
	for i := range cause.RootCause {
		out = append(out, flatten(&cause.RootCause[i])...)
	}
	return out
}
