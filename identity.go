package esdex

import (
	"encoding/json"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kailas-cloud/esdex/internal/engine"
)

// ID is a document id; numeric ids are sent as numbers.
type ID = engine.ID

// Identity addresses one document: index, type, id and optional parent.
type Identity = engine.Identity

// NewID derives a document id from an identity value.
// Numbers keep their numeric form; anything else is stringified.
func NewID(v any) ID {
	switch t := v.(type) {
	case int:
		return engine.IntID(int64(t))
	case int8:
		return engine.IntID(int64(t))
	case int16:
		return engine.IntID(int64(t))
	case int32:
		return engine.IntID(int64(t))
	case int64:
		return engine.IntID(t)
	case uint:
		return engine.NumericID(strconv.FormatUint(uint64(t), 10))
	case uint8:
		return engine.IntID(int64(t))
	case uint16:
		return engine.IntID(int64(t))
	case uint32:
		return engine.IntID(int64(t))
	case uint64:
		return engine.NumericID(strconv.FormatUint(t, 10))
	case float32:
		return engine.NumericID(strconv.FormatFloat(float64(t), 'f', -1, 32))
	case float64:
		return engine.NumericID(strconv.FormatFloat(t, 'f', -1, 64))
	case json.Number:
		return engine.NumericID(t.String())
	case decimal.Decimal:
		return engine.NumericID(t.String())
	case *big.Int:
		if t == nil {
			return engine.StringID("")
		}
		return engine.NumericID(t.String())
	case ID:
		return t
	case string:
		return engine.StringID(t)
	case nil:
		return engine.StringID("")
	default:
		return engine.StringID(fmt.Sprint(t))
	}
}

// parentValue stringifies a parent id the same way for every operation.
func parentValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return NewID(t).String()
	}
}

// KlassDocumentType returns the document type of a model: its DocumentType
// override when present, otherwise the underscored model name.
func KlassDocumentType(m Model) string {
	if dt, ok := m.(DocumentTyper); ok {
		return dt.DocumentType()
	}
	return underscore(m.ModelName())
}

var (
	acronymBoundary = regexp.MustCompile(`([A-Z\d]+)([A-Z][a-z])`)
	wordBoundary    = regexp.MustCompile(`([a-z\d])([A-Z])`)
)

// underscore converts a CamelCase type name to snake_case;
// "::" namespace separators become "/".
func underscore(name string) string {
	s := strings.ReplaceAll(name, "::", "/")
	s = acronymBoundary.ReplaceAllString(s, "${1}_${2}")
	s = wordBoundary.ReplaceAllString(s, "${1}_${2}")
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ToLower(s)
}

// identity derives the address of r inside index.
func identity(index string, r Record) Identity {
	ident := Identity{
		Index: index,
		Type:  KlassDocumentType(r.Model()),
		ID:    NewID(r.SearchID()),
	}
	if p, ok := r.(ParentLinked); ok {
		ident.Parent = parentValue(p.ParentID())
	}
	return ident
}
