// Package engine defines the boundary between the index adapter and the
// search engine driver.
package engine

import (
	"context"
	"encoding/json"
	"strconv"
	"time"
)

// Client is the engine facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade; consumers depend on the narrow sub-interfaces
type Client interface {
	Pinger
	IndexManager
	AliasManager
	DocumentStore
	Searcher
}

// Pinger checks engine connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// IndexManager provides index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, name string, body any) error
	DeleteIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	RefreshIndex(ctx context.Context, name string) error
}

// AliasManager reads and swaps index aliases.
type AliasManager interface {
	// GetAliases returns the aliases of every index matching pattern.
	GetAliases(ctx context.Context, pattern string) (map[string][]string, error)
	// IndicesForAlias returns the indices an alias points at, empty when
	// the alias does not exist.
	IndicesForAlias(ctx context.Context, alias string) ([]string, error)
	UpdateAliases(ctx context.Context, actions []AliasAction) error
}

// DocumentStore provides single and bulk document operations.
type DocumentStore interface {
	IndexDocument(ctx context.Context, ident Identity, body any) error
	DeleteDocument(ctx context.Context, ident Identity) error
	GetDocument(ctx context.Context, ident Identity) (*GetResult, error)
	Bulk(ctx context.Context, index, docType string, items []BulkItem) (*BulkResponse, error)
}

// Searcher runs raw query DSL.
type Searcher interface {
	Search(ctx context.Context, index string, types []string, query any) (*SearchResult, error)
}

// ID is a document id. Numeric ids keep their number form in bulk metadata.
type ID struct {
	s       string
	numeric bool
}

// StringID creates a string id.
func StringID(s string) ID { return ID{s: s} }

// NumericID creates a numeric id from its decimal representation.
func NumericID(n string) ID { return ID{s: n, numeric: true} }

// IntID creates a numeric id from an integer.
func IntID(n int64) ID { return NumericID(strconv.FormatInt(n, 10)) }

// String returns the id as it appears in a URL path.
func (id ID) String() string { return id.s }

// IsNumeric reports whether the id came from a number.
func (id ID) IsNumeric() bool { return id.numeric }

// IsZero reports whether the id is empty.
func (id ID) IsZero() bool { return id.s == "" }

// MarshalJSON writes numeric ids as numbers and the rest as strings.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		return []byte(id.s), nil
	}
	return json.Marshal(id.s)
}

// Identity addresses one document.
type Identity struct {
	Index  string
	Type   string
	ID     ID
	Parent string // empty when the document has no parent
}

// BulkItem is one index instruction of a bulk request.
type BulkItem struct {
	ID     ID
	Parent string
	Body   any
}

// BulkResponse is the decoded body of a bulk request.
type BulkResponse struct {
	Took   int                           `json:"took"`
	Errors bool                          `json:"errors"`
	Items  []map[string]BulkResponseItem `json:"items"`
}

// BulkResponseItem reports the outcome of one bulk instruction.
type BulkResponseItem struct {
	Index   string      `json:"_index"`
	Type    string      `json:"_type,omitempty"`
	ID      string      `json:"_id"`
	Version int64       `json:"_version,omitempty"`
	Result  string      `json:"result,omitempty"`
	Status  int         `json:"status"`
	Error   *ErrorCause `json:"error,omitempty"`
}

// Failed returns the items whose status is not 2xx.
func (r *BulkResponse) Failed() []BulkResponseItem {
	var out []BulkResponseItem
	for _, item := range r.Items {
		for _, res := range item {
			if res.Status < 200 || res.Status > 299 {
				out = append(out, res)
			}
		}
	}
	return out
}

// GetResult is a fetched document.
type GetResult struct {
	Index   string          `json:"_index"`
	Type    string          `json:"_type,omitempty"`
	ID      string          `json:"_id"`
	Version int64           `json:"_version,omitempty"`
	Found   bool            `json:"found"`
	Source  json.RawMessage `json:"_source"`
}

// AliasAction is one add or remove step of an atomic alias update.
type AliasAction struct {
	Add   bool
	Index string
	Alias string
}

// MarshalJSON encodes the action in the engine's {"add": {...}} form.
func (a AliasAction) MarshalJSON() ([]byte, error) {
	verb := "remove"
	if a.Add {
		verb = "add"
	}
	return json.Marshal(map[string]map[string]string{
		verb: {"index": a.Index, "alias": a.Alias},
	})
}

// SearchResult is the decoded body of a search request.
type SearchResult struct {
	Took     int        `json:"took"`
	TimedOut bool       `json:"timed_out"`
	Hits     SearchHits `json:"hits"`
}

// SearchHits holds the matching documents.
type SearchHits struct {
	Total    TotalHits   `json:"total"`
	MaxScore *float64    `json:"max_score"`
	Hits     []SearchHit `json:"hits"`
}

// SearchHit is a single matching document.
type SearchHit struct {
	Index  string          `json:"_index"`
	Type   string          `json:"_type,omitempty"`
	ID     string          `json:"_id"`
	Score  *float64        `json:"_score"`
	Source json.RawMessage `json:"_source,omitempty"`
	Sort   []any           `json:"sort,omitempty"`
}

// TotalHits accepts both the plain number and the {value, relation} object
// reported by different engine versions.
type TotalHits struct {
	Value    int64  `json:"value"`
	Relation string `json:"relation,omitempty"`
}

// UnmarshalJSON decodes either representation.
func (t *TotalHits) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		t.Value = n
		t.Relation = "eq"
		return nil
	}
	type plain TotalHits
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = TotalHits(p)
	return nil
}
