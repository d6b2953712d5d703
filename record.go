package esdex

// Model describes a category of records, such as a table or class.
type Model interface {
	// ModelName is the singular type name, e.g. "Product" or "Admin::User".
	ModelName() string
	SearchOptions() Options
}

// Record is one application object that can be indexed.
type Record interface {
	Model() Model
	// SearchID is the record's identity value.
	// Numbers stay numeric, anything else is stringified.
	SearchID() any
	// SearchData is the raw field map before shaping.
	SearchData() map[string]any
}

// ParentLinked is implemented by records stored as children of another document.
type ParentLinked interface {
	ParentID() any
}

// DocumentTyper is implemented by models that override their document type.
type DocumentTyper interface {
	DocumentType() string
}

// Indexable is implemented by records that may opt out of reindexing.
type Indexable interface {
	ShouldIndex() bool
}

// Options configures how a model's search data is shaped and mapped.
type Options struct {
	// Conversions names a field holding query → count pairs.
	Conversions string
	// Suggest fields are always sent, as null when missing.
	Suggest []string
	// Locations fields hold [lat, lon] pairs or lists of them.
	Locations []string

	// Parent is set on child models; they are reindexed through the parent.
	Parent Model
	// Children are imported together with this model on reindex.
	Children []Model

	// Mappings is merged into the generated mapping of this model's type.
	Mappings map[string]any
	// Settings is merged into the index settings on reindex.
	Settings map[string]any
}

type model struct {
	name string
	opts Options
}

// NewModel creates a Model from a name and options.
func NewModel(name string, opts Options) Model {
	return &model{name: name, opts: opts}
}

func (m *model) ModelName() string      { return m.name }
func (m *model) SearchOptions() Options { return m.opts }

type typedModel struct {
	Model
	docType string
}

func (m *typedModel) DocumentType() string { return m.docType }

// WithDocumentType wraps m so that its document type is docType.
func WithDocumentType(m Model, docType string) Model {
	return &typedModel{Model: m, docType: docType}
}

type mapRecord struct {
	model Model
	id    any
	data  map[string]any
}

func (r *mapRecord) Model() Model               { return r.model }
func (r *mapRecord) SearchID() any              { return r.id }
func (r *mapRecord) SearchData() map[string]any { return r.data }

type childRecord struct {
	mapRecord
	parentID any
}

func (r *childRecord) ParentID() any { return r.parentID }

// NewRecord creates a Record from plain data.
func NewRecord(m Model, id any, data map[string]any) Record {
	return &mapRecord{model: m, id: id, data: data}
}

// NewChildRecord creates a Record linked to the parent document parentID.
func NewChildRecord(m Model, id, parentID any, data map[string]any) Record {
	return &childRecord{mapRecord: mapRecord{model: m, id: id, data: data}, parentID: parentID}
}
