package esdex

import "context"

// SliceSource is an in-memory RecordSource. Records are matched to a model
// by document type.
type SliceSource []Record

// EachBatch calls fn with consecutive batches of at most size records of m.
func (s SliceSource) EachBatch(ctx context.Context, m Model, size int, fn func([]Record) error) error {
	docType := KlassDocumentType(m)
	var matched []Record
	for _, r := range s {
		if KlassDocumentType(r.Model()) == docType {
			matched = append(matched, r)
		}
	}
	for _, batch := range chunks(matched, size) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(batch); err != nil {
			return err
		}
	}
	return nil
}

// RecordSourceFunc adapts a function to RecordSource.
type RecordSourceFunc func(ctx context.Context, m Model, size int, fn func([]Record) error) error

// EachBatch calls f.
func (f RecordSourceFunc) EachBatch(ctx context.Context, m Model, size int, fn func([]Record) error) error {
	return f(ctx, m, size, fn)
}
