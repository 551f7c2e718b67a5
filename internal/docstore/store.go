// Package docstore provides the collection/document persistence used by all
// domain packages. Documents are JSON objects addressed by (collection, id).
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists is returned by Create when the id is taken.
	ErrAlreadyExists = errors.New("document already exists")
)

// Filter is an equality condition on a top-level document field.
type Filter struct {
	Field string
	Value any
}

// Eq builds an equality filter.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// Document is a stored document.
type Document struct {
	ID   string
	Data json.RawMessage
}

// WriteOp identifies a batched write.
type WriteOp int

const (
	OpSet WriteOp = iota
	OpCreate
	OpUpdate
)

// Write is one element of a Batch.
type Write struct {
	Op         WriteOp
	Collection string
	ID         string
	// Doc is the full document for OpSet and OpCreate.
	Doc any
	// Fields is the patch for OpUpdate.
	Fields map[string]any
}

// Order is the creation-time order of query results.
type Order int

const (
	OldestFirst Order = iota
	NewestFirst
)

// Query selects documents by AND-ed equality filters. Limit 0 means no limit.
// Offset skips that many matches in the requested order.
type Query struct {
	Filters []Filter
	Order   Order
	Limit   int
	Offset  int
}

// ScanPageSize is the page size ScanAs reads with.
const ScanPageSize = 500

// Store is a collection/document store. Query supports only equality
// filters; range predicates are applied in memory by callers.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
	// Add stores doc under a generated id and returns it.
	Add(ctx context.Context, collection string, doc any) (string, error)
	// Set creates or replaces the document.
	Set(ctx context.Context, collection, id string, doc any) error
	// Create stores the document only if the id is free.
	Create(ctx context.Context, collection, id string, doc any) error
	// Update merges fields into an existing document in one atomic write.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error
	// Batch applies all writes or none.
	Batch(ctx context.Context, writes []Write) error
}

// GetAs loads a document and decodes it into T.
func GetAs[T any](ctx context.Context, s Store, collection, id string) (T, error) {
	var out T
	doc, err := s.Get(ctx, collection, id)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(doc.Data, &out); err != nil {
		return out, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return out, nil
}

// QueryAs returns up to limit of the oldest matches decoded into T.
func QueryAs[T any](ctx context.Context, s Store, collection string, filters []Filter, limit int) ([]T, error) {
	docs, err := s.Query(ctx, collection, Query{Filters: filters, Limit: limit})
	if err != nil {
		return nil, err
	}
	return decodeAll[T](collection, docs)
}

// ScanAs pages through every match in order, calling fn for each decoded
// item until fn returns false.
func ScanAs[T any](ctx context.Context, s Store, collection string, filters []Filter, order Order, fn func(T) bool) error {
	for offset := 0; ; offset += ScanPageSize {
		docs, err := s.Query(ctx, collection, Query{Filters: filters, Order: order, Limit: ScanPageSize, Offset: offset})
		if err != nil {
			return err
		}
		items, err := decodeAll[T](collection, docs)
		if err != nil {
			return err
		}
		for _, item := range items {
			if !fn(item) {
				return nil
			}
		}
		if len(docs) < ScanPageSize {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// QueryAllAs returns every match, oldest first.
func QueryAllAs[T any](ctx context.Context, s Store, collection string, filters []Filter) ([]T, error) {
	var out []T
	err := ScanAs(ctx, s, collection, filters, OldestFirst, func(item T) bool {
		out = append(out, item)
		return true
	})
	return out, err
}

func decodeAll[T any](collection string, docs []Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var item T
		if err := json.Unmarshal(doc.Data, &item); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, doc.ID, err)
		}
		out = append(out, item)
	}
	return out, nil
}

func encode(doc any) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("document must encode to a JSON object: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// normalizeValue round-trips a value through JSON so filter comparisons see
// the same representation as stored documents.
func normalizeValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
