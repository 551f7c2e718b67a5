package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type memoryDoc struct {
	data map[string]any
	seq  uint64
}

// Memory is an in-process Store used in development and tests.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]*memoryDoc
	seq         uint64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string]map[string]*memoryDoc)}
}

func (m *Memory) Get(_ context.Context, collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.collections[collection][id]
	if !ok {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return toDocument(id, doc)
}

func (m *Memory) Query(_ context.Context, collection string, q Query) ([]Document, error) {
	wanted := make([]Filter, 0, len(q.Filters))
	for _, f := range q.Filters {
		value, err := normalizeValue(f.Value)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", f.Field, err)
		}
		wanted = append(wanted, Filter{Field: f.Field, Value: value})
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	type match struct {
		id  string
		doc *memoryDoc
	}
	var matches []match
	for id, doc := range m.collections[collection] {
		if matchesAll(doc.data, wanted) {
			matches = append(matches, match{id: id, doc: doc})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if q.Order == NewestFirst {
			return matches[i].doc.seq > matches[j].doc.seq
		}
		return matches[i].doc.seq < matches[j].doc.seq
	})
	if q.Offset > 0 {
		if q.Offset >= len(matches) {
			return []Document{}, nil
		}
		matches = matches[q.Offset:]
	}
	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}

	out := make([]Document, 0, len(matches))
	for _, item := range matches {
		doc, err := toDocument(item.id, item.doc)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (m *Memory) Add(ctx context.Context, collection string, doc any) (string, error) {
	id := uuid.NewString()
	if err := m.Create(ctx, collection, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Memory) Set(ctx context.Context, collection, id string, doc any) error {
	return m.Batch(ctx, []Write{{Op: OpSet, Collection: collection, ID: id, Doc: doc}})
}

func (m *Memory) Create(ctx context.Context, collection, id string, doc any) error {
	return m.Batch(ctx, []Write{{Op: OpCreate, Collection: collection, ID: id, Doc: doc}})
}

func (m *Memory) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return m.Batch(ctx, []Write{{Op: OpUpdate, Collection: collection, ID: id, Fields: fields}})
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections[collection], id)
	return nil
}

// Batch validates every write against the current state before applying any.
func (m *Memory) Batch(_ context.Context, writes []Write) error {
	type staged struct {
		collection string
		id         string
		data       map[string]any
		existing   *memoryDoc
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pending := make(map[string]*staged, len(writes))
	order := make([]*staged, 0, len(writes))

	for _, w := range writes {
		key := w.Collection + "\x00" + w.ID
		current, seen := pending[key]
		var base map[string]any
		var existing *memoryDoc
		if seen {
			base = current.data
			existing = current.existing
		} else if doc, ok := m.collections[w.Collection][w.ID]; ok {
			base = cloneMap(doc.data)
			existing = doc
		}

		var next map[string]any
		switch w.Op {
		case OpCreate:
			if base != nil {
				return fmt.Errorf("%s/%s: %w", w.Collection, w.ID, ErrAlreadyExists)
			}
			fallthrough
		case OpSet:
			data, err := encode(w.Doc)
			if err != nil {
				return fmt.Errorf("%s/%s: %w", w.Collection, w.ID, err)
			}
			next = data
		case OpUpdate:
			if base == nil {
				return fmt.Errorf("%s/%s: %w", w.Collection, w.ID, ErrNotFound)
			}
			patch, err := encode(w.Fields)
			if err != nil {
				return fmt.Errorf("%s/%s: %w", w.Collection, w.ID, err)
			}
			next = base
			for k, v := range patch {
				next[k] = v
			}
		default:
			return fmt.Errorf("unknown write op %d", w.Op)
		}

		if seen {
			current.data = next
			continue
		}
		s := &staged{collection: w.Collection, id: w.ID, data: next, existing: existing}
		pending[key] = s
		order = append(order, s)
	}

	for _, s := range order {
		coll, ok := m.collections[s.collection]
		if !ok {
			coll = make(map[string]*memoryDoc)
			m.collections[s.collection] = coll
		}
		var seq uint64
		if s.existing != nil {
			seq = s.existing.seq
		} else {
			m.seq++
			seq = m.seq
		}
		coll[s.id] = &memoryDoc{data: s.data, seq: seq}
	}
	return nil
}

func toDocument(id string, doc *memoryDoc) (Document, error) {
	raw, err := json.Marshal(doc.data)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: id, Data: raw}, nil
}

func matchesAll(data map[string]any, filters []Filter) bool {
	for _, f := range filters {
		value, ok := data[f.Field]
		if !ok || !reflect.DeepEqual(value, f.Value) {
			return false
		}
	}
	return true
}

func cloneMap(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
