package session

import (
	"context"
	"errors"

	"fleetdesk_backend/internal/docstore"
)

// Collection holds one session document per canonical address.
const Collection = "sessions"

// ErrNotFound is returned by Store.Get when no session is persisted.
var ErrNotFound = errors.New("session not found")

// Store persists raw sessions. Lifecycle rules live in Manager.
type Store interface {
	Get(ctx context.Context, address string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, address string) error
}

// DocStore keeps sessions in the document store.
type DocStore struct {
	docs docstore.Store
}

// NewDocStore creates a session store over docs.
func NewDocStore(docs docstore.Store) *DocStore {
	return &DocStore{docs: docs}
}

func (d *DocStore) Get(ctx context.Context, address string) (*Session, error) {
	s, err := docstore.GetAs[Session](ctx, d.docs, Collection, address)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if s.Fields == nil {
		s.Fields = Fields{}
	}
	return &s, nil
}

func (d *DocStore) Put(ctx context.Context, s *Session) error {
	return d.docs.Set(ctx, Collection, s.Address, s)
}

func (d *DocStore) Delete(ctx context.Context, address string) error {
	return d.docs.Delete(ctx, Collection, address)
}
