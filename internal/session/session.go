// Package session stores signed-in browser sessions keyed by the session cookie id.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/and161185/pto-keeper/internal/errs"
	"github.com/and161185/pto-keeper/internal/model"
)

// Store persists sessions with a time-to-live. Get returns errs.ErrNotFound for
// unknown or expired ids.
type Store interface {
	Get(ctx context.Context, id string) (*model.Session, error)
	Put(ctx context.Context, s *model.Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

type entry struct {
	s       model.Session
	expires time.Time
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu  sync.Mutex
	m   map[string]entry
	now func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]entry), now: time.Now}
}

// Get returns the live session for id.
func (st *MemoryStore) Get(_ context.Context, id string) (*model.Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	e, ok := st.m[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	if !e.expires.IsZero() && !st.now().Before(e.expires) {
		delete(st.m, id)
		return nil, errs.ErrNotFound
	}
	s := e.s
	return &s, nil
}

// Put stores s; ttl <= 0 keeps it until Delete.
func (st *MemoryStore) Put(_ context.Context, s *model.Session, ttl time.Duration) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	e := entry{s: *s}
	if ttl > 0 {
		e.expires = st.now().Add(ttl)
	}
	st.m[s.ID] = e
	return nil
}

// Delete removes id. Deleting an unknown id is not an error.
func (st *MemoryStore) Delete(_ context.Context, id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.m, id)
	return nil
}
