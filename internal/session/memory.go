package session

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps sessions in process. Used for tests and single-node dev runs.
type MemoryStore struct {
	items *gocache.Cache
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: gocache.New(gocache.NoExpiration, time.Minute),
	}
}

func (m *MemoryStore) Save(_ context.Context, s Session) error {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	m.items.Set(s.ID, s, ttl)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Session, error) {
	v, ok := m.items.Get(id)
	if !ok {
		return Session{}, ErrNotFound
	}
	return v.(Session), nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.items.Delete(id)
	return nil
}
