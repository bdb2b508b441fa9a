package repository

import (
	"context"
	"sync"
	"time"

	"playchrono/internal/models"
)

// MemorySessionStore keeps sessions in process. It backs the redis store when
// redis is unavailable.
type MemorySessionStore struct {
	sessions   sync.Map
	mu         sync.Mutex
	rateLimits map[string]*rateLimitEntry
	now        func() time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		rateLimits: make(map[string]*rateLimitEntry),
		now:        time.Now,
	}
}

func (r *MemorySessionStore) GetSession(_ context.Context, id string) (*models.Session, error) {
	val, ok := r.sessions.Load(id)
	if !ok {
		return nil, nil
	}
	session := val.(*models.Session)
	if session.Expired(r.now()) {
		r.sessions.Delete(id)
		return nil, nil
	}
	return session, nil
}

func (r *MemorySessionStore) SaveSession(_ context.Context, session *models.Session) error {
	r.sessions.Store(session.ID, session)
	return nil
}

func (r *MemorySessionStore) DeleteSession(_ context.Context, id string) error {
	r.sessions.Delete(id)
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemorySessionStore) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{expiresAt: now.Add(window)}
		r.rateLimits[key] = entry
	}
	entry.count++

	return entry.count <= limit, nil
}
