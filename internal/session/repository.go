package session

import (
	"context"
	"sync"
	"time"
)

// Repository persists the session of each client instance.
type Repository interface {
	Load(ctx context.Context, clientID string) (*Session, error)
	Save(ctx context.Context, clientID string, s *Session, ttl time.Duration) error
	Delete(ctx context.Context, clientID string) error
}

type memoryEntry struct {
	session   Session
	expiresAt time.Time
}

// InMemoryRepository keeps sessions in process memory, for local development and tests.
type InMemoryRepository struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
	now  func() time.Time
}

// NewInMemoryRepository constructs an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		data: make(map[string]memoryEntry),
		now:  time.Now,
	}
}

// Load returns a copy of the stored session or ErrNotFound.
func (r *InMemoryRepository) Load(_ context.Context, clientID string) (*Session, error) {
	r.mu.RLock()
	entry, ok := r.data[clientID]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if !entry.expiresAt.IsZero() && !r.now().Before(entry.expiresAt) {
		r.mu.Lock()
		delete(r.data, clientID)
		r.mu.Unlock()
		return nil, ErrNotFound
	}

	s := entry.session
	return &s, nil
}

// Save stores a copy of s. A zero ttl keeps the entry until deleted.
func (r *InMemoryRepository) Save(_ context.Context, clientID string, s *Session, ttl time.Duration) error {
	entry := memoryEntry{session: *s}
	if ttl > 0 {
		entry.expiresAt = r.now().Add(ttl)
	}

	r.mu.Lock()
	r.data[clientID] = entry
	r.mu.Unlock()
	return nil
}

// Delete removes the stored session; deleting a missing session is not an error.
func (r *InMemoryRepository) Delete(_ context.Context, clientID string) error {
	r.mu.Lock()
	delete(r.data, clientID)
	r.mu.Unlock()
	return nil
}
