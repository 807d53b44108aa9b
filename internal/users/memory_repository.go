package users

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository stores user records in process memory, ideal for local development or tests.
type InMemoryRepository struct {
	mu       sync.RWMutex
	records  map[uuid.UUID]Record
	profiles map[uuid.UUID]Profile
	now      func() time.Time
}

// NewInMemoryRepository constructs a repository seeded with optional records.
func NewInMemoryRepository(initial ...Record) *InMemoryRepository {
	records := make(map[uuid.UUID]Record, len(initial))
	for _, r := range initial {
		records[r.ID] = r
	}
	return &InMemoryRepository{
		records:  records,
		profiles: make(map[uuid.UUID]Profile),
		now:      time.Now,
	}
}

// Get returns a record by ID.
func (r *InMemoryRepository) Get(_ context.Context, id uuid.UUID) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return record, nil
}

// Insert stores a new record.
func (r *InMemoryRepository) Insert(_ context.Context, record Record) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[record.ID]; ok {
		return Record{}, ErrConflict
	}
	now := r.now()
	record.CreatedAt = now
	record.UpdatedAt = now
	r.records[record.ID] = record
	return record, nil
}

// Upsert creates or replaces the role and completion flag of a record.
func (r *InMemoryRepository) Upsert(_ context.Context, record Record) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if existing, ok := r.records[record.ID]; ok {
		record.CreatedAt = existing.CreatedAt
	} else {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	r.records[record.ID] = record
	return record, nil
}

// CompleteOnboarding stores the profile and marks the record complete under one lock.
func (r *InMemoryRepository) CompleteOnboarding(_ context.Context, id uuid.UUID, profile Profile) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	r.profiles[id] = profile
	record.ProfileCompleted = true
	record.UpdatedAt = r.now()
	r.records[id] = record
	return record, nil
}

// Profile returns the stored onboarding profile, if any.
func (r *InMemoryRepository) Profile(id uuid.UUID) (Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[id]
	return p, ok
}
