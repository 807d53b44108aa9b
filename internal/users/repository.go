package users

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence for user records and onboarding profiles.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (Record, error)
	// Insert creates a record and fails with ErrConflict when one already exists.
	Insert(ctx context.Context, record Record) (Record, error)
	Upsert(ctx context.Context, record Record) (Record, error)
	// CompleteOnboarding stores the profile and sets ProfileCompleted as one unit.
	CompleteOnboarding(ctx context.Context, id uuid.UUID, profile Profile) (Record, error)
}
