package users

import (
	"context"
	"errors"
	"fmt"

	"gigbridge/internal/session"
)

// Service owns the writers that advance an account through role selection and onboarding.
type Service struct {
	repo Repository
}

// NewService wires a Service with the provided repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns the record for the session's user.
func (s *Service) Get(ctx context.Context, sess *session.Session) (Record, error) {
	if !sess.Confirmed() {
		return Record{}, ErrUnauthenticated
	}
	return s.repo.Get(ctx, sess.UserID)
}

// SelectRole records the role chosen by a confirmed user. Choosing the same role
// again is a no-op; switching roles after onboarding finished is a conflict.
func (s *Service) SelectRole(ctx context.Context, sess *session.Session, role Role) (Record, error) {
	if !sess.Confirmed() {
		return Record{}, ErrUnauthenticated
	}
	if !role.IsValid() {
		return Record{}, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}

	existing, err := s.repo.Get(ctx, sess.UserID)
	switch {
	case err == nil:
		if existing.ProfileCompleted {
			if existing.Role == role {
				return existing, nil
			}
			return Record{}, fmt.Errorf("%w: role is fixed once onboarding is complete", ErrConflict)
		}
		if existing.Role == role {
			return existing, nil
		}
	case errors.Is(err, ErrNotFound):
	default:
		return Record{}, fmt.Errorf("load user record: %w", err)
	}

	record, err := s.repo.Upsert(ctx, Record{ID: sess.UserID, Role: role, ProfileCompleted: false})
	if err != nil {
		return Record{}, fmt.Errorf("save role: %w", err)
	}
	return record, nil
}

// CompleteOnboarding validates the profile for the user's role and stores it
// together with the completion flag.
func (s *Service) CompleteOnboarding(ctx context.Context, sess *session.Session, profile Profile) (Record, error) {
	if !sess.Confirmed() {
		return Record{}, ErrUnauthenticated
	}

	role, err := profile.Role()
	if err != nil {
		return Record{}, err
	}
	profile.normalize()
	if err := validateProfile(profile); err != nil {
		return Record{}, err
	}

	existing, err := s.repo.Get(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Record{}, fmt.Errorf("%w: select a role first", ErrNotFound)
		}
		return Record{}, fmt.Errorf("load user record: %w", err)
	}
	if existing.Role != role {
		return Record{}, fmt.Errorf("%w: profile is for %s but account is %s", ErrConflict, role, existing.Role)
	}

	record, err := s.repo.CompleteOnboarding(ctx, sess.UserID, profile)
	if err != nil {
		return Record{}, fmt.Errorf("complete onboarding: %w", err)
	}
	return record, nil
}
