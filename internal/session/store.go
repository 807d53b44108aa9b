package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Backend is the part of the auth service a Store needs to keep a session alive.
type Backend interface {
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	SignOut(ctx context.Context, s *Session) error
}

// Store is the session holder of one client instance.
type Store struct {
	clientID string
	repo     Repository
	backend  Backend
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu          sync.Mutex
	subscribers map[int]func(Event)
	nextID      int
}

// NewStore builds a Store for clientID. backend may be nil, in which case expired
// sessions are dropped instead of refreshed.
func NewStore(clientID string, repo Repository, backend Backend, ttl time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		clientID:    clientID,
		repo:        repo,
		backend:     backend,
		ttl:         ttl,
		logger:      logger.With("client_id", clientID),
		now:         time.Now,
		subscribers: make(map[int]func(Event)),
	}
}

// ClientID returns the client instance the store belongs to.
func (s *Store) ClientID() string {
	return s.clientID
}

// Current returns the active session, refreshing an expired access token when possible.
// It returns nil without error when no session exists.
func (s *Store) Current(ctx context.Context) (*Session, error) {
	sess, err := s.repo.Load(ctx, s.clientID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if !sess.Expired(s.now()) {
		return sess, nil
	}

	if s.backend == nil || sess.RefreshToken == "" {
		s.logger.Info("session expired")
		return nil, s.drop(ctx)
	}

	refreshed, err := s.backend.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrRefreshRejected) {
			s.logger.Info("refresh token rejected, dropping session")
			return nil, s.drop(ctx)
		}
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	if refreshed.Metadata.Role == "" {
		refreshed.Metadata = sess.Metadata
	}

	if err := s.repo.Save(ctx, s.clientID, refreshed, s.ttl); err != nil {
		return nil, err
	}
	s.publish(Event{Kind: EventTokenRefreshed, Session: refreshed})
	return refreshed, nil
}

// Establish stores a freshly issued session and announces the sign-in.
func (s *Store) Establish(ctx context.Context, sess *Session) error {
	if !sess.Present() {
		return errors.New("establish session: session has no user")
	}
	if err := s.repo.Save(ctx, s.clientID, sess, s.ttl); err != nil {
		return err
	}
	s.publish(Event{Kind: EventSignedIn, Session: sess})
	return nil
}

// SignOut revokes the session with the backend (best effort) and always clears it locally.
func (s *Store) SignOut(ctx context.Context) error {
	sess, err := s.repo.Load(ctx, s.clientID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Warn("load session before sign-out failed", "error", err)
	}

	if sess.Present() && s.backend != nil {
		if err := s.backend.SignOut(ctx, sess); err != nil {
			s.logger.Warn("backend sign-out failed", "error", err)
		}
	}

	return s.drop(ctx)
}

// Subscribe registers fn for session events and returns a function that removes it.
// Events are delivered synchronously on the goroutine that changed the session.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *Store) drop(ctx context.Context) error {
	if err := s.repo.Delete(ctx, s.clientID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.publish(Event{Kind: EventSignedOut})
	return nil
}

func (s *Store) publish(ev Event) {
	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
