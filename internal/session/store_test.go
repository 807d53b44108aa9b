package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backendStub struct {
	refresh     func(ctx context.Context, refreshToken string) (*Session, error)
	signOut     func(ctx context.Context, s *Session) error
	signOutCall int
}

func (b *backendStub) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if b.refresh != nil {
		return b.refresh(ctx, refreshToken)
	}
	return nil, errors.New("unexpected refresh")
}

func (b *backendStub) SignOut(ctx context.Context, s *Session) error {
	b.signOutCall++
	if b.signOut != nil {
		return b.signOut(ctx, s)
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func confirmedSession() *Session {
	return &Session{
		UserID:         uuid.New(),
		Email:          "student@example.com",
		EmailConfirmed: true,
		AccessToken:    "access",
		RefreshToken:   "refresh",
		ExpiresAt:      time.Now().Add(time.Hour),
	}
}

func recordEvents(store *Store) *[]EventKind {
	var kinds []EventKind
	store.Subscribe(func(ev Event) {
		kinds = append(kinds, ev.Kind)
	})
	return &kinds
}

func TestSessionPredicates(t *testing.T) {
	var none *Session
	assert.False(t, none.Present())
	assert.False(t, none.Confirmed())
	assert.False(t, none.Expired(time.Now()))

	s := confirmedSession()
	assert.True(t, s.Present())
	assert.True(t, s.Confirmed())
	assert.False(t, s.Expired(time.Now()))
	assert.True(t, s.Expired(s.ExpiresAt))

	s.EmailConfirmed = false
	assert.False(t, s.Confirmed())
}

func TestStoreCurrentWithoutSession(t *testing.T) {
	store := NewStore("client-1", NewInMemoryRepository(), nil, time.Hour, discardLogger())

	sess, err := store.Current(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestStoreEstablishPublishesSignedIn(t *testing.T) {
	store := NewStore("client-1", NewInMemoryRepository(), nil, time.Hour, discardLogger())
	events := recordEvents(store)

	want := confirmedSession()
	require.NoError(t, store.Establish(context.Background(), want))

	got, err := store.Current(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.UserID, got.UserID)
	assert.Equal(t, []EventKind{EventSignedIn}, *events)
}

func TestStoreEstablishRejectsEmptySession(t *testing.T) {
	store := NewStore("client-1", NewInMemoryRepository(), nil, time.Hour, discardLogger())
	assert.Error(t, store.Establish(context.Background(), &Session{}))
}

func TestStoreRefreshesExpiredSession(t *testing.T) {
	repo := NewInMemoryRepository()
	expired := confirmedSession()
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	expired.Metadata.Role = "business"
	require.NoError(t, repo.Save(context.Background(), "client-1", expired, 0))

	backend := &backendStub{
		refresh: func(ctx context.Context, refreshToken string) (*Session, error) {
			assert.Equal(t, "refresh", refreshToken)
			fresh := *expired
			fresh.AccessToken = "access-2"
			fresh.Metadata = Metadata{}
			fresh.ExpiresAt = time.Now().Add(time.Hour)
			return &fresh, nil
		},
	}
	store := NewStore("client-1", repo, backend, time.Hour, discardLogger())
	events := recordEvents(store)

	got, err := store.Current(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "access-2", got.AccessToken)
	assert.Equal(t, "business", got.Metadata.Role, "metadata should survive refresh")
	assert.Equal(t, []EventKind{EventTokenRefreshed}, *events)
}

func TestStoreDropsSessionWhenRefreshRejected(t *testing.T) {
	repo := NewInMemoryRepository()
	expired := confirmedSession()
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, repo.Save(context.Background(), "client-1", expired, 0))

	backend := &backendStub{
		refresh: func(ctx context.Context, refreshToken string) (*Session, error) {
			return nil, ErrRefreshRejected
		},
	}
	store := NewStore("client-1", repo, backend, time.Hour, discardLogger())
	events := recordEvents(store)

	got, err := store.Current(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, []EventKind{EventSignedOut}, *events)

	_, err = repo.Load(context.Background(), "client-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreKeepsSessionOnTransientRefreshFailure(t *testing.T) {
	repo := NewInMemoryRepository()
	expired := confirmedSession()
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, repo.Save(context.Background(), "client-1", expired, 0))

	backend := &backendStub{
		refresh: func(ctx context.Context, refreshToken string) (*Session, error) {
			return nil, errors.New("connection reset")
		},
	}
	store := NewStore("client-1", repo, backend, time.Hour, discardLogger())

	_, err := store.Current(context.Background())
	require.Error(t, err)

	_, err = repo.Load(context.Background(), "client-1")
	assert.NoError(t, err, "session should be kept for retry")
}

func TestStoreExpiredWithoutBackendIsDropped(t *testing.T) {
	repo := NewInMemoryRepository()
	expired := confirmedSession()
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, repo.Save(context.Background(), "client-1", expired, 0))

	store := NewStore("client-1", repo, nil, time.Hour, discardLogger())
	got, err := store.Current(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStoreSignOutClearsEvenWhenBackendFails(t *testing.T) {
	repo := NewInMemoryRepository()
	require.NoError(t, repo.Save(context.Background(), "client-1", confirmedSession(), 0))

	backend := &backendStub{
		signOut: func(ctx context.Context, s *Session) error {
			return errors.New("backend down")
		},
	}
	store := NewStore("client-1", repo, backend, time.Hour, discardLogger())
	events := recordEvents(store)

	require.NoError(t, store.SignOut(context.Background()))
	assert.Equal(t, 1, backend.signOutCall)
	assert.Equal(t, []EventKind{EventSignedOut}, *events)

	got, err := store.Current(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStoreUnsubscribe(t *testing.T) {
	store := NewStore("client-1", NewInMemoryRepository(), nil, time.Hour, discardLogger())
	calls := 0
	unsubscribe := store.Subscribe(func(Event) { calls++ })

	require.NoError(t, store.Establish(context.Background(), confirmedSession()))
	unsubscribe()
	require.NoError(t, store.SignOut(context.Background()))

	assert.Equal(t, 1, calls)
}
