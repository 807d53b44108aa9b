// Package session holds the client-scoped authentication session and the
// event stream that announces its changes.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by repositories when no session is stored for a client.
	ErrNotFound = errors.New("session not found")
	// ErrRefreshRejected is returned by backends when a refresh token is no longer accepted.
	ErrRefreshRejected = errors.New("refresh token rejected")
)

// Session is the authenticated-identity bundle issued by the backend auth service.
// A nil *Session means no session; none of the fields carry meaning in that case.
type Session struct {
	UserID         uuid.UUID `json:"userId"`
	Email          string    `json:"email"`
	EmailConfirmed bool      `json:"emailConfirmed"`
	AccessToken    string    `json:"accessToken"`
	RefreshToken   string    `json:"refreshToken,omitempty"`
	ExpiresAt      time.Time `json:"expiresAt"`
	Metadata       Metadata  `json:"metadata"`
}

// Metadata carries user-supplied attributes recorded by the backend at sign-up.
type Metadata struct {
	Role string `json:"role,omitempty"`
}

// Present reports whether s represents an established session.
func (s *Session) Present() bool {
	return s != nil && s.UserID != uuid.Nil
}

// Confirmed reports whether s is present and its email address has been verified.
func (s *Session) Confirmed() bool {
	return s.Present() && s.EmailConfirmed
}

// Expired reports whether the access token is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	if !s.Present() || s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}

// EventKind names a session transition.
type EventKind string

const (
	EventSignedIn       EventKind = "signed_in"
	EventSignedOut      EventKind = "signed_out"
	EventTokenRefreshed EventKind = "token_refreshed"
)

// Event is delivered to subscribers whenever the session changes.
type Event struct {
	Kind    EventKind
	Session *Session
}
