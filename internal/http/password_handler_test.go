package http

import (
	"context"
	"net/http"
	"testing"

	"gigbridge/internal/auth"
	"gigbridge/internal/navigation"
	"gigbridge/internal/session"
	"gigbridge/internal/users"
)

func TestForgotPasswordAccepted(t *testing.T) {
	ts := newTestServer(t)

	var gotEmail, gotRedirect string
	ts.backend.requestReset = func(_ context.Context, email, redirectTo string) error {
		gotEmail, gotRedirect = email, redirectTo
		return nil
	}

	rec := ts.do(t, http.MethodPost, "/api/password/forgot", "", map[string]string{"email": " User@Example.com "})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", rec.Code)
	}
	if gotEmail != "user@example.com" {
		t.Fatalf("expected normalized email, got %q", gotEmail)
	}
	if gotRedirect != "gigbridge://auth/callback" {
		t.Fatalf("expected app redirect, got %q", gotRedirect)
	}
}

func TestForgotPasswordHidesRejection(t *testing.T) {
	ts := newTestServer(t)
	ts.backend.requestReset = func(context.Context, string, string) error {
		return auth.ErrRejected
	}

	rec := ts.do(t, http.MethodPost, "/api/password/forgot", "", map[string]string{"email": "nobody@example.com"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", rec.Code)
	}
}

func TestResetPasswordEstablishesSessionAndMovesOn(t *testing.T) {
	sess := confirmedSession("")
	ts := newTestServer(t, users.Record{ID: sess.UserID, Role: users.RoleStudent, ProfileCompleted: true})
	id := ts.openClient(t)

	ts.backend.verifyRecovery = func(_ context.Context, code string) (*session.Session, error) {
		if code != "xyz" {
			t.Errorf("unexpected code %q", code)
		}
		return sess, nil
	}
	var updatedWith string
	ts.backend.updatePassword = func(_ context.Context, accessToken, _ string) error {
		updatedWith = accessToken
		return nil
	}

	rec := ts.do(t, http.MethodPost, "/api/password/reset", id, map[string]string{"code": "xyz", "password": "new-password"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if updatedWith != sess.AccessToken {
		t.Fatalf("expected password update with recovery session token, got %q", updatedWith)
	}
	if got := navigateOf(decodeNavigation(t, rec)); got != navigation.PathHome {
		t.Fatalf("expected navigation home, got %q", got)
	}
}

func TestResetPasswordExpiredCode(t *testing.T) {
	ts := newTestServer(t)
	id := ts.openClient(t)

	rec := ts.do(t, http.MethodPost, "/api/password/reset", id, map[string]string{"code": "old", "password": "new-password"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Recovery != recoveryRequestNewLink {
		t.Fatalf("expected request_new_link recovery, got %+v", body)
	}
}

func TestResetPasswordRejectsShortPassword(t *testing.T) {
	ts := newTestServer(t)
	id := ts.openClient(t)

	rec := ts.do(t, http.MethodPost, "/api/password/reset", id, map[string]string{"code": "xyz", "password": "short"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}
