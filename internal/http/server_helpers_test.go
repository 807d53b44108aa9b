package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gigbridge/internal/auth"
	"gigbridge/internal/clients"
	"gigbridge/internal/config"
	"gigbridge/internal/deeplink"
	"gigbridge/internal/platform/logging"
	"gigbridge/internal/session"
	"gigbridge/internal/users"

	"github.com/google/uuid"
)

// backendStub implements auth.Backend and navigation.CodeExchanger.
type backendStub struct {
	signIn         func(ctx context.Context, email, password string) (*session.Session, error)
	signUp         func(ctx context.Context, email, password, role, redirectTo string) (auth.SignUpResult, error)
	exchange       func(ctx context.Context, code string) (*session.Session, error)
	fromTokens     func(ctx context.Context, access, refresh string) (*session.Session, error)
	verifyRecovery func(ctx context.Context, code string) (*session.Session, error)
	requestReset   func(ctx context.Context, email, redirectTo string) error
	updatePassword func(ctx context.Context, accessToken, password string) error
}

func (b *backendStub) PasswordSignIn(ctx context.Context, email, password string) (*session.Session, error) {
	if b.signIn != nil {
		return b.signIn(ctx, email, password)
	}
	return nil, auth.ErrInvalidCredentials
}

func (b *backendStub) SignUp(ctx context.Context, email, password, role, redirectTo string) (auth.SignUpResult, error) {
	if b.signUp != nil {
		return b.signUp(ctx, email, password, role, redirectTo)
	}
	return auth.SignUpResult{ConfirmationSent: true}, nil
}

func (b *backendStub) ExchangeAuthCode(ctx context.Context, code string) (*session.Session, error) {
	if b.exchange != nil {
		return b.exchange(ctx, code)
	}
	return nil, auth.ErrInvalidCode
}

func (b *backendStub) SessionFromTokens(ctx context.Context, access, refresh string) (*session.Session, error) {
	if b.fromTokens != nil {
		return b.fromTokens(ctx, access, refresh)
	}
	return nil, auth.ErrInvalidToken
}

func (b *backendStub) VerifyRecoveryCode(ctx context.Context, code string) (*session.Session, error) {
	if b.verifyRecovery != nil {
		return b.verifyRecovery(ctx, code)
	}
	return nil, auth.ErrInvalidCode
}

func (b *backendStub) RequestPasswordReset(ctx context.Context, email, redirectTo string) error {
	if b.requestReset != nil {
		return b.requestReset(ctx, email, redirectTo)
	}
	return nil
}

func (b *backendStub) UpdatePassword(ctx context.Context, accessToken, password string) error {
	if b.updatePassword != nil {
		return b.updatePassword(ctx, accessToken, password)
	}
	return nil
}

type starterStub struct {
	base      string
	lastState string
}

func (s *starterStub) AuthURL(state, provider, _ string) string {
	s.lastState = state
	if s.base == "" {
		return ""
	}
	return s.base + "?provider=" + provider + "&state=" + state
}

type testServer struct {
	handler  http.Handler
	registry *clients.Registry
	records  *users.InMemoryRepository
	backend  *backendStub
	starter  *starterStub
}

func newTestServer(t *testing.T, records ...users.Record) *testServer {
	t.Helper()
	logger := logging.Discard()

	ts := &testServer{
		records: users.NewInMemoryRepository(records...),
		backend: &backendStub{},
		starter: &starterStub{base: "https://auth.example.com/authorize"},
	}
	ts.registry = clients.NewRegistry(clients.Config{
		Sessions:   session.NewInMemoryRepository(),
		Exchanger:  ts.backend,
		Records:    ts.records,
		Decoder:    deeplink.NewDecoder("gigbridge", "gigbridge.app", logger),
		SessionTTL: time.Hour,
		Logger:     logger,
	})
	t.Cleanup(ts.registry.Shutdown)

	cfg := config.Config{
		Environment:    "development",
		AllowedOrigins: []string{"http://localhost:5173"},
		FrontendURL:    "http://frontend.test",
	}
	ts.handler = NewRouter(cfg, Dependencies{
		Clients: ts.registry,
		Auth:    auth.NewService(ts.backend, "gigbridge://auth/callback"),
		OAuth:   ts.starter,
		Users:   users.NewService(ts.records),
	}, logger)
	return ts
}

// openClient registers a client and returns its id.
func (ts *testServer) openClient(t *testing.T) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/clients", "", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("open client: expected status 201, got %d", rec.Code)
	}
	var body struct {
		ClientID string `json:"clientId"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode client: %v", err)
	}
	return body.ClientID
}

func (ts *testServer) do(t *testing.T, method, path, clientID string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if clientID != "" {
		req.Header.Set(clientHeader, clientID)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

// signIn establishes sess for the client through the password endpoint.
func (ts *testServer) signIn(t *testing.T, clientID string, sess *session.Session) navigationResponse {
	t.Helper()
	ts.backend.signIn = func(context.Context, string, string) (*session.Session, error) {
		return sess, nil
	}
	rec := ts.do(t, http.MethodPost, "/api/session/password", clientID, map[string]string{
		"email":    "user@example.com",
		"password": "correct-horse",
		"location": "/login",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("sign in: expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	return decodeNavigation(t, rec)
}

func decodeNavigation(t *testing.T, rec *httptest.ResponseRecorder) navigationResponse {
	t.Helper()
	var resp navigationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode navigation: %v", err)
	}
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return resp
}

func navigateOf(resp navigationResponse) string {
	if resp.Navigate == nil {
		return ""
	}
	return *resp.Navigate
}

func confirmedSession(role string) *session.Session {
	return &session.Session{
		UserID:         uuid.New(),
		Email:          "user@example.com",
		EmailConfirmed: true,
		AccessToken:    "access-token",
		RefreshToken:   "refresh-token",
		ExpiresAt:      time.Now().Add(time.Hour),
		Metadata:       session.Metadata{Role: role},
	}
}
