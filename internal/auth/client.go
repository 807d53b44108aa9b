package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gigbridge/internal/session"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// IDTokenVerifier checks an OpenID Connect id_token and reports whether the email is verified.
type IDTokenVerifier interface {
	EmailVerified(ctx context.Context, rawIDToken string) (bool, error)
}

// Client talks to the backend auth service: OAuth endpoints through x/oauth2
// and the remaining account operations over its JSON REST API.
type Client struct {
	baseURL    string
	clientID   string
	oauth      *oauth2.Config
	tokens     *TokenVerifier
	idTokens   IDTokenVerifier
	httpClient *http.Client
}

// Option configures the Client during construction.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for every backend call.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRedirectURL sets the OAuth redirect URL registered with the backend.
func WithRedirectURL(redirectURL string) Option {
	return func(c *Client) {
		c.oauth.RedirectURL = redirectURL
	}
}

// WithIDTokenVerifier enables id_token verification on token responses.
func WithIDTokenVerifier(v IDTokenVerifier) Option {
	return func(c *Client) {
		c.idTokens = v
		c.oauth.Scopes = []string{oidc.ScopeOpenID, "email", "profile"}
	}
}

// NewClient constructs a Client for the auth service at baseURL.
func NewClient(baseURL, clientID, clientSecret string, tokens *TokenVerifier, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: base URL is empty", ErrNotConfigured)
	}
	if tokens == nil {
		return nil, fmt.Errorf("%w: token verifier is required", ErrNotConfigured)
	}

	c := &Client{
		baseURL:  baseURL,
		clientID: clientID,
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   baseURL + "/authorize",
				TokenURL:  baseURL + "/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AuthURL returns the URL that starts an OAuth sign-in with the named provider.
func (c *Client) AuthURL(state, provider, redirectTo string) string {
	opts := []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("provider", provider)}
	if redirectTo != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_to", redirectTo))
	}
	return c.oauth.AuthCodeURL(state, opts...)
}

// ExchangeAuthCode trades an OAuth or email-link code for a session.
func (c *Client) ExchangeAuthCode(ctx context.Context, code string) (*session.Session, error) {
	token, err := c.oauth.Exchange(c.oauthContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", classify(err, ErrInvalidCode))
	}
	return c.sessionFromToken(ctx, token)
}

// PasswordSignIn authenticates with an email and password.
func (c *Client) PasswordSignIn(ctx context.Context, email, password string) (*session.Session, error) {
	token, err := c.oauth.PasswordCredentialsToken(c.oauthContext(ctx), email, password)
	if err != nil {
		return nil, fmt.Errorf("password sign-in: %w", classify(err, ErrInvalidCredentials))
	}
	return c.sessionFromToken(ctx, token)
}

// Refresh exchanges a refresh token for a new session. A refused refresh token
// is reported as session.ErrRefreshRejected.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*session.Session, error) {
	src := c.oauth.TokenSource(c.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		classified := classify(err, ErrInvalidCode)
		if errors.Is(classified, ErrInvalidCode) || errors.Is(classified, ErrPermission) {
			return nil, fmt.Errorf("%w: %w", session.ErrRefreshRejected, classified)
		}
		return nil, fmt.Errorf("refresh session: %w", classified)
	}
	return c.sessionFromToken(ctx, token)
}

// SessionFromTokens verifies tokens delivered directly in a deep link.
func (c *Client) SessionFromTokens(_ context.Context, accessToken, refreshToken string) (*session.Session, error) {
	return c.tokens.Session(accessToken, refreshToken)
}

// VerifyRecoveryCode consumes a password-recovery code and returns the session it authorizes.
func (c *Client) VerifyRecoveryCode(ctx context.Context, code string) (*session.Session, error) {
	var resp tokenResponse
	body := map[string]string{"type": "recovery", "token_hash": code}
	if err := c.doJSON(ctx, http.MethodPost, "/verify", "", body, &resp); err != nil {
		return nil, fmt.Errorf("verify recovery code: %w", classify(err, ErrInvalidCode))
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("verify recovery code: %w: no session returned", ErrInvalidCode)
	}
	return c.tokens.Session(resp.AccessToken, resp.RefreshToken)
}

// SignUpResult is the outcome of a registration. Session is nil when the
// backend requires email confirmation first.
type SignUpResult struct {
	Session          *session.Session
	ConfirmationSent bool
}

// SignUp registers an account and records role in its user metadata.
func (c *Client) SignUp(ctx context.Context, email, password, role, redirectTo string) (SignUpResult, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]string{"role": role},
	}
	path := "/signup"
	if redirectTo != "" {
		path += "?" + url.Values{"redirect_to": {redirectTo}}.Encode()
	}

	var resp tokenResponse
	if err := c.doJSON(ctx, http.MethodPost, path, "", body, &resp); err != nil {
		var se *statusError
		if errors.As(err, &se) && (se.Status == http.StatusConflict || se.Status == http.StatusUnprocessableEntity) {
			return SignUpResult{}, fmt.Errorf("sign up: %w", ErrAccountExists)
		}
		return SignUpResult{}, fmt.Errorf("sign up: %w", classify(err, ErrRejected))
	}

	if resp.AccessToken == "" {
		return SignUpResult{ConfirmationSent: true}, nil
	}
	sess, err := c.tokens.Session(resp.AccessToken, resp.RefreshToken)
	if err != nil {
		return SignUpResult{}, err
	}
	return SignUpResult{Session: sess, ConfirmationSent: !sess.EmailConfirmed}, nil
}

// RequestPasswordReset asks the backend to email a recovery link.
func (c *Client) RequestPasswordReset(ctx context.Context, email, redirectTo string) error {
	path := "/recover"
	if redirectTo != "" {
		path += "?" + url.Values{"redirect_to": {redirectTo}}.Encode()
	}
	if err := c.doJSON(ctx, http.MethodPost, path, "", map[string]string{"email": email}, nil); err != nil {
		return fmt.Errorf("request password reset: %w", classify(err, ErrRejected))
	}
	return nil
}

// UpdatePassword sets a new password for the user the access token belongs to.
func (c *Client) UpdatePassword(ctx context.Context, accessToken, password string) error {
	if err := c.doJSON(ctx, http.MethodPut, "/user", accessToken, map[string]string{"password": password}, nil); err != nil {
		return fmt.Errorf("update password: %w", classify(err, ErrRejected))
	}
	return nil
}

// SignOut revokes the session's refresh tokens. Sessions the backend no longer knows are treated as signed out.
func (c *Client) SignOut(ctx context.Context, s *session.Session) error {
	if !s.Present() || s.AccessToken == "" {
		return nil
	}
	err := c.doJSON(ctx, http.MethodPost, "/logout", s.AccessToken, nil, nil)
	var se *statusError
	if errors.As(err, &se) && (se.Status == http.StatusUnauthorized || se.Status == http.StatusNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("sign out: %w", classify(err, ErrRejected))
	}
	return nil
}

func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func (c *Client) sessionFromToken(ctx context.Context, token *oauth2.Token) (*session.Session, error) {
	sess, err := c.tokens.Session(token.AccessToken, token.RefreshToken)
	if err != nil {
		return nil, err
	}
	if !token.Expiry.IsZero() {
		sess.ExpiresAt = token.Expiry
	}

	if c.idTokens != nil {
		if raw, ok := token.Extra("id_token").(string); ok && raw != "" {
			verified, err := c.idTokens.EmailVerified(ctx, raw)
			if err != nil {
				return nil, fmt.Errorf("%w: id_token: %w", ErrInvalidToken, err)
			}
			sess.EmailConfirmed = verified
		}
	}
	return sess, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

type errorResponse struct {
	Code        string `json:"error"`
	ErrorCode   string `json:"error_code"`
	Description string `json:"error_description"`
	Message     string `json:"msg"`
}

func (c *Client) doJSON(ctx context.Context, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.clientID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call auth service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload errorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload)
		code := payload.ErrorCode
		if code == "" {
			code = payload.Code
		}
		msg := payload.Description
		if msg == "" {
			msg = payload.Message
		}
		return &statusError{Status: resp.StatusCode, Code: code, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode auth service response: %w", err)
	}
	return nil
}

// oidcIDTokens adapts a go-oidc verifier to IDTokenVerifier.
type oidcIDTokens struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers issuer and returns an IDTokenVerifier for clientID.
func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (IDTokenVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc provider: %w", err)
	}
	return oidcIDTokens{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

func (o oidcIDTokens) EmailVerified(ctx context.Context, rawIDToken string) (bool, error) {
	idToken, err := o.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return false, fmt.Errorf("verify id_token: %w", err)
	}
	var claims struct {
		EmailVerified bool `json:"email_verified"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return false, fmt.Errorf("parse claims: %w", err)
	}
	return claims.EmailVerified, nil
}
