package http

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"gigbridge/internal/auth"
	"gigbridge/internal/navigation"
)

// oauthStatePayload holds the CSRF state and optional redirect path.
type oauthStatePayload struct {
	State      string `json:"s"`
	RedirectTo string `json:"r,omitempty"`
}

// isValidRedirectPath validates that a path is a safe relative redirect.
// It prevents open redirect attacks by ensuring the path:
// - Starts with a single "/" (not "//")
// - Has no scheme or host component
// - Cannot be bypassed via URL encoding
func isValidRedirectPath(path string) bool {
	if path == "" {
		return false
	}

	// Decode to catch encoded bypass attempts like /%2f%2f
	decoded, err := url.QueryUnescape(path)
	if err != nil {
		return false
	}

	if !strings.HasPrefix(decoded, "/") || strings.HasPrefix(decoded, "//") {
		return false
	}

	parsed, err := url.Parse(decoded)
	if err != nil {
		return false
	}
	if parsed.Scheme != "" || parsed.Host != "" {
		return false
	}

	return true
}

const (
	oauthStateCookieName = "gigbridge_oauth_state"
	oauthStateCookieTTL  = 10 * time.Minute
)

// oauthProviders are the identity providers the auth service federates.
var oauthProviders = map[string]struct{}{
	"google":   {},
	"apple":    {},
	"linkedin": {},
}

type oauthStarter interface {
	AuthURL(state, provider, redirectTo string) string
}

// OAuthHandler runs the browser OAuth flow: it sends the user to the auth
// service and completes the sign-in when the provider redirects back.
type OAuthHandler struct {
	starter      oauthStarter
	authService  *auth.Service
	registry     clientRegistry
	logger       *slog.Logger
	secureCookie bool
	frontendURL  string
}

// NewOAuthHandler creates a new OAuthHandler.
func NewOAuthHandler(starter oauthStarter, authService *auth.Service, registry clientRegistry, frontendURL, env string, logger *slog.Logger) *OAuthHandler {
	return &OAuthHandler{
		starter:      starter,
		authService:  authService,
		registry:     registry,
		logger:       logger,
		secureCookie: !strings.EqualFold(env, "development"),
		frontendURL:  strings.TrimSuffix(frontendURL, "/"),
	}
}

// Initiate handles GET /api/auth/oauth/{provider}.
func (h *OAuthHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	provider := strings.ToLower(chi.URLParam(r, "provider"))
	if _, ok := oauthProviders[provider]; !ok {
		writeError(w, http.StatusNotFound, "unknown provider")
		return
	}

	state, err := auth.GenerateState()
	if err != nil {
		h.logger.Error("failed to generate state", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	payload := oauthStatePayload{State: state}
	if redirectTo := r.URL.Query().Get("redirectTo"); isValidRedirectPath(redirectTo) {
		payload.RedirectTo = redirectTo
	}

	// Encode state as base64 JSON to avoid delimiter issues
	stateJSON, _ := json.Marshal(payload)
	fullState := base64.RawURLEncoding.EncodeToString(stateJSON)

	authURL := h.starter.AuthURL(fullState, provider, "")
	if authURL == "" {
		writeError(w, http.StatusServiceUnavailable, "authentication is not available")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    state,
		Path:     "/api/auth",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(oauthStateCookieTTL.Seconds()),
	})

	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// Callback handles GET /api/auth/callback. The code is exchanged for a session
// in the browser's client, then the resolver picks the screen to land on.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(oauthStateCookieName)
	if err != nil {
		h.logger.Warn("oauth callback: missing state cookie")
		h.redirectWithError(w, r, "invalid_request", "Session expired. Please try again.")
		return
	}

	stateBytes, err := base64.RawURLEncoding.DecodeString(r.URL.Query().Get("state"))
	if err != nil {
		h.logger.Warn("oauth callback: invalid state encoding")
		h.redirectWithError(w, r, "invalid_request", "Invalid state. Please try again.")
		return
	}

	var statePayload oauthStatePayload
	if err := json.Unmarshal(stateBytes, &statePayload); err != nil {
		h.logger.Warn("oauth callback: invalid state JSON")
		h.redirectWithError(w, r, "invalid_request", "Invalid state. Please try again.")
		return
	}

	if subtle.ConstantTimeCompare([]byte(statePayload.State), []byte(stateCookie.Value)) != 1 {
		h.logger.Warn("oauth callback: state mismatch")
		h.redirectWithError(w, r, "invalid_request", "Invalid state. Please try again.")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    "",
		Path:     "/api/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Warn("oauth callback: provider error", "error", errParam)
		h.redirectWithError(w, r, errParam, r.URL.Query().Get("error_description"))
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.redirectWithError(w, r, "invalid_request", "Missing authorization code.")
		return
	}

	client, err := h.registry.Resume(r.Context(), clientIDFromRequest(r))
	if err != nil {
		h.logger.Warn("oauth callback: unknown client", "error", err)
		h.redirectWithError(w, r, "invalid_request", "Session expired. Please try again.")
		return
	}

	if _, err := h.authService.CompleteOAuth(r.Context(), client.Sessions, code); err != nil {
		if errors.Is(err, auth.ErrInvalidCode) {
			h.logger.Info("oauth callback: code rejected", "error", err)
			h.redirectWithError(w, r, navigation.LinkErrorExpired, "This sign-in link has expired.")
			return
		}
		h.logger.Error("oauth callback: exchange failed", "error", err)
		h.redirectWithError(w, r, navigation.LinkErrorFailed, "Failed to complete authentication.")
		return
	}

	h.logger.Info("oauth login successful", "client_id", client.ID)

	resp := resolveAfterAction(r, client, navigation.PathAuthCallback, h.logger)
	target := navigation.PathHome
	switch {
	case resp.Navigate != nil:
		target = *resp.Navigate
	case isValidRedirectPath(statePayload.RedirectTo):
		target = statePayload.RedirectTo
	}
	http.Redirect(w, r, h.frontendURL+target, http.StatusTemporaryRedirect)
}

// redirectWithError redirects to the login page with error details.
func (h *OAuthHandler) redirectWithError(w http.ResponseWriter, r *http.Request, code, message string) {
	target := h.frontendURL + navigation.PathLogin + "?error=" + url.QueryEscape(code)
	if message != "" {
		target += "&message=" + url.QueryEscape(message)
	}
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}
