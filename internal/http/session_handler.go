package http

import (
	"log/slog"
	"net/http"

	"gigbridge/internal/auth"
)

// SessionHandler runs the sign-in, sign-up and sign-out actions of the auth screens.
type SessionHandler struct {
	authService *auth.Service
	logger      *slog.Logger
}

// NewSessionHandler returns a handler wired with the auth service.
func NewSessionHandler(authService *auth.Service, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{authService: authService, logger: logger}
}

type sessionStatus struct {
	Authenticated  bool   `json:"authenticated"`
	SignedIn       bool   `json:"signedIn"`
	EmailConfirmed bool   `json:"emailConfirmed"`
	UserID         string `json:"userId,omitempty"`
	Email          string `json:"email,omitempty"`
	Role           string `json:"role,omitempty"`
}

type signUpResponse struct {
	navigationResponse
	ConfirmationSent bool `json:"confirmationSent"`
}

// Status handles GET /api/session.
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	client := ClientFromContext(r.Context())
	if client == nil {
		unknownClient(w)
		return
	}

	sess, err := client.Sessions.Current(r.Context())
	if err != nil {
		h.logger.Warn("load session failed", "client_id", client.ID, "error", err)
		writeRecoverableError(w, http.StatusServiceUnavailable, "session unavailable", recoveryRetry)
		return
	}

	status := sessionStatus{Authenticated: sess.Confirmed(), SignedIn: sess.Present()}
	if sess.Present() {
		status.EmailConfirmed = sess.EmailConfirmed
		status.UserID = sess.UserID.String()
		status.Email = sess.Email
		status.Role = sess.Metadata.Role
	}
	writeJSON(w, http.StatusOK, status)
}

// SignIn handles POST /api/session/password.
func (h *SessionHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	client := ClientFromContext(r.Context())
	if client == nil {
		unknownClient(w)
		return
	}

	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Location string `json:"location"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	if _, err := h.authService.SignIn(r.Context(), client.Sessions, payload.Email, payload.Password); err != nil {
		writeActionError(w, err, h.logger)
		return
	}

	h.logger.Info("password sign-in succeeded", "client_id", client.ID)
	writeJSON(w, http.StatusOK, resolveAfterAction(r, client, payload.Location, h.logger))
}

// SignUp handles POST /api/session/signup. When the backend requires email
// confirmation no session is established and the client stays on the auth screens.
func (h *SessionHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	client := ClientFromContext(r.Context())
	if client == nil {
		unknownClient(w)
		return
	}

	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
		Location string `json:"location"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	result, err := h.authService.Register(r.Context(), client.Sessions, auth.SignUpInput{
		Email:    payload.Email,
		Password: payload.Password,
		Role:     payload.Role,
	})
	if err != nil {
		writeActionError(w, err, h.logger)
		return
	}

	h.logger.Info("sign-up succeeded", "client_id", client.ID, "confirmation_sent", result.ConfirmationSent)
	writeJSON(w, http.StatusCreated, signUpResponse{
		navigationResponse: resolveAfterAction(r, client, payload.Location, h.logger),
		ConfirmationSent:   result.ConfirmationSent,
	})
}

// SignOut handles DELETE /api/session. The local session is always cleared.
func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	client := ClientFromContext(r.Context())
	if client == nil {
		unknownClient(w)
		return
	}

	if err := client.Sessions.SignOut(r.Context()); err != nil {
		h.logger.Error("sign-out failed", "client_id", client.ID, "error", err)
		writeRecoverableError(w, http.StatusInternalServerError, "failed to sign out", recoveryRetry)
		return
	}

	writeJSON(w, http.StatusOK, resolveAfterAction(r, client, r.URL.Query().Get("location"), h.logger))
}
