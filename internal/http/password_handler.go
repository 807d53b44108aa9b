package http

import (
	"errors"
	"log/slog"
	"net/http"

	"gigbridge/internal/auth"
	"gigbridge/internal/navigation"
)

// PasswordHandler serves the forgot-password and reset-password screens.
type PasswordHandler struct {
	authService *auth.Service
	logger      *slog.Logger
}

// NewPasswordHandler creates a new PasswordHandler.
func NewPasswordHandler(authService *auth.Service, logger *slog.Logger) *PasswordHandler {
	return &PasswordHandler{authService: authService, logger: logger}
}

// Forgot handles POST /api/password/forgot. Unknown addresses are not revealed.
func (h *PasswordHandler) Forgot(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	if err := h.authService.ForgotPassword(r.Context(), payload.Email); err != nil {
		if !errors.Is(err, auth.ErrRejected) {
			writeActionError(w, err, h.logger)
			return
		}
		h.logger.Info("recovery request rejected by auth service", "error", err)
	}
	w.WriteHeader(http.StatusAccepted)
}

// Reset handles POST /api/password/reset with the code from the recovery link.
func (h *PasswordHandler) Reset(w http.ResponseWriter, r *http.Request) {
	client := ClientFromContext(r.Context())
	if client == nil {
		unknownClient(w)
		return
	}

	var payload struct {
		Code     string `json:"code"`
		Password string `json:"password"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	if _, err := h.authService.ResetPassword(r.Context(), client.Sessions, payload.Code, payload.Password); err != nil {
		writeActionError(w, err, h.logger)
		return
	}

	h.logger.Info("password reset completed", "client_id", client.ID)
	// The code is spent; resolving at the bare reset screen moves the client on.
	writeJSON(w, http.StatusOK, resolveAfterAction(r, client, navigation.PathResetPassword, h.logger))
}
