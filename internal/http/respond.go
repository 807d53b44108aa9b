package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"gigbridge/internal/auth"
	"gigbridge/internal/navigation"
	"gigbridge/internal/users"
)

// Recovery hints tell the screen which follow-up action to offer after a failure.
const (
	recoveryRequestNewLink = "request_new_link"
	recoveryRetry          = "retry"
	recoverySignIn         = "sign_in"
)

const maxJSONBodyBytes int64 = 64 << 10

var errPayloadTooLarge = errors.New("payload too large")

type errorResponse struct {
	Error    string `json:"error"`
	Recovery string `json:"recovery,omitempty"`
}

// navigationResponse is the wire form of one resolution pass.
type navigationResponse struct {
	State     navigation.State `json:"state"`
	Role      users.Role       `json:"role,omitempty"`
	Navigate  *string          `json:"navigate"`
	SignedOut bool             `json:"signedOut"`
	LinkError string           `json:"linkError,omitempty"`
}

// newNavigationResponse renders out with the navigation the client has not
// collected yet, which may have been issued by a background pass.
func newNavigationResponse(out navigation.Outcome, mailbox *navigation.Mailbox) navigationResponse {
	resp := navigationResponse{
		State:     out.State,
		Role:      out.Role,
		SignedOut: out.SignedOut,
		LinkError: out.LinkError,
	}
	if route, ok := mailbox.Take(); ok {
		target := route.String()
		resp.Navigate = &target
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeRecoverableError(w http.ResponseWriter, status int, message, recovery string) {
	writeJSON(w, status, errorResponse{Error: message, Recovery: recovery})
}

// writeActionError maps a failed user action to a status, a message the screen
// can show and a recovery hint.
func writeActionError(w http.ResponseWriter, err error, logger *slog.Logger) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput), errors.Is(err, users.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeRecoverableError(w, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error(), recoveryRetry)
	case errors.Is(err, auth.ErrInvalidCode), errors.Is(err, auth.ErrInvalidToken):
		writeRecoverableError(w, http.StatusBadRequest, auth.ErrInvalidCode.Error(), recoveryRequestNewLink)
	case errors.Is(err, auth.ErrAccountExists):
		writeRecoverableError(w, http.StatusConflict, auth.ErrAccountExists.Error(), recoverySignIn)
	case errors.Is(err, users.ErrUnauthenticated):
		writeRecoverableError(w, http.StatusUnauthorized, "sign in to continue", recoverySignIn)
	case errors.Is(err, auth.ErrPermission), errors.Is(err, users.ErrPermission):
		writeRecoverableError(w, http.StatusForbidden, "access denied", recoverySignIn)
	case errors.Is(err, users.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, users.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrRejected):
		writeRecoverableError(w, http.StatusBadRequest, auth.ErrRejected.Error(), recoveryRetry)
	case errors.Is(err, auth.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "authentication is not available")
	case errors.Is(err, auth.ErrTransient):
		logger.Warn("auth service unavailable", "error", err)
		writeRecoverableError(w, http.StatusServiceUnavailable, "service temporarily unavailable, try again", recoveryRetry)
	default:
		logger.Error("action failed", "error", err)
		writeRecoverableError(w, http.StatusInternalServerError, "unexpected error", recoveryRetry)
	}
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	limited := http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	defer func() {
		_ = limited.Close()
	}()

	decoder := json.NewDecoder(limited)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("%w (max %d bytes)", errPayloadTooLarge, maxErr.Limit)
		}
		return err
	}
	return nil
}

func writeJSONError(w http.ResponseWriter, err error) {
	if errors.Is(err, errPayloadTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}
	// Return generic message to avoid leaking internal JSON parsing details
	writeError(w, http.StatusBadRequest, "invalid request body")
}
