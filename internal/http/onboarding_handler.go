package http

import (
	"log/slog"
	"net/http"

	"gigbridge/internal/users"
)

// OnboardingHandler runs role selection and onboarding completion for the calling client.
type OnboardingHandler struct {
	users  *users.Service
	logger *slog.Logger
}

// NewOnboardingHandler creates a handler.
func NewOnboardingHandler(svc *users.Service, logger *slog.Logger) *OnboardingHandler {
	return &OnboardingHandler{users: svc, logger: logger}
}

type onboardingResponse struct {
	navigationResponse
	Record users.Record `json:"record"`
}

// SelectRole handles POST /api/onboarding/role.
func (h *OnboardingHandler) SelectRole(w http.ResponseWriter, r *http.Request) {
	client := ClientFromContext(r.Context())
	if client == nil {
		unknownClient(w)
		return
	}

	var payload struct {
		Role     string `json:"role"`
		Location string `json:"location"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	role, err := users.ParseRole(payload.Role)
	if err != nil {
		writeActionError(w, err, h.logger)
		return
	}

	sess, err := client.Sessions.Current(r.Context())
	if err != nil {
		writeActionError(w, err, h.logger)
		return
	}

	record, err := h.users.SelectRole(r.Context(), sess, role)
	if err != nil {
		writeActionError(w, err, h.logger)
		return
	}

	h.logger.Info("role selected", "client_id", client.ID, "user_id", record.ID, "role", record.Role)
	writeJSON(w, http.StatusOK, onboardingResponse{
		navigationResponse: resolveAfterAction(r, client, payload.Location, h.logger),
		Record:             record,
	})
}

// Complete handles POST /api/onboarding/complete. The body carries exactly one
// of the student or business profiles.
func (h *OnboardingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	client := ClientFromContext(r.Context())
	if client == nil {
		unknownClient(w)
		return
	}

	var payload struct {
		users.Profile
		Location string `json:"location"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	sess, err := client.Sessions.Current(r.Context())
	if err != nil {
		writeActionError(w, err, h.logger)
		return
	}

	record, err := h.users.CompleteOnboarding(r.Context(), sess, payload.Profile)
	if err != nil {
		writeActionError(w, err, h.logger)
		return
	}

	h.logger.Info("onboarding completed", "client_id", client.ID, "user_id", record.ID, "role", record.Role)
	writeJSON(w, http.StatusOK, onboardingResponse{
		navigationResponse: resolveAfterAction(r, client, payload.Location, h.logger),
		Record:             record,
	})
}
