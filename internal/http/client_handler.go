package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	clientCookieName = "gigbridge_client"
	clientCookieTTL  = 30 * 24 * time.Hour
)

// ClientHandler opens and closes client instances.
type ClientHandler struct {
	registry     clientRegistry
	logger       *slog.Logger
	secureCookie bool
}

// NewClientHandler creates a new ClientHandler.
func NewClientHandler(registry clientRegistry, env string, logger *slog.Logger) *ClientHandler {
	return &ClientHandler{
		registry:     registry,
		logger:       logger,
		secureCookie: !strings.EqualFold(env, "development"),
	}
}

// Open handles POST /api/clients. Apps call it once at start and send the
// returned id on every later request.
func (h *ClientHandler) Open(w http.ResponseWriter, r *http.Request) {
	client := h.registry.Open()
	http.SetCookie(w, h.cookie(client.ID, clientCookieTTL))
	writeJSON(w, http.StatusCreated, map[string]any{"clientId": client.ID})
}

// Close handles DELETE /api/clients/current.
func (h *ClientHandler) Close(w http.ResponseWriter, r *http.Request) {
	client := ClientFromContext(r.Context())
	if client == nil {
		unknownClient(w)
		return
	}
	h.registry.Close(client.ID)

	clearCookie := h.cookie("", 0)
	clearCookie.MaxAge = -1
	clearCookie.Expires = time.Unix(0, 0)
	http.SetCookie(w, clearCookie)
	w.WriteHeader(http.StatusNoContent)
}

func (h *ClientHandler) cookie(value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     clientCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.secureCookie,
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
	}
}
