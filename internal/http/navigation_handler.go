package http

import (
	"log/slog"
	"net/http"
	"strings"

	"gigbridge/internal/clients"
	"gigbridge/internal/deeplink"
	"gigbridge/internal/navigation"
)

// NavigationHandler exposes the resolver of the calling client.
type NavigationHandler struct {
	logger *slog.Logger
}

// NewNavigationHandler creates a new NavigationHandler.
func NewNavigationHandler(logger *slog.Logger) *NavigationHandler {
	return &NavigationHandler{logger: logger}
}

// Resolve handles POST /api/navigation/resolve. The body names the screen the
// client is on.
func (h *NavigationHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	client := ClientFromContext(r.Context())
	if client == nil {
		unknownClient(w)
		return
	}

	var payload struct {
		Location string `json:"location"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	h.resolve(w, r, navigation.ParseLocation(payload.Location))
}

// DeepLink handles POST /api/navigation/deeplink. The link is queued and a pass
// runs at the reported location.
func (h *NavigationHandler) DeepLink(w http.ResponseWriter, r *http.Request) {
	client := ClientFromContext(r.Context())
	if client == nil {
		unknownClient(w)
		return
	}

	var payload struct {
		URL      string `json:"url"`
		Location string `json:"location"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}
	if strings.TrimSpace(payload.URL) == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	intent := client.Resolver.OnDeepLink(payload.URL)
	if intent.Kind == deeplink.KindNone {
		h.logger.Debug("deep link ignored", "client_id", client.ID)
	}

	loc := navigation.ParseLocation(payload.Location)
	if !loc.Known() {
		loc = navigation.ParseLocation(navigation.PathAuthCallback)
	}
	h.resolve(w, r, loc)
}

// Pending handles GET /api/navigation and returns any navigation issued since
// the client last asked, typically by a background pass after a session change.
func (h *NavigationHandler) Pending(w http.ResponseWriter, r *http.Request) {
	client := ClientFromContext(r.Context())
	if client == nil {
		unknownClient(w)
		return
	}

	resp := map[string]any{"navigate": nil}
	if route, ok := client.Mailbox.Take(); ok {
		resp["navigate"] = route.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *NavigationHandler) resolve(w http.ResponseWriter, r *http.Request, loc navigation.Location) {
	client := ClientFromContext(r.Context())
	out, err := client.Resolver.ResolveAndNavigate(r.Context(), loc)
	if err != nil {
		// Deferred passes leave the client in place; the next pass retries.
		h.logger.Debug("resolution deferred", "client_id", client.ID, "error", err)
	}
	writeJSON(w, http.StatusOK, newNavigationResponse(out, client.Mailbox))
}

// resolveAfterAction hands control back to the resolver once a user action has
// changed the session or the user record. An empty location means the screen
// the client last reported.
func resolveAfterAction(r *http.Request, client *clients.Client, rawLocation string, logger *slog.Logger) navigationResponse {
	var (
		out navigation.Outcome
		err error
	)
	if loc := navigation.ParseLocation(rawLocation); loc.Known() {
		out, err = client.Resolver.ResolveAndNavigate(r.Context(), loc)
	} else {
		out, err = client.Resolver.ResolveCurrent(r.Context())
	}
	if err != nil {
		logger.Warn("resolution after action deferred", "client_id", client.ID, "error", err)
	}
	return newNavigationResponse(out, client.Mailbox)
}
