package api

import (
	"context"
	"net/http"
	"time"

	"gridiron-hq/oracle/pkg/roster"
)

// HealthHandler serves liveness checks.
type HealthHandler struct {
	roster *roster.Store
}

// NewHealthHandler creates a health handler. store may be nil.
func NewHealthHandler(store *roster.Store) *HealthHandler {
	return &HealthHandler{roster: store}
}

// ServeHTTP handles GET /healthz.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body := map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}

	if h.roster != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if n, err := h.roster.Count(ctx); err == nil {
			body["roster_players"] = n
		} else {
			body["status"] = "degraded"
			body["roster_error"] = err.Error()
		}
	}

	status := http.StatusOK
	if body["status"] != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, body)
}
