package api

import (
	"encoding/json"
	"net/http"

	"gridiron-hq/oracle/pkg/relay"
	"gridiron-hq/oracle/pkg/upstream"
)

// AssistRequest is the request body accepted by both assist endpoints.
type AssistRequest struct {
	// Action selects the draft-assistant operation to perform.
	Action string `json:"action"`

	// Payload carries the action-specific input data.
	Payload map[string]any `json:"payload"`

	// ConversationID continues an existing upstream conversation.
	ConversationID string `json:"conversation_id,omitempty"`

	// User identifies the end user for upstream attribution.
	User string `json:"user,omitempty"`

	// Week is the league week used for schedule enrichment, if known.
	Week int `json:"week,omitempty"`
}

// AssistResponse is the buffered endpoint's success body.
type AssistResponse struct {
	Answer         string          `json:"answer"`
	ConversationID string          `json:"conversation_id,omitempty"`
	MessageID      string          `json:"message_id,omitempty"`
	Usage          *upstream.Usage `json:"usage,omitempty"`
	DurationMs     int64           `json:"duration_ms"`
}

// errorResponse is the error body shape shared by all endpoints.
type errorResponse struct {
	Error *relay.Envelope `json:"error"`
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a classified error envelope with its HTTP status.
func writeError(w http.ResponseWriter, env *relay.Envelope) {
	writeJSON(w, env.Kind.HTTPStatus(), errorResponse{Error: env})
}

// writeBadRequest writes a 400 with a free-form message.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error": map[string]any{
			"kind":    "bad_request",
			"message": message,
		},
	})
}
