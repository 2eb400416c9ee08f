package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"gridiron-hq/oracle/pkg/prompt"
	"gridiron-hq/oracle/pkg/relay"
	"gridiron-hq/oracle/pkg/roster"
)

// maxRequestBody bounds the decoded assist request body.
const maxRequestBody = 1 << 20 // 1MB

// AssistHandler serves the buffered and streaming assist endpoints.
type AssistHandler struct {
	engine *relay.Engine
	roster *roster.Store
	logger *slog.Logger
}

// NewAssistHandler creates an assist handler. roster may be nil, in which
// case payload enrichment is skipped.
func NewAssistHandler(engine *relay.Engine, store *roster.Store, logger *slog.Logger) *AssistHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssistHandler{
		engine: engine,
		roster: store,
		logger: logger.With("component", "api"),
	}
}

// Assist handles POST /v1/assist. It runs the session in buffered mode
// and returns exactly one JSON result.
func (h *AssistHandler) Assist(w http.ResponseWriter, r *http.Request) {
	call, week, ok := h.decode(w, r)
	if !ok {
		return
	}

	h.enrich(r.Context(), call, week)

	result, err := h.engine.Buffered(r.Context(), call)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AssistResponse{
		Answer:         result.Answer,
		ConversationID: result.ConversationID,
		MessageID:      result.MessageID,
		Usage:          result.Usage,
		DurationMs:     result.Duration.Milliseconds(),
	})
}

// AssistStream handles POST /v1/assist/stream. Frames are relayed to the
// caller as line-delimited JSON records as they arrive; the engine writes
// the terminal record itself.
func (h *AssistHandler) AssistStream(w http.ResponseWriter, r *http.Request) {
	call, week, ok := h.decode(w, r)
	if !ok {
		return
	}

	h.enrich(r.Context(), call, week)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")

	if err := h.engine.PassThrough(r.Context(), call, w); err != nil {
		var unknown *prompt.UnknownActionError
		if errors.As(err, &unknown) {
			// Nothing written yet; a plain 400 is still possible.
			writeBadRequest(w, unknown.Error())
			return
		}
		// Terminal error records are written by the engine. Close the
		// stream; there is nothing more to send.
		h.logger.Debug("streaming session ended with error", "error", err)
	}
}

// decode reads and validates the shared request body.
func (h *AssistHandler) decode(w http.ResponseWriter, r *http.Request) (relay.Call, int, bool) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{
			"error": map[string]any{
				"kind":    "method_not_allowed",
				"message": "use POST",
			},
		})
		return relay.Call{}, 0, false
	}

	var req AssistRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return relay.Call{}, 0, false
	}

	if req.Action == "" {
		writeBadRequest(w, "action is required")
		return relay.Call{}, 0, false
	}
	if !prompt.Known(req.Action) {
		writeBadRequest(w, (&prompt.UnknownActionError{Action: req.Action}).Error())
		return relay.Call{}, 0, false
	}
	if req.Payload == nil {
		req.Payload = map[string]any{}
	}

	user := req.User
	if user == "" {
		user = "anonymous"
	}

	return relay.Call{
		Action:         req.Action,
		Payload:        req.Payload,
		ConversationID: req.ConversationID,
		User:           user,
	}, req.Week, true
}

// enrich fills roster context into the payload. Enrichment failures are
// logged and ignored; the session proceeds with the payload as given.
func (h *AssistHandler) enrich(ctx context.Context, call relay.Call, week int) {
	if h.roster == nil {
		return
	}
	if err := h.roster.Enrich(ctx, call.Payload, week); err != nil {
		h.logger.Warn("roster enrichment failed", "action", call.Action, "error", err)
	}
}

// writeFailure maps a buffered session error to an HTTP response.
func (h *AssistHandler) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var unknown *prompt.UnknownActionError
	if errors.As(err, &unknown) {
		writeBadRequest(w, unknown.Error())
		return
	}

	var envelope *relay.Envelope
	if errors.As(err, &envelope) {
		if envelope.Kind == relay.KindCallerCancelled {
			// The caller is gone; nothing can be delivered.
			return
		}
		writeError(w, envelope)
		return
	}

	h.logger.Error("unclassified session failure",
		"path", r.URL.Path,
		"error", err,
	)
	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"error": map[string]any{
			"kind":    "internal",
			"message": "an internal error occurred",
		},
	})
}
