// Package upstreamtest provides a mock chat service for testing the
// upstream client, relay engine, and API handlers.
package upstreamtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockServer is a mock HTTP server simulating the hosted chat service.
// It serves SSE streams, error bodies, and slow responses.
type MockServer struct {
	server       *httptest.Server
	responses    map[string]MockResponse
	requestCount int
	lastBody     []byte
	mu           sync.Mutex
}

// MockResponse defines a mock response configuration.
type MockResponse struct {
	StatusCode   int
	ContentType  string
	Body         any
	Delay        time.Duration
	StreamEvents []string // Raw SSE data payloads, sent in order
	ChunkDelay   time.Duration
	OmitDone     bool // Skip the trailing [DONE] marker
}

// NewMockServer creates a new mock server.
func NewMockServer() *MockServer {
	ms := &MockServer{
		responses: make(map[string]MockResponse),
	}
	ms.server = httptest.NewServer(http.HandlerFunc(ms.handler))
	return ms
}

// URL returns the mock server's base URL.
func (ms *MockServer) URL() string {
	return ms.server.URL
}

// Close closes the mock server.
func (ms *MockServer) Close() {
	ms.server.Close()
}

// SetResponse sets a mock response for a specific endpoint.
func (ms *MockServer) SetResponse(path string, response MockResponse) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.responses[path] = response
}

// RequestCount returns the number of requests received.
func (ms *MockServer) RequestCount() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.requestCount
}

// LastBody returns the most recent request body received.
func (ms *MockServer) LastBody() []byte {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.lastBody
}

func (ms *MockServer) handler(w http.ResponseWriter, r *http.Request) {
	body := make([]byte, 0)
	if r.Body != nil {
		buf := make([]byte, 64*1024)
		for {
			n, err := r.Body.Read(buf)
			if n > 0 {
				body = append(body, buf[:n]...)
			}
			if err != nil {
				break
			}
		}
	}

	ms.mu.Lock()
	ms.requestCount++
	ms.lastBody = body
	response, ok := ms.responses[r.URL.Path]
	ms.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	if response.Delay > 0 {
		time.Sleep(response.Delay)
	}

	if len(response.StreamEvents) > 0 {
		ms.handleStream(w, response)
		return
	}

	contentType := response.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)

	status := response.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	if response.Body != nil {
		switch v := response.Body.(type) {
		case string:
			_, _ = w.Write([]byte(v))
		case []byte:
			_, _ = w.Write(v)
		default:
			_ = json.NewEncoder(w).Encode(response.Body)
		}
	}
}

// handleStream serves an SSE response one event at a time.
func (ms *MockServer) handleStream(w http.ResponseWriter, response MockResponse) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	for _, event := range response.StreamEvents {
		fmt.Fprintf(w, "data: %s\n\n", event)
		flusher.Flush()
		if response.ChunkDelay > 0 {
			time.Sleep(response.ChunkDelay)
		}
	}

	if !response.OmitDone {
		fmt.Fprintf(w, "data: [DONE]\n\n")
		flusher.Flush()
	}
}

// MessageEvent builds a message event payload with a text delta.
func MessageEvent(answer, conversationID, messageID string) string {
	payload := map[string]any{
		"event":           "message",
		"answer":          answer,
		"conversation_id": conversationID,
		"message_id":      messageID,
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

// AgentMessageEvent builds an agent_message event payload.
func AgentMessageEvent(answer, conversationID, messageID string) string {
	payload := map[string]any{
		"event":           "agent_message",
		"answer":          answer,
		"conversation_id": conversationID,
		"message_id":      messageID,
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

// ThoughtEvent builds an agent_thought event payload.
func ThoughtEvent(thought string) string {
	payload := map[string]any{
		"event":   "agent_thought",
		"thought": thought,
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

// EndEvent builds a message_end event payload with token usage.
func EndEvent(conversationID, messageID string, promptTokens, completionTokens int) string {
	payload := map[string]any{
		"event":           "message_end",
		"conversation_id": conversationID,
		"message_id":      messageID,
		"metadata": map[string]any{
			"usage": map[string]any{
				"prompt_tokens":     promptTokens,
				"completion_tokens": completionTokens,
				"total_tokens":      promptTokens + completionTokens,
			},
		},
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

// ErrorEvent builds an error event payload.
func ErrorEvent(code, message string, status int) string {
	payload := map[string]any{
		"event":   "error",
		"code":    code,
		"message": message,
		"status":  status,
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

// PingEvent builds a ping event payload.
func PingEvent() string {
	b, _ := json.Marshal(map[string]any{"event": "ping"})
	return string(b)
}
