package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"
)

const (
	// chatPath is the chat-messages endpoint on the upstream service.
	chatPath = "/chat-messages"

	// previewLimit bounds how much of a rejected response body is read
	// for diagnostics.
	previewLimit = 512

	// eventStreamType is the content type a streaming response must
	// declare to pass preflight.
	eventStreamType = "text/event-stream"
)

// ClientConfig contains configuration for the upstream client.
type ClientConfig struct {
	// BaseURL is the base URL of the chat service API.
	BaseURL string

	// APIKey is the bearer credential sent with every request.
	APIKey string

	// MaxIdleConns is the connection pool size.
	// Default: 20
	MaxIdleConns int

	// MaxIdleConnsPerHost is the per-host connection pool size.
	// Default: 10
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept.
	// Default: 90s
	IdleConnTimeout time.Duration
}

// Client owns the outbound connection to the chat service. It issues a
// single streaming POST per session and validates the response before any
// frames are consumed. It never retries; failure is surfaced once.
type Client struct {
	config ClientConfig
	client *http.Client
	logger *slog.Logger
}

// NewClient creates a client with a pooled transport. The HTTP client
// carries no overall timeout of its own: session deadlines are enforced
// through the request context by the cancellation controller.
func NewClient(config ClientConfig) *Client {
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 20
	}
	if config.MaxIdleConnsPerHost == 0 {
		config.MaxIdleConnsPerHost = 10
	}
	if config.IdleConnTimeout == 0 {
		config.IdleConnTimeout = 90 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &Client{
		config: config,
		client: &http.Client{Transport: transport},
		logger: slog.Default().With("component", "upstream.client"),
	}
}

// Stream is a byte-producing handle over an open upstream response. It is
// consumed by the frame parser and must be closed when the session ends.
type Stream struct {
	body io.ReadCloser
}

// Read implements io.Reader over the upstream response body. It unblocks
// with an error when the request context is cancelled, so all cancellation
// triggers are observable from inside the blocking read.
func (s *Stream) Read(p []byte) (int, error) {
	return s.body.Read(p)
}

// Close releases the underlying connection.
func (s *Stream) Close() error {
	return s.body.Close()
}

// OpenStream issues the streaming POST and returns a byte-producing handle
// after the response passes preflight, or a classified failure before any
// bytes are consumed.
//
// Preflight is mandatory: the status must indicate success and the declared
// content type must be an event stream. Anything else is rejected with a
// bounded body preview so the caller can tell an error document apart from
// a real stream.
func (c *Client) OpenStream(ctx context.Context, chatReq *ChatRequest) (*Stream, error) {
	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	url := strings.TrimSuffix(c.config.BaseURL, "/") + chatPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", eventStreamType)
	req.Header.Set("Cache-Control", "no-cache")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	c.logger.Debug("opening upstream stream",
		"url", url,
		"body_bytes", len(body),
		"continuation", chatReq.ConversationID != "",
	)

	resp, err := c.client.Do(req)
	if err != nil {
		// Context cancellation belongs to the controller, not the
		// transport; surface it unwrapped so the caller can classify
		// by abort reason.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &FetchError{URL: url, Cause: err}
	}

	if perr := preflight(resp, chatReq.ConversationID); perr != nil {
		return nil, perr
	}

	return &Stream{body: resp.Body}, nil
}

// preflight validates status and content type before streaming begins. On
// rejection it drains a bounded preview, closes the body, and returns the
// classified failure.
func preflight(resp *http.Response, conversationID string) error {
	contentType := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 && mediaType == eventStreamType {
		return nil
	}

	preview, _ := io.ReadAll(io.LimitReader(resp.Body, previewLimit))
	resp.Body.Close()

	// A 404 on a continued conversation means the remote service no
	// longer knows the conversation id.
	if resp.StatusCode == http.StatusNotFound && conversationID != "" &&
		strings.Contains(strings.ToLower(string(preview)), "conversation") {
		return &InvalidConversationError{
			ConversationID: conversationID,
			Message:        string(preview),
		}
	}

	return &BadStatusError{
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Preview:     string(preview),
	}
}
