package upstream

import (
	"fmt"
)

// BadStatusError indicates that the preflight check rejected the upstream
// response before any frames were consumed: either the status code was not
// a success or the declared content type was not an event stream.
//
// Preview holds a bounded prefix of the response body read for diagnostic
// purposes; it is what distinguishes "upstream sent an error as plain JSON"
// from "upstream sent a real stream".
type BadStatusError struct {
	// StatusCode is the HTTP status code of the rejected response.
	StatusCode int

	// ContentType is the declared Content-Type of the rejected response.
	ContentType string

	// Preview is a bounded prefix of the response body (at most
	// previewLimit bytes).
	Preview string
}

// Error implements the error interface.
func (e *BadStatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d with content type %q: %s",
		e.StatusCode, e.ContentType, e.Preview)
}

// FetchError indicates a low-level transport failure before or during the
// upstream exchange: DNS resolution, connection refused, TLS handshake.
type FetchError struct {
	// URL is the upstream endpoint that could not be reached.
	URL string

	// Cause is the underlying transport error.
	Cause error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("upstream request to %s failed: %v", e.URL, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// RemoteError indicates that the remote service reported a failure inside
// a well-formed stream, via an explicit "error" event.
type RemoteError struct {
	// Status is the upstream-supplied HTTP-equivalent status, if any.
	Status int

	// Code is the upstream-supplied machine-readable code, if any.
	Code string

	// Message is the upstream-supplied error message.
	Message string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("upstream error %q: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("upstream error: %s", e.Message)
}

// InvalidConversationError indicates that the continuation id supplied with
// the request was rejected by the remote service.
type InvalidConversationError struct {
	// ConversationID is the rejected continuation id.
	ConversationID string

	// Message is the upstream-supplied detail, if any.
	Message string
}

// Error implements the error interface.
func (e *InvalidConversationError) Error() string {
	return fmt.Sprintf("conversation %q rejected by upstream: %s", e.ConversationID, e.Message)
}

// ParseError indicates that a frame payload could not be decoded. The frame
// parser absorbs these locally by passing raw text through; ParseError is
// surfaced only when a malformed payload corrupts consumer state.
type ParseError struct {
	// Raw is the payload that failed to decode.
	Raw string

	// Cause is the underlying decode error.
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("frame payload parse error: %v", e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// OverflowError indicates that an accumulation buffer exceeded its
// configured bound. The session is failed rather than allowing unbounded
// growth.
type OverflowError struct {
	// Limit is the configured maximum in bytes.
	Limit int

	// Size is the size the buffer would have reached.
	Size int
}

// Error implements the error interface.
func (e *OverflowError) Error() string {
	return fmt.Sprintf("stream buffer overflow: %d bytes exceeds limit of %d", e.Size, e.Limit)
}
