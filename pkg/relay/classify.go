package relay

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"

	"gridiron-hq/oracle/pkg/upstream"
)

// Kind is the closed classification of session failures. Operators use it
// to tell "our code is broken" from "the network is broken" from "the user
// gave up".
type Kind string

const (
	// KindTimeout means the connect watchdog or overall deadline fired.
	KindTimeout Kind = "timeout"

	// KindCallerCancelled means the requester disconnected. Internal
	// only: it is never surfaced as an error to a party that is no
	// longer listening.
	KindCallerCancelled Kind = "caller_cancelled"

	// KindBadUpstreamStatus means preflight rejected the response.
	KindBadUpstreamStatus Kind = "bad_upstream_status"

	// KindUpstreamError means the remote service reported a failure
	// inside a well-formed stream.
	KindUpstreamError Kind = "upstream_error"

	// KindInvalidConversation means the continuation id was rejected.
	KindInvalidConversation Kind = "invalid_conversation"

	// KindFetchError means a low-level transport failure: DNS,
	// connection refused, TLS.
	KindFetchError Kind = "fetch_error"

	// KindParseError means a frame corrupted consumer state. Ordinary
	// decode failures are absorbed by the parser and never reach here.
	KindParseError Kind = "parse_error"

	// KindBufferOverflow means an accumulation buffer exceeded its
	// configured bound.
	KindBufferOverflow Kind = "buffer_overflow"
)

// HTTPStatus returns the HTTP-equivalent status for blocking-style
// callers. caller_cancelled uses the conventional 499 and appears only in
// logs and metrics, never on the wire.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindCallerCancelled:
		return 499
	case KindInvalidConversation:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

// Envelope is the single error value produced for a failed session. It is
// created exactly once and never mutated afterwards.
type Envelope struct {
	// Kind is the failure classification.
	Kind Kind `json:"kind"`

	// Message is the human-readable detail.
	Message string `json:"message"`

	// UpstreamStatus is the upstream-supplied status, when known.
	UpstreamStatus int `json:"upstream_status,omitempty"`

	// UpstreamCode is the upstream-supplied code, when known.
	UpstreamCode string `json:"upstream_code,omitempty"`

	// CallerFault reports whether the failure is the caller's fault and
	// therefore not transient. Retrying a caller-fault failure with the
	// same inputs cannot succeed.
	CallerFault bool `json:"-"`
}

// Error implements the error interface.
func (e *Envelope) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Classify maps a session failure into the closed taxonomy. The abort
// reason is inspected first: the token's terminal state overrides whatever
// error the unwinding read loop happened to surface, which is what removes
// the need for scattered "client aborted, don't log" flags.
func Classify(err error, reason AbortReason) *Envelope {
	switch reason {
	case ReasonTimeout:
		return &Envelope{
			Kind:    KindTimeout,
			Message: "session deadline exceeded before the upstream stream completed",
		}
	case ReasonCallerGone:
		return &Envelope{
			Kind:    KindCallerCancelled,
			Message: "caller disconnected before the session completed",
		}
	}

	var badStatus *upstream.BadStatusError
	if errors.As(err, &badStatus) {
		return &Envelope{
			Kind:           KindBadUpstreamStatus,
			Message:        badStatus.Error(),
			UpstreamStatus: badStatus.StatusCode,
		}
	}

	var invalidConv *upstream.InvalidConversationError
	if errors.As(err, &invalidConv) {
		return &Envelope{
			Kind:        KindInvalidConversation,
			Message:     invalidConv.Error(),
			CallerFault: true,
		}
	}

	var remote *upstream.RemoteError
	if errors.As(err, &remote) {
		return &Envelope{
			Kind:           KindUpstreamError,
			Message:        remote.Message,
			UpstreamStatus: remote.Status,
			UpstreamCode:   remote.Code,
		}
	}

	var overflow *upstream.OverflowError
	if errors.As(err, &overflow) {
		return &Envelope{
			Kind:    KindBufferOverflow,
			Message: overflow.Error(),
		}
	}

	var parse *upstream.ParseError
	if errors.As(err, &parse) {
		return &Envelope{
			Kind:    KindParseError,
			Message: parse.Error(),
		}
	}

	// Bare context errors can reach here when cancellation raced the
	// token transition.
	if errors.Is(err, context.DeadlineExceeded) {
		return &Envelope{
			Kind:    KindTimeout,
			Message: "session deadline exceeded",
		}
	}
	if errors.Is(err, context.Canceled) {
		return &Envelope{
			Kind:    KindCallerCancelled,
			Message: "caller disconnected",
		}
	}

	var fetch *upstream.FetchError
	if errors.As(err, &fetch) {
		return &Envelope{
			Kind:    KindFetchError,
			Message: fetch.Error(),
		}
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return &Envelope{
			Kind:    KindFetchError,
			Message: err.Error(),
		}
	}

	// Anything unrecognized is treated as a transport-level failure;
	// every protocol- and policy-level cause is enumerated above.
	return &Envelope{
		Kind:    KindFetchError,
		Message: err.Error(),
	}
}
