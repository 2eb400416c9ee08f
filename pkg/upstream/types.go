package upstream

import "encoding/json"

// Response modes accepted by the chat service.
const (
	// ResponseModeStreaming requests an event-stream response.
	ResponseModeStreaming = "streaming"

	// ResponseModeBlocking requests a single JSON document response.
	ResponseModeBlocking = "blocking"
)

// Event types carried by upstream frames.
const (
	// EventMessage carries an answer text delta.
	EventMessage = "message"

	// EventAgentMessage carries an answer text delta from an agent turn.
	EventAgentMessage = "agent_message"

	// EventAgentThought carries internal reasoning text.
	EventAgentThought = "agent_thought"

	// EventMessageEnd terminates a successful stream and carries metadata.
	EventMessageEnd = "message_end"

	// EventError reports a failure inside a well-formed stream.
	EventError = "error"

	// EventPing is a keep-alive from the remote service.
	EventPing = "ping"
)

// CodeConversationNotExists is the upstream error code for a rejected
// continuation id.
const CodeConversationNotExists = "conversation_not_exists"

// ChatRequest is the JSON body of the outbound chat-messages call.
type ChatRequest struct {
	// Query is the prompt text built for the requested action.
	Query string `json:"query"`

	// Inputs is the structured-inputs object accompanying the query.
	Inputs map[string]any `json:"inputs"`

	// ResponseMode selects streaming or blocking delivery.
	ResponseMode string `json:"response_mode"`

	// ConversationID continues an existing conversation when set.
	ConversationID string `json:"conversation_id,omitempty"`

	// User identifies the end user on whose behalf the call is made.
	User string `json:"user"`
}

// Frame is one parsed protocol unit from the upstream event stream.
//
// When the payload decoded as JSON, Data holds it and Text is empty. When
// decoding failed, the raw payload is carried in Text instead of being
// discarded; consumers treat it as best-effort plain text.
type Frame struct {
	// Event is the event-type tag, resolved from the payload's own
	// "event" field when present, otherwise from the SSE event line.
	Event string

	// Data is the payload when it decoded as JSON.
	Data json.RawMessage

	// Text is the raw payload when JSON decoding failed.
	Text string
}

// messagePayload is the decoded shape of message and agent_message frames.
type messagePayload struct {
	Answer         string `json:"answer"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

// thoughtPayload is the decoded shape of agent_thought frames.
type thoughtPayload struct {
	Thought        string `json:"thought"`
	ConversationID string `json:"conversation_id"`
}

// endPayload is the decoded shape of message_end frames.
type endPayload struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Metadata       struct {
		Usage *Usage `json:"usage"`
	} `json:"metadata"`
}

// errorPayload is the decoded shape of error frames.
type errorPayload struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Usage holds token accounting reported by the remote service at the end
// of a stream.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// DecodeMessage decodes f as a message or agent_message payload.
func (f Frame) DecodeMessage() (answer, conversationID, messageID string, err error) {
	if f.Data == nil {
		return f.Text, "", "", nil
	}
	var p messagePayload
	if uerr := json.Unmarshal(f.Data, &p); uerr != nil {
		return "", "", "", &ParseError{Raw: string(f.Data), Cause: uerr}
	}
	return p.Answer, p.ConversationID, p.MessageID, nil
}

// DecodeThought decodes f as an agent_thought payload.
func (f Frame) DecodeThought() (thought, conversationID string, err error) {
	if f.Data == nil {
		return f.Text, "", nil
	}
	var p thoughtPayload
	if uerr := json.Unmarshal(f.Data, &p); uerr != nil {
		return "", "", &ParseError{Raw: string(f.Data), Cause: uerr}
	}
	return p.Thought, p.ConversationID, nil
}

// DecodeEnd decodes f as a message_end payload.
func (f Frame) DecodeEnd() (conversationID, messageID string, usage *Usage, err error) {
	if f.Data == nil {
		return "", "", nil, nil
	}
	var p endPayload
	if uerr := json.Unmarshal(f.Data, &p); uerr != nil {
		return "", "", nil, &ParseError{Raw: string(f.Data), Cause: uerr}
	}
	return p.ConversationID, p.MessageID, p.Metadata.Usage, nil
}

// DecodeError decodes f as an error payload and returns the corresponding
// typed error. A rejected continuation id is distinguished by its code.
func (f Frame) DecodeError() error {
	var p errorPayload
	if f.Data != nil {
		// Decode failures fall through to a RemoteError carrying the
		// raw payload; an error frame always terminates the session.
		_ = json.Unmarshal(f.Data, &p)
	}
	if p.Message == "" {
		if f.Text != "" {
			p.Message = f.Text
		} else {
			p.Message = string(f.Data)
		}
	}
	if p.Code == CodeConversationNotExists {
		return &InvalidConversationError{Message: p.Message}
	}
	return &RemoteError{Status: p.Status, Code: p.Code, Message: p.Message}
}
