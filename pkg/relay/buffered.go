package relay

import (
	"strings"
	"time"

	"gridiron-hq/oracle/pkg/upstream"
)

// DefaultMaxAnswerBytes is the default bound on the buffered answer
// accumulator.
const DefaultMaxAnswerBytes = 4 << 20 // 4MB

// Reasoning markup delimiters sometimes included in upstream answer text.
// The pair and everything between is stripped exactly once at
// finalization.
const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// BufferedResult is the single terminal result of a buffered session.
// Once returned it is immutable.
type BufferedResult struct {
	// Answer is the accumulated answer text, stripped of reasoning
	// markup.
	Answer string `json:"answer"`

	// ConversationID identifies the upstream conversation for
	// continuations. First-write-wins during accumulation.
	ConversationID string `json:"conversation_id,omitempty"`

	// MessageID identifies the upstream message.
	MessageID string `json:"message_id,omitempty"`

	// Usage is the token accounting reported at stream end, if any.
	Usage *upstream.Usage `json:"usage,omitempty"`

	// Duration is the total session duration.
	Duration time.Duration `json:"-"`
}

// aggregator accumulates textual deltas into one answer. Answer length is
// monotonically non-decreasing until finalization.
type aggregator struct {
	answer  strings.Builder
	thought strings.Builder

	conversationID string
	messageID      string
	usage          *upstream.Usage

	maxAnswer int
}

// newAggregator creates an aggregator bounded at maxAnswer bytes.
func newAggregator(maxAnswer int) *aggregator {
	if maxAnswer <= 0 {
		maxAnswer = DefaultMaxAnswerBytes
	}
	return &aggregator{maxAnswer: maxAnswer}
}

// consume folds one frame into the accumulator. It returns terminal=true
// when the frame ends the stream successfully, and an error when the frame
// reports an upstream failure or overflows the accumulator.
func (a *aggregator) consume(frame upstream.Frame) (terminal bool, err error) {
	switch frame.Event {
	case upstream.EventMessage, upstream.EventAgentMessage:
		answer, conversationID, messageID, derr := frame.DecodeMessage()
		if derr != nil {
			return false, derr
		}
		if err := a.append(&a.answer, answer); err != nil {
			return false, err
		}
		a.setIDs(conversationID, messageID)

	case upstream.EventAgentThought:
		// Reasoning contributes only as a fallback when no primary
		// message content arrives; kept in its own buffer so the
		// decision is insensitive to arrival order.
		thought, conversationID, derr := frame.DecodeThought()
		if derr != nil {
			return false, derr
		}
		if err := a.append(&a.thought, thought); err != nil {
			return false, err
		}
		a.setIDs(conversationID, "")

	case upstream.EventMessageEnd:
		conversationID, messageID, usage, derr := frame.DecodeEnd()
		if derr != nil {
			return false, derr
		}
		a.setIDs(conversationID, messageID)
		if usage != nil {
			a.usage = usage
		}
		return true, nil

	case upstream.EventError:
		return false, frame.DecodeError()

	case upstream.EventPing:
		// Keep-alive from the remote service; nothing to accumulate.

	default:
		// Unknown event types carrying text are folded in best-effort
		// rather than dropped.
		if frame.Data == nil && frame.Text != "" {
			if err := a.append(&a.answer, frame.Text); err != nil {
				return false, err
			}
		}
	}
	return false, nil
}

// append adds delta to b, enforcing the accumulator bound.
func (a *aggregator) append(b *strings.Builder, delta string) error {
	if delta == "" {
		return nil
	}
	if b.Len()+len(delta) > a.maxAnswer {
		return &upstream.OverflowError{Limit: a.maxAnswer, Size: b.Len() + len(delta)}
	}
	b.WriteString(delta)
	return nil
}

// setIDs records conversation and message ids, first-write-wins: later
// frames only overwrite a previously empty value.
func (a *aggregator) setIDs(conversationID, messageID string) {
	if a.conversationID == "" && conversationID != "" {
		a.conversationID = conversationID
	}
	if a.messageID == "" && messageID != "" {
		a.messageID = messageID
	}
}

// finalize produces the immutable result. The reasoning buffer is used
// only if no primary content arrived, and reasoning markup is stripped in
// exactly one pass.
func (a *aggregator) finalize(duration time.Duration) *BufferedResult {
	answer := a.answer.String()
	if answer == "" {
		answer = a.thought.String()
	}
	return &BufferedResult{
		Answer:         stripReasoning(answer),
		ConversationID: a.conversationID,
		MessageID:      a.messageID,
		Usage:          a.usage,
		Duration:       duration,
	}
}

// stripReasoning removes every paired reasoning tag and everything between
// in a single left-to-right pass. Unpaired tags are left untouched.
func stripReasoning(s string) string {
	if !strings.Contains(s, thinkOpen) {
		return s
	}

	var out strings.Builder
	out.Grow(len(s))
	for {
		open := strings.Index(s, thinkOpen)
		if open < 0 {
			out.WriteString(s)
			break
		}
		end := strings.Index(s[open:], thinkClose)
		if end < 0 {
			out.WriteString(s)
			break
		}
		out.WriteString(s[:open])
		s = s[open+end+len(thinkClose):]
	}
	return out.String()
}
