package upstream

import (
	"errors"
	"testing"
)

// feedAll feeds the full input in chunks of the given size and collects
// every emitted frame.
func feedAll(t *testing.T, p *Parser, input string, chunkSize int) []Frame {
	t.Helper()

	var frames []Frame
	for i := 0; i < len(input); i += chunkSize {
		end := i + chunkSize
		if end > len(input) {
			end = len(input)
		}
		got, err := p.Feed([]byte(input[i:end]))
		if err != nil {
			t.Fatalf("Feed failed: %v", err)
		}
		frames = append(frames, got...)
	}
	return frames
}

// TestParser_ChunkingEquivalence verifies that any chunking of the same
// byte sequence yields the identical frame sequence.
func TestParser_ChunkingEquivalence(t *testing.T) {
	input := "data: {\"event\":\"message\",\"answer\":\"Hel\"}\n\n" +
		"data: {\"event\":\"message\",\"answer\":\"lo\"}\n\n" +
		"data: {\"event\":\"message_end\",\"conversation_id\":\"c-1\"}\n\n"

	reference := feedAll(t, NewParser(0), input, len(input))
	if len(reference) != 3 {
		t.Fatalf("Expected 3 frames, got %d", len(reference))
	}

	for _, chunkSize := range []int{1, 2, 3, 7, 16, 64} {
		frames := feedAll(t, NewParser(0), input, chunkSize)
		if len(frames) != len(reference) {
			t.Fatalf("chunk size %d: expected %d frames, got %d", chunkSize, len(reference), len(frames))
		}
		for i := range frames {
			if frames[i].Event != reference[i].Event {
				t.Errorf("chunk size %d frame %d: event %q != %q", chunkSize, i, frames[i].Event, reference[i].Event)
			}
			if string(frames[i].Data) != string(reference[i].Data) {
				t.Errorf("chunk size %d frame %d: data mismatch", chunkSize, i)
			}
		}
	}
}

// TestParser_DoneToken verifies the end-of-stream token is skipped.
func TestParser_DoneToken(t *testing.T) {
	p := NewParser(0)
	frames, err := p.Feed([]byte("data: {\"event\":\"message\",\"answer\":\"hi\"}\n\ndata: [DONE]\n\n"))
	if err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("Expected 1 frame, got %d", len(frames))
	}
	if frames[0].Event != EventMessage {
		t.Errorf("Expected message event, got %q", frames[0].Event)
	}
}

// TestParser_EmptyAndCommentBlocks verifies blocks with no event or data
// produce no frames.
func TestParser_EmptyAndCommentBlocks(t *testing.T) {
	p := NewParser(0)
	frames, err := p.Feed([]byte("\n\n: comment\n\nid: 5\nretry: 100\n\n"))
	if err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	if len(frames) != 0 {
		t.Fatalf("Expected 0 frames, got %d", len(frames))
	}
}

// TestParser_PayloadEventWins verifies the payload's own event field takes
// precedence over the SSE event line.
func TestParser_PayloadEventWins(t *testing.T) {
	p := NewParser(0)
	frames, err := p.Feed([]byte("event: message\ndata: {\"event\":\"agent_thought\",\"thought\":\"x\"}\n\n"))
	if err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("Expected 1 frame, got %d", len(frames))
	}
	if frames[0].Event != EventAgentThought {
		t.Errorf("Expected agent_thought, got %q", frames[0].Event)
	}
}

// TestParser_EventLineFallback verifies the SSE event line is used when
// the payload has no event field.
func TestParser_EventLineFallback(t *testing.T) {
	p := NewParser(0)
	frames, err := p.Feed([]byte("event: ping\ndata: {}\n\n"))
	if err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	if len(frames) != 1 || frames[0].Event != EventPing {
		t.Fatalf("Expected one ping frame, got %+v", frames)
	}
}

// TestParser_TextFallback verifies non-JSON payloads are carried as text
// frames rather than discarded.
func TestParser_TextFallback(t *testing.T) {
	p := NewParser(0)
	frames, err := p.Feed([]byte("data: not json at all\n\n"))
	if err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("Expected 1 frame, got %d", len(frames))
	}
	if frames[0].Data != nil {
		t.Error("Expected nil Data for text frame")
	}
	if frames[0].Text != "not json at all" {
		t.Errorf("Expected raw text, got %q", frames[0].Text)
	}
	if frames[0].Event != EventMessage {
		t.Errorf("Expected default message event, got %q", frames[0].Event)
	}
}

// TestParser_MultiLineData verifies multiple data lines join with newlines.
func TestParser_MultiLineData(t *testing.T) {
	p := NewParser(0)
	frames, err := p.Feed([]byte("data: line one\ndata: line two\n\n"))
	if err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("Expected 1 frame, got %d", len(frames))
	}
	if frames[0].Text != "line one\nline two" {
		t.Errorf("Expected joined lines, got %q", frames[0].Text)
	}
}

// TestParser_CRLFLines verifies carriage returns are stripped.
func TestParser_CRLFLines(t *testing.T) {
	p := NewParser(0)
	frames, err := p.Feed([]byte("data: {\"event\":\"ping\"}\r\n\n"))
	if err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	if len(frames) != 1 || frames[0].Event != EventPing {
		t.Fatalf("Expected one ping frame, got %+v", frames)
	}
}

// TestParser_CRLFTerminator verifies a stream using CRLF line endings
// throughout still splits into frames at the blank line.
func TestParser_CRLFTerminator(t *testing.T) {
	input := "data: {\"event\":\"message\",\"answer\":\"Hel\"}\r\n\r\n" +
		"event: ping\r\ndata: {}\r\n\r\n" +
		"data: {\"event\":\"message_end\"}\r\n\r\n"

	for _, chunkSize := range []int{len(input), 1, 5} {
		frames := feedAll(t, NewParser(0), input, chunkSize)
		if len(frames) != 3 {
			t.Fatalf("chunk size %d: expected 3 frames, got %d", chunkSize, len(frames))
		}
		want := []string{EventMessage, EventPing, EventMessageEnd}
		for i, event := range want {
			if frames[i].Event != event {
				t.Errorf("chunk size %d frame %d: expected %q, got %q", chunkSize, i, event, frames[i].Event)
			}
		}
	}
}

// TestParser_Overflow verifies an unterminated frame exceeding the bound
// fails with an OverflowError.
func TestParser_Overflow(t *testing.T) {
	p := NewParser(16)

	if _, err := p.Feed([]byte("data: 12345")); err != nil {
		t.Fatalf("Feed below bound failed: %v", err)
	}

	_, err := p.Feed([]byte("67890 and far beyond the bound"))
	var overflow *OverflowError
	if !errors.As(err, &overflow) {
		t.Fatalf("Expected OverflowError, got %v", err)
	}
	if overflow.Limit != 16 {
		t.Errorf("Expected limit 16, got %d", overflow.Limit)
	}
}

// TestParser_BufferedCount verifies partial frame accounting.
func TestParser_BufferedCount(t *testing.T) {
	p := NewParser(0)

	if _, err := p.Feed([]byte("data: par")); err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	if p.Buffered() != len("data: par") {
		t.Errorf("Expected %d buffered bytes, got %d", len("data: par"), p.Buffered())
	}

	if _, err := p.Feed([]byte("tial\n\n")); err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	if p.Buffered() != 0 {
		t.Errorf("Expected empty buffer after complete frame, got %d", p.Buffered())
	}
}
