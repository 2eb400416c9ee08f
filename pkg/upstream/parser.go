package upstream

import (
	"bytes"
	"encoding/json"
	"strings"
)

const (
	// doneToken is the literal payload signaling end-of-stream. It is
	// recognized and skipped without emitting a frame.
	doneToken = "[DONE]"

	// DefaultMaxFrameBuffer is the default bound on the parser's
	// accumulation buffer.
	DefaultMaxFrameBuffer = 1 << 20 // 1MB
)

// frameTerminator separates complete frames in the wire format. CRLF
// line endings are normalized to LF on the way into the buffer, so a
// stream using \r\n\r\n splits at the same boundary.
var frameTerminator = []byte("\n\n")

// Parser incrementally turns a sequence of raw byte chunks into complete
// frames. Chunks may be of arbitrary size, including zero-length chunks and
// chunks that straddle a frame boundary; for any chunking of the same byte
// sequence the parser yields the identical ordered sequence of frames.
//
// A Parser is single-use: it carries buffered partial-frame state and is
// not restartable across sessions. It is not safe for concurrent use; each
// session drives exactly one parser from one read loop.
type Parser struct {
	buf []byte
	max int

	// pendingCR holds back a chunk-final \r until the next chunk shows
	// whether it begins a \r\n pair, keeping normalization identical
	// for every chunking of the same byte sequence.
	pendingCR bool
}

// NewParser creates a parser whose accumulation buffer is bounded at
// maxBuffer bytes. A non-positive maxBuffer falls back to
// DefaultMaxFrameBuffer.
func NewParser(maxBuffer int) *Parser {
	if maxBuffer <= 0 {
		maxBuffer = DefaultMaxFrameBuffer
	}
	return &Parser{max: maxBuffer}
}

// Feed appends chunk to the internal buffer and returns all frames that
// are now complete, in arrival order. It returns an OverflowError if the
// buffered partial frame would exceed the configured bound; the session
// must be failed at that point.
func (p *Parser) Feed(chunk []byte) ([]Frame, error) {
	if len(p.buf)+len(chunk) > p.max {
		return nil, &OverflowError{Limit: p.max, Size: len(p.buf) + len(chunk)}
	}
	if p.pendingCR {
		chunk = append([]byte{'\r'}, chunk...)
		p.pendingCR = false
	}
	if n := len(chunk); n > 0 && chunk[n-1] == '\r' {
		p.pendingCR = true
		chunk = chunk[:n-1]
	}
	p.buf = append(p.buf, bytes.ReplaceAll(chunk, []byte("\r\n"), []byte("\n"))...)

	var frames []Frame
	for {
		idx := bytes.Index(p.buf, frameTerminator)
		if idx < 0 {
			break
		}
		block := string(p.buf[:idx])
		p.buf = p.buf[idx+len(frameTerminator):]

		if frame, ok := parseBlock(block); ok {
			frames = append(frames, frame)
		}
	}
	return frames, nil
}

// Buffered reports the number of bytes held for a partial frame.
func (p *Parser) Buffered() int {
	return len(p.buf)
}

// parseBlock parses one terminator-delimited block into a frame. It
// returns ok=false for blocks that produce no frame: empty blocks,
// comment-only blocks, and the end-of-stream token.
func parseBlock(block string) (Frame, bool) {
	var eventTag string
	var dataLines []string

	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSuffix(line, "\r")

		switch {
		case strings.HasPrefix(line, "event:"):
			eventTag = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimPrefix(line, "data:")
			data = strings.TrimPrefix(data, " ")
			dataLines = append(dataLines, data)
		}
		// Other SSE fields (id, retry, comments) are ignored.
	}

	if eventTag == "" && len(dataLines) == 0 {
		return Frame{}, false
	}

	payload := strings.Join(dataLines, "\n")
	if payload == doneToken {
		return Frame{}, false
	}

	// The payload's own event field wins over the SSE event line; the
	// remote service puts the type inside the JSON and the line tag is
	// a fallback.
	if len(payload) > 0 && json.Valid([]byte(payload)) {
		var probe struct {
			Event string `json:"event"`
		}
		if err := json.Unmarshal([]byte(payload), &probe); err == nil {
			event := probe.Event
			if event == "" {
				event = eventTag
			}
			if event == "" {
				event = EventMessage
			}
			return Frame{Event: event, Data: json.RawMessage(payload)}, true
		}
	}

	// Decode failure must not abort the parser: forward the raw payload
	// as a best-effort text frame rather than discarding it.
	event := eventTag
	if event == "" {
		event = EventMessage
	}
	return Frame{Event: event, Text: payload}, true
}
