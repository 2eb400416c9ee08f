package relay

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"gridiron-hq/oracle/pkg/upstream"
)

// Synthetic record event types emitted in pass-through mode, alongside the
// upstream event types forwarded verbatim.
const (
	// RecordKeepAlive is emitted while waiting for the first upstream
	// frame so intermediate infrastructure does not time the connection
	// out.
	RecordKeepAlive = "keep_alive"

	// RecordComplete terminates a successful pass-through stream.
	RecordComplete = "complete"

	// RecordError terminates a failed pass-through stream. At most one
	// is ever written, and none at all for caller disconnects.
	RecordError = "error"
)

// DefaultKeepAliveInterval is the default wait before emitting a synthetic
// keep-alive record.
const DefaultKeepAliveInterval = 10 * time.Second

// Record is one line of the pass-through wire format: a self-contained
// JSON object per line, newline terminated.
type Record struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// passthrough re-encodes parsed frames into line-delimited records and
// flushes each one immediately, preserving arrival order exactly. No
// batching across frames is permitted.
type passthrough struct {
	w       io.Writer
	flusher http.Flusher
	enc     *json.Encoder

	wroteFrame bool
}

// newPassthrough creates a transformer writing to w. If w implements
// http.Flusher each record is flushed as it is written.
func newPassthrough(w io.Writer) *passthrough {
	p := &passthrough{w: w, enc: json.NewEncoder(w)}
	if f, ok := w.(http.Flusher); ok {
		p.flusher = f
	}
	return p
}

// writeFrame forwards one upstream frame as a record with the same event
// and equivalent data.
func (p *passthrough) writeFrame(frame upstream.Frame) error {
	data := frame.Data
	if data == nil {
		encoded, err := json.Marshal(map[string]string{"text": frame.Text})
		if err != nil {
			return fmt.Errorf("failed to encode text frame: %w", err)
		}
		data = encoded
	}
	if err := p.write(Record{Event: frame.Event, Data: data}); err != nil {
		return err
	}
	p.wroteFrame = true
	return nil
}

// writeKeepAlive emits a synthetic keep-alive. It is a no-op once real
// frames have begun.
func (p *passthrough) writeKeepAlive(elapsed time.Duration) error {
	if p.wroteFrame {
		return nil
	}
	data, err := json.Marshal(map[string]int64{"elapsed_ms": elapsed.Milliseconds()})
	if err != nil {
		return fmt.Errorf("failed to encode keep-alive: %w", err)
	}
	return p.write(Record{Event: RecordKeepAlive, Data: data})
}

// writeComplete emits the single terminal record of a successful stream.
func (p *passthrough) writeComplete(duration time.Duration, frames int64) error {
	data, err := json.Marshal(map[string]int64{
		"duration_ms": duration.Milliseconds(),
		"frames":      frames,
	})
	if err != nil {
		return fmt.Errorf("failed to encode completion: %w", err)
	}
	return p.write(Record{Event: RecordComplete, Data: data})
}

// writeError emits the single terminal error record.
func (p *passthrough) writeError(envelope *Envelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to encode error record: %w", err)
	}
	return p.write(Record{Event: RecordError, Data: data})
}

// write encodes one record and flushes it immediately.
func (p *passthrough) write(record Record) error {
	if err := p.enc.Encode(record); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if p.flusher != nil {
		p.flusher.Flush()
	}
	return nil
}
