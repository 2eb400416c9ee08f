package relay

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Mode selects the consumption strategy for a call.
type Mode string

const (
	// ModeBuffered accumulates all frames into one final result.
	ModeBuffered Mode = "buffered"

	// ModePassThrough forwards each frame to the caller immediately.
	ModePassThrough Mode = "passthrough"
)

// Phase names a point in the session lifecycle, used for diagnostic
// breadcrumbs.
type Phase string

const (
	PhaseInit       Phase = "init"
	PhaseConnecting Phase = "connecting"
	PhaseStreaming  Phase = "streaming"
	PhaseFinalizing Phase = "finalizing"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// Crumb is one timestamped phase transition.
type Crumb struct {
	Phase Phase     `json:"phase"`
	At    time.Time `json:"at"`
}

// Session carries the per-call state of one in-flight exchange: the
// correlation id, the current phase, and byte/frame counters. A session is
// owned exclusively by the call that created it and is never shared across
// calls.
type Session struct {
	// ID is the opaque correlation token, generated once per call.
	ID string

	// Action is the draft-assistant action being relayed.
	Action string

	// Mode is the consumption strategy for this call.
	Mode Mode

	// StartedAt is the session start timestamp.
	StartedAt time.Time

	// Phase is the current lifecycle phase.
	Phase Phase

	// Crumbs records every phase transition with its timestamp.
	Crumbs []Crumb

	// Bytes counts raw upstream bytes consumed. In pass-through mode
	// the read loop updates the counters from its own goroutine while
	// the writer loop reads them on its failure paths, so both are
	// atomic.
	Bytes atomic.Int64

	// Frames counts complete frames parsed.
	Frames atomic.Int64
}

// NewSession creates a session with a fresh correlation id.
func NewSession(action string, mode Mode) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		Action:    action,
		Mode:      mode,
		StartedAt: time.Now(),
	}
	s.Mark(PhaseInit)
	return s
}

// Mark transitions the session to phase and records a breadcrumb.
func (s *Session) Mark(phase Phase) {
	s.Phase = phase
	s.Crumbs = append(s.Crumbs, Crumb{Phase: phase, At: time.Now()})
}

// Elapsed returns the time since the session started.
func (s *Session) Elapsed() time.Duration {
	return time.Since(s.StartedAt)
}
