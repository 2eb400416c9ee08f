package transcript

import (
	"sync"
	"time"
)

// Entry is one transcript line: a named event at a point in time.
type Entry struct {
	// At is when the entry was recorded.
	At time.Time `json:"at"`

	// Event names what happened ("phase:streaming", "frame:message",
	// "error:timeout").
	Event string `json:"event"`

	// Detail is a short free-form summary.
	Detail string `json:"detail,omitempty"`
}

// Ring is the bounded in-memory transcript store. It keeps at most
// perSession entries per correlation id (append-only, drop-oldest) and at
// most maxSessions correlation ids (oldest session evicted first). It is
// the only structure shared across sessions and is guarded by a single
// mutex.
type Ring struct {
	mu         sync.Mutex
	perSession int
	maxSession int
	sessions   map[string]*sessionBuf
	order      []string
}

// sessionBuf is one session's circular entry buffer.
type sessionBuf struct {
	entries []Entry
	start   int
	full    bool
}

// NewRing creates a ring keeping perSession entries for up to maxSessions
// correlation ids.
func NewRing(perSession, maxSessions int) *Ring {
	if perSession <= 0 {
		perSession = 256
	}
	if maxSessions <= 0 {
		maxSessions = 128
	}
	return &Ring{
		perSession: perSession,
		maxSession: maxSessions,
		sessions:   make(map[string]*sessionBuf),
	}
}

// Append records one entry for the given correlation id.
func (r *Ring) Append(correlationID string, entry Entry) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	buf, ok := r.sessions[correlationID]
	if !ok {
		if len(r.order) >= r.maxSession {
			oldest := r.order[0]
			r.order = r.order[1:]
			delete(r.sessions, oldest)
		}
		buf = &sessionBuf{entries: make([]Entry, 0, r.perSession)}
		r.sessions[correlationID] = buf
		r.order = append(r.order, correlationID)
	}

	if len(buf.entries) < r.perSession && !buf.full {
		buf.entries = append(buf.entries, entry)
		if len(buf.entries) == r.perSession {
			buf.full = true
		}
		return
	}

	// Capacity reached: overwrite the oldest entry.
	buf.entries[buf.start] = entry
	buf.start = (buf.start + 1) % r.perSession
}

// Snapshot returns the entries recorded for a correlation id in append
// order, or nil if none are held.
func (r *Ring) Snapshot(correlationID string) []Entry {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	buf, ok := r.sessions[correlationID]
	if !ok {
		return nil
	}

	out := make([]Entry, 0, len(buf.entries))
	if buf.full {
		out = append(out, buf.entries[buf.start:]...)
		out = append(out, buf.entries[:buf.start]...)
	} else {
		out = append(out, buf.entries...)
	}
	return out
}

// Sessions returns the correlation ids currently held, oldest first.
func (r *Ring) Sessions() []string {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
