package transcript

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func entry(event string) Entry {
	return Entry{At: time.Now(), Event: event}
}

// TestRing_AppendAndSnapshot verifies basic append-order retrieval.
func TestRing_AppendAndSnapshot(t *testing.T) {
	ring := NewRing(8, 4)

	ring.Append("s-1", entry("phase:init"))
	ring.Append("s-1", entry("phase:connecting"))
	ring.Append("s-1", entry("frame:message"))

	entries := ring.Snapshot("s-1")
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	want := []string{"phase:init", "phase:connecting", "frame:message"}
	for i, w := range want {
		if entries[i].Event != w {
			t.Errorf("Entry %d: expected %q, got %q", i, w, entries[i].Event)
		}
	}
}

// TestRing_PerSessionOverwrite verifies the oldest entries are overwritten
// once a session buffer fills.
func TestRing_PerSessionOverwrite(t *testing.T) {
	ring := NewRing(4, 4)

	for i := 0; i < 10; i++ {
		ring.Append("s-1", entry(fmt.Sprintf("e-%d", i)))
	}

	entries := ring.Snapshot("s-1")
	if len(entries) != 4 {
		t.Fatalf("Expected 4 entries, got %d", len(entries))
	}
	want := []string{"e-6", "e-7", "e-8", "e-9"}
	for i, w := range want {
		if entries[i].Event != w {
			t.Errorf("Entry %d: expected %q, got %q", i, w, entries[i].Event)
		}
	}
}

// TestRing_SessionEviction verifies the oldest session goes first.
func TestRing_SessionEviction(t *testing.T) {
	ring := NewRing(4, 2)

	ring.Append("s-1", entry("a"))
	ring.Append("s-2", entry("b"))
	ring.Append("s-3", entry("c"))

	if got := ring.Snapshot("s-1"); got != nil {
		t.Errorf("Expected s-1 evicted, got %+v", got)
	}
	if got := ring.Snapshot("s-2"); len(got) != 1 {
		t.Errorf("Expected s-2 retained, got %+v", got)
	}

	sessions := ring.Sessions()
	if len(sessions) != 2 || sessions[0] != "s-2" || sessions[1] != "s-3" {
		t.Errorf("Unexpected session order: %v", sessions)
	}
}

// TestRing_NilReceiver verifies a disabled ring is safe to use.
func TestRing_NilReceiver(t *testing.T) {
	var ring *Ring
	ring.Append("s-1", entry("a"))
	if got := ring.Snapshot("s-1"); got != nil {
		t.Errorf("Expected nil snapshot, got %+v", got)
	}
	if got := ring.Sessions(); got != nil {
		t.Errorf("Expected nil sessions, got %+v", got)
	}
}

// TestRing_ConcurrentAppend verifies appends from many goroutines don't
// lose the session.
func TestRing_ConcurrentAppend(t *testing.T) {
	ring := NewRing(256, 16)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			id := fmt.Sprintf("s-%d", g)
			for i := 0; i < 100; i++ {
				ring.Append(id, entry(fmt.Sprintf("e-%d", i)))
			}
		}(g)
	}
	wg.Wait()

	if len(ring.Sessions()) != 8 {
		t.Errorf("Expected 8 sessions, got %d", len(ring.Sessions()))
	}
	for g := 0; g < 8; g++ {
		if got := ring.Snapshot(fmt.Sprintf("s-%d", g)); len(got) != 100 {
			t.Errorf("Session s-%d: expected 100 entries, got %d", g, len(got))
		}
	}
}
