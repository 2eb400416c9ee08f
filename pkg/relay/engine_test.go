package relay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"gridiron-hq/oracle/internal/upstreamtest"
	"gridiron-hq/oracle/pkg/prompt"
	"gridiron-hq/oracle/pkg/transcript"
	"gridiron-hq/oracle/pkg/upstream"
)

func newTestEngine(t *testing.T, mock *upstreamtest.MockServer, opts Options) *Engine {
	t.Helper()
	client := upstream.NewClient(upstream.ClientConfig{
		BaseURL: mock.URL(),
		APIKey:  "test-key",
	})
	return NewEngine(client, opts, nil, transcript.NewRing(64, 16), nil)
}

// TestEngine_Buffered_Success runs a full buffered session against a mock
// stream.
func TestEngine_Buffered_Success(t *testing.T) {
	mock := upstreamtest.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/chat-messages", upstreamtest.MockResponse{
		StreamEvents: []string{
			upstreamtest.MessageEvent("The best pick ", "c-77", "m-1"),
			upstreamtest.MessageEvent("is Bijan Robinson.", "c-77", "m-1"),
			upstreamtest.EndEvent("c-77", "m-1", 120, 24),
		},
	})

	engine := newTestEngine(t, mock, Options{})

	result, err := engine.Buffered(context.Background(), Call{
		Action:  prompt.ActionSuggestPick,
		Payload: map[string]any{"available_players": []any{map[string]any{"name": "Bijan Robinson"}}},
		User:    "u-1",
	})
	if err != nil {
		t.Fatalf("Buffered failed: %v", err)
	}

	if result.Answer != "The best pick is Bijan Robinson." {
		t.Errorf("Unexpected answer: %q", result.Answer)
	}
	if result.ConversationID != "c-77" {
		t.Errorf("Expected conversation c-77, got %q", result.ConversationID)
	}
	if result.Usage == nil || result.Usage.TotalTokens != 144 {
		t.Errorf("Expected usage total 144, got %+v", result.Usage)
	}

	// The submitted body carried the action's query and the payload.
	body := string(mock.LastBody())
	if !strings.Contains(body, "draft assistant") {
		t.Errorf("Expected action query in body, got %q", body)
	}
	if !strings.Contains(body, "Bijan Robinson") {
		t.Errorf("Expected payload in body, got %q", body)
	}
}

// TestEngine_Buffered_UnknownAction verifies the failure is surfaced
// before any upstream call.
func TestEngine_Buffered_UnknownAction(t *testing.T) {
	mock := upstreamtest.NewMockServer()
	defer mock.Close()

	engine := newTestEngine(t, mock, Options{})

	_, err := engine.Buffered(context.Background(), Call{Action: "nope", User: "u-1"})
	var unknown *prompt.UnknownActionError
	if !errors.As(err, &unknown) {
		t.Fatalf("Expected UnknownActionError, got %v", err)
	}
	if mock.RequestCount() != 0 {
		t.Errorf("Expected no upstream request, got %d", mock.RequestCount())
	}
}

// TestEngine_Buffered_ErrorEvent verifies an upstream error event becomes
// a classified envelope.
func TestEngine_Buffered_ErrorEvent(t *testing.T) {
	mock := upstreamtest.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/chat-messages", upstreamtest.MockResponse{
		StreamEvents: []string{
			upstreamtest.MessageEvent("partial", "c-1", "m-1"),
			upstreamtest.ErrorEvent("internal_error", "model unavailable", 500),
		},
	})

	engine := newTestEngine(t, mock, Options{})

	_, err := engine.Buffered(context.Background(), Call{Action: prompt.ActionSuggestPick, User: "u-1"})
	var envelope *Envelope
	if !errors.As(err, &envelope) {
		t.Fatalf("Expected Envelope, got %v", err)
	}
	if envelope.Kind != KindUpstreamError {
		t.Errorf("Expected upstream_error, got %q", envelope.Kind)
	}
	if envelope.UpstreamCode != "internal_error" {
		t.Errorf("Expected upstream code carried, got %q", envelope.UpstreamCode)
	}
}

// TestEngine_Buffered_BadStatus verifies a preflight rejection.
func TestEngine_Buffered_BadStatus(t *testing.T) {
	mock := upstreamtest.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/chat-messages", upstreamtest.MockResponse{
		StatusCode: 503,
		Body:       `{"message":"overloaded"}`,
	})

	engine := newTestEngine(t, mock, Options{})

	_, err := engine.Buffered(context.Background(), Call{Action: prompt.ActionSuggestPick, User: "u-1"})
	var envelope *Envelope
	if !errors.As(err, &envelope) {
		t.Fatalf("Expected Envelope, got %v", err)
	}
	if envelope.Kind != KindBadUpstreamStatus {
		t.Errorf("Expected bad_upstream_status, got %q", envelope.Kind)
	}
	if envelope.UpstreamStatus != 503 {
		t.Errorf("Expected status 503, got %d", envelope.UpstreamStatus)
	}
}

func collectRecords(t *testing.T, buf *bytes.Buffer) []Record {
	t.Helper()
	var records []Record
	scanner := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for scanner.Scan() {
		if scanner.Text() == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("Bad record line %q: %v", scanner.Text(), err)
		}
		records = append(records, rec)
	}
	return records
}

// TestEngine_PassThrough_Success verifies frames stream through in order
// with exactly one terminal complete record.
func TestEngine_PassThrough_Success(t *testing.T) {
	mock := upstreamtest.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/chat-messages", upstreamtest.MockResponse{
		StreamEvents: []string{
			upstreamtest.ThoughtEvent("weighing RB scarcity"),
			upstreamtest.MessageEvent("Take the RB.", "c-5", "m-2"),
			upstreamtest.EndEvent("c-5", "m-2", 80, 12),
		},
	})

	engine := newTestEngine(t, mock, Options{})

	var buf bytes.Buffer
	if err := engine.PassThrough(context.Background(), Call{Action: prompt.ActionSuggestPick, User: "u-1"}, &buf); err != nil {
		t.Fatalf("PassThrough failed: %v", err)
	}

	records := collectRecords(t, &buf)
	if len(records) != 4 {
		t.Fatalf("Expected 4 records, got %d: %+v", len(records), records)
	}
	wantEvents := []string{"agent_thought", "message", "message_end", "complete"}
	for i, want := range wantEvents {
		if records[i].Event != want {
			t.Errorf("Record %d: expected %q, got %q", i, want, records[i].Event)
		}
	}

	// Exactly one terminal record.
	terminals := 0
	for _, rec := range records {
		if rec.Event == RecordComplete || rec.Event == RecordError {
			terminals++
		}
	}
	if terminals != 1 {
		t.Errorf("Expected exactly one terminal record, got %d", terminals)
	}
}

// TestEngine_PassThrough_ConnectTimeout verifies a stalled connection
// produces exactly one terminal error record classified as a timeout.
func TestEngine_PassThrough_ConnectTimeout(t *testing.T) {
	mock := upstreamtest.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/chat-messages", upstreamtest.MockResponse{
		Delay: 2 * time.Second,
		StreamEvents: []string{
			upstreamtest.MessageEvent("too late", "c-1", "m-1"),
		},
	})

	engine := newTestEngine(t, mock, Options{ConnectTimeout: 80 * time.Millisecond})

	var buf bytes.Buffer
	err := engine.PassThrough(context.Background(), Call{Action: prompt.ActionSuggestPick, User: "u-1"}, &buf)

	var envelope *Envelope
	if !errors.As(err, &envelope) {
		t.Fatalf("Expected Envelope, got %v", err)
	}
	if envelope.Kind != KindTimeout {
		t.Errorf("Expected timeout, got %q", envelope.Kind)
	}

	records := collectRecords(t, &buf)
	errorRecords := 0
	for _, rec := range records {
		if rec.Event == RecordError {
			errorRecords++
		}
		if rec.Event == RecordComplete {
			t.Error("Unexpected complete record on timeout")
		}
	}
	if errorRecords != 1 {
		t.Errorf("Expected exactly one error record, got %d", errorRecords)
	}
}

// TestEngine_PassThrough_CallerDisconnect verifies nothing terminal is
// written when the caller goes away.
func TestEngine_PassThrough_CallerDisconnect(t *testing.T) {
	mock := upstreamtest.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/chat-messages", upstreamtest.MockResponse{
		StreamEvents: []string{
			upstreamtest.MessageEvent("a", "c-1", "m-1"),
			upstreamtest.MessageEvent("b", "c-1", "m-1"),
			upstreamtest.EndEvent("c-1", "m-1", 1, 1),
		},
		ChunkDelay: 200 * time.Millisecond,
	})

	engine := newTestEngine(t, mock, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	var buf bytes.Buffer
	err := engine.PassThrough(ctx, Call{Action: prompt.ActionSuggestPick, User: "u-1"}, &buf)

	var envelope *Envelope
	if !errors.As(err, &envelope) {
		t.Fatalf("Expected Envelope, got %v", err)
	}
	if envelope.Kind != KindCallerCancelled {
		t.Errorf("Expected caller_cancelled, got %q", envelope.Kind)
	}

	for _, rec := range collectRecords(t, &buf) {
		if rec.Event == RecordError || rec.Event == RecordComplete {
			t.Errorf("Expected no terminal record after disconnect, got %q", rec.Event)
		}
	}
}

// TestEngine_SessionBreadcrumbs verifies the transcript ring receives the
// session's phase trail.
func TestEngine_SessionBreadcrumbs(t *testing.T) {
	mock := upstreamtest.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/chat-messages", upstreamtest.MockResponse{
		StreamEvents: []string{
			upstreamtest.MessageEvent("x", "c-1", "m-1"),
			upstreamtest.EndEvent("c-1", "m-1", 1, 1),
		},
	})

	ring := transcript.NewRing(64, 16)
	client := upstream.NewClient(upstream.ClientConfig{BaseURL: mock.URL()})
	engine := NewEngine(client, Options{}, nil, ring, nil)

	if _, err := engine.Buffered(context.Background(), Call{Action: prompt.ActionSuggestPick, User: "u-1"}); err != nil {
		t.Fatalf("Buffered failed: %v", err)
	}

	sessions := ring.Sessions()
	if len(sessions) != 1 {
		t.Fatalf("Expected 1 transcript session, got %d", len(sessions))
	}
	entries := ring.Snapshot(sessions[0])
	if len(entries) == 0 {
		t.Fatal("Expected breadcrumb entries")
	}

	var sawConnecting, sawDone bool
	for _, entry := range entries {
		if entry.Event == "phase:connecting" {
			sawConnecting = true
		}
		if entry.Event == "phase:done" {
			sawDone = true
		}
	}
	if !sawConnecting || !sawDone {
		t.Errorf("Expected connecting and done phases in trail: %+v", entries)
	}
}

// failingSink accepts writes up to failAt, then errors on every write.
type failingSink struct {
	writes int
	failAt int
}

func (s *failingSink) Write(p []byte) (int, error) {
	s.writes++
	if s.writes >= s.failAt {
		return 0, errors.New("sink closed")
	}
	return len(p), nil
}

// TestEngine_PassThrough_SinkFailureMidStream verifies a sink failure
// mid-stream ends the session as a caller disconnect with no further
// writes, while the reader goroutine is still consuming frames and
// updating the session counters.
func TestEngine_PassThrough_SinkFailureMidStream(t *testing.T) {
	mock := upstreamtest.NewMockServer()
	defer mock.Close()

	events := make([]string, 0, 201)
	for i := 0; i < 200; i++ {
		events = append(events, upstreamtest.MessageEvent("delta ", "c-1", "m-1"))
	}
	events = append(events, upstreamtest.EndEvent("c-1", "m-1", 10, 4))
	mock.SetResponse("/chat-messages", upstreamtest.MockResponse{StreamEvents: events})

	engine := newTestEngine(t, mock, Options{})
	sink := &failingSink{failAt: 2}

	err := engine.PassThrough(context.Background(), Call{Action: prompt.ActionSuggestPick, User: "u-1"}, sink)

	var envelope *Envelope
	if !errors.As(err, &envelope) {
		t.Fatalf("Expected Envelope, got %v", err)
	}
	if envelope.Kind != KindCallerCancelled {
		t.Errorf("Expected caller_cancelled, got %q", envelope.Kind)
	}
	if sink.writes != 2 {
		t.Errorf("Expected no writes after the failing one, got %d", sink.writes)
	}
}

// TestEngine_Buffered_ConfiguredTimeoutCapsBudget verifies a configured
// overall timeout below the action's declared budget governs the session.
func TestEngine_Buffered_ConfiguredTimeoutCapsBudget(t *testing.T) {
	mock := upstreamtest.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/chat-messages", upstreamtest.MockResponse{
		Delay: 2 * time.Second,
		StreamEvents: []string{
			upstreamtest.EndEvent("c-1", "m-1", 1, 1),
		},
	})

	engine := newTestEngine(t, mock, Options{
		ConnectTimeout: 5 * time.Second,
		OverallTimeout: 80 * time.Millisecond,
	})

	start := time.Now()
	_, err := engine.Buffered(context.Background(), Call{Action: prompt.ActionSuggestPick, User: "u-1"})

	var envelope *Envelope
	if !errors.As(err, &envelope) {
		t.Fatalf("Expected Envelope, got %v", err)
	}
	if envelope.Kind != KindTimeout {
		t.Errorf("Expected timeout, got %q", envelope.Kind)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Expected the configured cap to govern, session ran %v", elapsed)
	}
}
