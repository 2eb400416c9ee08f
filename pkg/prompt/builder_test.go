package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"gridiron-hq/oracle/pkg/upstream"
)

// TestBuild_UnknownAction verifies unrecognized actions fail fatally.
func TestBuild_UnknownAction(t *testing.T) {
	_, _, err := Build("draft_magic", map[string]any{}, "", "u-1", true, DefaultLimits())

	var unknown *UnknownActionError
	if !errors.As(err, &unknown) {
		t.Fatalf("Expected UnknownActionError, got %v", err)
	}
	if unknown.Action != "draft_magic" {
		t.Errorf("Expected action draft_magic, got %q", unknown.Action)
	}
}

// TestBuild_ResponseMode verifies the streaming flag selects the mode.
func TestBuild_ResponseMode(t *testing.T) {
	req, _, err := Build(ActionSuggestPick, map[string]any{}, "", "u-1", true, DefaultLimits())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if req.ResponseMode != upstream.ResponseModeStreaming {
		t.Errorf("Expected streaming, got %q", req.ResponseMode)
	}

	req, _, err = Build(ActionSuggestPick, map[string]any{}, "", "u-1", false, DefaultLimits())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if req.ResponseMode != upstream.ResponseModeBlocking {
		t.Errorf("Expected blocking, got %q", req.ResponseMode)
	}
}

// TestBuild_ArrayTruncation verifies element arrays are truncated to the
// configured maximum preserving original order.
func TestBuild_ArrayTruncation(t *testing.T) {
	players := make([]any, 260)
	for i := range players {
		players[i] = map[string]any{
			"name": fmt.Sprintf("Player %03d", i),
			"rank": i + 1,
		}
	}

	req, obs, err := Build(ActionSuggestPick, map[string]any{
		"available_players": players,
	}, "", "u-1", true, DefaultLimits())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	got, ok := req.Inputs["available_players"].([]any)
	if !ok {
		t.Fatalf("Expected slice, got %T", req.Inputs["available_players"])
	}
	if len(got) != 200 {
		t.Fatalf("Expected 200 elements, got %d", len(got))
	}
	if obs.TruncatedArrays != 1 {
		t.Errorf("Expected 1 truncated array, got %d", obs.TruncatedArrays)
	}

	// Order preserved: element i is still Player i.
	for _, probe := range []int{0, 99, 199} {
		obj := got[probe].(map[string]any)
		want := fmt.Sprintf("Player %03d", probe)
		if obj["name"] != want {
			t.Errorf("Element %d: expected %q, got %v", probe, want, obj["name"])
		}
	}
}

// TestBuild_ElementAllowList verifies only allow-listed fields survive.
func TestBuild_ElementAllowList(t *testing.T) {
	req, _, err := Build(ActionRosterReview, map[string]any{
		"roster": []any{
			map[string]any{
				"name":             "Justin Jefferson",
				"position":         "WR",
				"team":             "MIN",
				"projected_points": 18.4,
				"owner_notes":      "keeper league steal",
				"internal_id":      12345,
			},
		},
	}, "", "u-1", true, DefaultLimits())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	roster := req.Inputs["roster"].([]any)
	obj := roster[0].(map[string]any)

	if obj["name"] != "Justin Jefferson" || obj["position"] != "WR" || obj["team"] != "MIN" {
		t.Errorf("Allow-listed fields missing: %v", obj)
	}
	if _, present := obj["owner_notes"]; present {
		t.Error("Expected owner_notes to be dropped")
	}
	if _, present := obj["internal_id"]; present {
		t.Error("Expected internal_id to be dropped")
	}
}

// TestBuild_StringTruncation verifies long strings are capped, both at the
// top level and inside elements.
func TestBuild_StringTruncation(t *testing.T) {
	long := make([]byte, 3000)
	for i := range long {
		long[i] = 'a'
	}

	req, obs, err := Build(ActionPlayerOutlook, map[string]any{
		"notes": string(long),
		"comparable_players": []any{
			map[string]any{"name": string(long)},
		},
	}, "", "u-1", true, DefaultLimits())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if got := req.Inputs["notes"].(string); len(got) != 2000 {
		t.Errorf("Expected top-level string capped at 2000, got %d", len(got))
	}
	comps := req.Inputs["comparable_players"].([]any)
	if got := comps[0].(map[string]any)["name"].(string); len(got) != 2000 {
		t.Errorf("Expected element string capped at 2000, got %d", len(got))
	}
	if obs.TruncatedStrings != 2 {
		t.Errorf("Expected 2 truncated strings, got %d", obs.TruncatedStrings)
	}
}

// TestBuild_Deterministic verifies the same inputs produce the same body.
func TestBuild_Deterministic(t *testing.T) {
	payload := map[string]any{
		"roster": []any{
			map[string]any{"name": "CMC", "position": "RB"},
		},
		"league_size": 12,
	}

	first, _, err := Build(ActionRosterReview, payload, "c-9", "u-7", true, DefaultLimits())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	second, _, err := Build(ActionRosterReview, payload, "c-9", "u-7", true, DefaultLimits())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Errorf("Expected identical bodies:\n%s\n%s", a, b)
	}
}

// TestBuild_ConversationPassthrough verifies continuation ids ride along
// untouched.
func TestBuild_ConversationPassthrough(t *testing.T) {
	req, _, err := Build(ActionSuggestPick, map[string]any{}, "conv-42", "u-1", true, DefaultLimits())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if req.ConversationID != "conv-42" {
		t.Errorf("Expected conv-42, got %q", req.ConversationID)
	}
	if req.User != "u-1" {
		t.Errorf("Expected u-1, got %q", req.User)
	}
}

// TestBuild_BodyBytesObserved verifies the encoded size is reported.
func TestBuild_BodyBytesObserved(t *testing.T) {
	req, obs, err := Build(ActionSuggestPick, map[string]any{"k": "v"}, "", "u-1", true, DefaultLimits())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	encoded, _ := json.Marshal(req)
	if obs.BodyBytes != len(encoded) {
		t.Errorf("Expected body bytes %d, got %d", len(encoded), obs.BodyBytes)
	}
}

// TestTimeout_PerAction verifies per-action deadlines and the fallback.
func TestTimeout_PerAction(t *testing.T) {
	if d := Timeout(ActionSuggestPick, 0); d.Seconds() != 45 {
		t.Errorf("Expected 45s for suggest_pick, got %v", d)
	}
	if d := Timeout(ActionEvaluateTrade, 0); d.Seconds() != 90 {
		t.Errorf("Expected 90s for evaluate_trade, got %v", d)
	}
	if d := Timeout("unknown", 120*time.Second); d.Seconds() != 120 {
		t.Errorf("Expected fallback for unknown action, got %v", d)
	}
}

// TestKnown verifies the closed action registry.
func TestKnown(t *testing.T) {
	for _, action := range []string{ActionSuggestPick, ActionEvaluateTrade, ActionPlayerOutlook, ActionRosterReview} {
		if !Known(action) {
			t.Errorf("Expected %q to be known", action)
		}
	}
	if Known("start_sit") {
		t.Error("Expected start_sit to be unknown")
	}
}
