package prompt

import (
	"fmt"
	"time"
)

// Draft-assistant actions recognized by the builder.
const (
	// ActionSuggestPick recommends the best available pick for the
	// caller's roster and draft slot.
	ActionSuggestPick = "suggest_pick"

	// ActionEvaluateTrade grades a proposed trade between two rosters.
	ActionEvaluateTrade = "evaluate_trade"

	// ActionPlayerOutlook summarizes a single player's rest-of-season
	// outlook.
	ActionPlayerOutlook = "player_outlook"

	// ActionRosterReview reviews roster construction and flags
	// positional gaps.
	ActionRosterReview = "roster_review"
)

// UnknownActionError indicates that the action identifier is not
// recognized. This is fatal to the call and is never retried.
type UnknownActionError struct {
	// Action is the unrecognized identifier.
	Action string
}

// Error implements the error interface.
func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown draft-assistant action %q", e.Action)
}

// actionSpec describes how one action is turned into an upstream request.
type actionSpec struct {
	// query is the instruction text sent as the upstream query field.
	query string

	// arrayFields names the payload fields that hold element arrays
	// subject to truncation and field allow-listing.
	arrayFields []string

	// timeout is the overall session deadline for this action; slower
	// analytical actions get a longer budget than pick suggestions made
	// on the clock.
	timeout time.Duration
}

// actions is the closed registry of recognized actions.
var actions = map[string]actionSpec{
	ActionSuggestPick: {
		query: "You are a fantasy football draft assistant. Given the available players, " +
			"my current roster, and the league settings in the inputs, recommend the best " +
			"pick for my upcoming selection and explain the reasoning briefly.",
		arrayFields: []string{"available_players", "roster"},
		timeout:     45 * time.Second,
	},
	ActionEvaluateTrade: {
		query: "You are a fantasy football trade analyst. Grade the proposed trade in the " +
			"inputs from my perspective, considering roster construction, schedules, and " +
			"rest-of-season value. State a clear accept or decline recommendation.",
		arrayFields: []string{"giving", "receiving", "roster"},
		timeout:     90 * time.Second,
	},
	ActionPlayerOutlook: {
		query: "You are a fantasy football analyst. Summarize the rest-of-season outlook " +
			"for the player in the inputs: role, schedule, injury risk, and expected value.",
		arrayFields: []string{"comparable_players"},
		timeout:     60 * time.Second,
	},
	ActionRosterReview: {
		query: "You are a fantasy football roster consultant. Review the roster in the " +
			"inputs against the league settings, flag positional weaknesses, and suggest " +
			"waiver or trade priorities.",
		arrayFields: []string{"roster", "waiver_candidates"},
		timeout:     120 * time.Second,
	},
}

// Known returns whether action is a recognized identifier.
func Known(action string) bool {
	_, ok := actions[action]
	return ok
}

// Timeout returns the overall session deadline for action, or fallback if
// the action is not recognized.
func Timeout(action string, fallback time.Duration) time.Duration {
	if spec, ok := actions[action]; ok && spec.timeout > 0 {
		return spec.timeout
	}
	return fallback
}
