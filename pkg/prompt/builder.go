package prompt

import (
	"encoding/json"
	"fmt"

	"gridiron-hq/oracle/pkg/upstream"
)

// Limits contains the named size-reduction limits applied to payloads
// before submission. Oversized inputs are truncated, never rejected.
type Limits struct {
	// MaxArrayItems caps the length of element arrays.
	// Default: 200
	MaxArrayItems int

	// MaxStringLen caps the length of string fields, in bytes.
	// Default: 2000
	MaxStringLen int
}

// DefaultLimits returns the default size limits.
func DefaultLimits() Limits {
	return Limits{
		MaxArrayItems: 200,
		MaxStringLen:  2000,
	}
}

// elementAllowList is the set of object fields retained per array element.
// Everything else is dropped before the payload leaves the process.
var elementAllowList = map[string]bool{
	"name":             true,
	"position":         true,
	"team":             true,
	"rank":             true,
	"adp":              true,
	"bye_week":         true,
	"projected_points": true,
	"injury_status":    true,
	"opponent":         true,
}

// Observations reports size signals emitted while building, for the caller
// to log. Building has no other side effects.
type Observations struct {
	// BodyBytes is the encoded size of the final request body.
	BodyBytes int

	// TruncatedArrays counts arrays that exceeded MaxArrayItems.
	TruncatedArrays int

	// TruncatedStrings counts strings that exceeded MaxStringLen.
	TruncatedStrings int
}

// Build constructs the upstream request body for an action. It is a pure,
// deterministic function of its arguments: the same action, payload, and
// limits always produce the same body.
//
// It fails with UnknownActionError when the action identifier is not
// recognized.
func Build(action string, payload map[string]any, conversationID, user string, streaming bool, limits Limits) (*upstream.ChatRequest, Observations, error) {
	spec, ok := actions[action]
	if !ok {
		return nil, Observations{}, &UnknownActionError{Action: action}
	}

	if limits.MaxArrayItems <= 0 {
		limits.MaxArrayItems = DefaultLimits().MaxArrayItems
	}
	if limits.MaxStringLen <= 0 {
		limits.MaxStringLen = DefaultLimits().MaxStringLen
	}

	var obs Observations
	inputs := make(map[string]any, len(payload))
	for key, value := range payload {
		inputs[key] = slimValue(key, value, spec, limits, &obs)
	}

	mode := upstream.ResponseModeBlocking
	if streaming {
		mode = upstream.ResponseModeStreaming
	}

	req := &upstream.ChatRequest{
		Query:          spec.query,
		Inputs:         inputs,
		ResponseMode:   mode,
		ConversationID: conversationID,
		User:           user,
	}

	encoded, err := json.Marshal(req)
	if err != nil {
		return nil, Observations{}, fmt.Errorf("failed to encode request body: %w", err)
	}
	obs.BodyBytes = len(encoded)

	return req, obs, nil
}

// slimValue applies the size-reduction policies to one payload field.
func slimValue(key string, value any, spec actionSpec, limits Limits, obs *Observations) any {
	switch v := value.(type) {
	case string:
		return truncateString(v, limits.MaxStringLen, obs)
	case []any:
		if isElementArray(key, spec) {
			return slimElements(v, limits, obs)
		}
		if len(v) > limits.MaxArrayItems {
			obs.TruncatedArrays++
			v = v[:limits.MaxArrayItems]
		}
		return v
	default:
		return value
	}
}

// isElementArray reports whether key is one of the action's element-array
// fields subject to per-element field allow-listing.
func isElementArray(key string, spec actionSpec) bool {
	for _, field := range spec.arrayFields {
		if field == key {
			return true
		}
	}
	return false
}

// slimElements truncates an element array to the configured maximum,
// preserving original order, and retains only allow-listed fields from
// each object element. Elements that are not objects pass through with
// string truncation only.
func slimElements(elements []any, limits Limits, obs *Observations) []any {
	if len(elements) > limits.MaxArrayItems {
		obs.TruncatedArrays++
		elements = elements[:limits.MaxArrayItems]
	}

	slimmed := make([]any, 0, len(elements))
	for _, element := range elements {
		obj, ok := element.(map[string]any)
		if !ok {
			if s, isStr := element.(string); isStr {
				slimmed = append(slimmed, truncateString(s, limits.MaxStringLen, obs))
			} else {
				slimmed = append(slimmed, element)
			}
			continue
		}

		kept := make(map[string]any, len(obj))
		for field, fieldValue := range obj {
			if !elementAllowList[field] {
				continue
			}
			if s, isStr := fieldValue.(string); isStr {
				fieldValue = truncateString(s, limits.MaxStringLen, obs)
			}
			kept[field] = fieldValue
		}
		slimmed = append(slimmed, kept)
	}
	return slimmed
}

// truncateString caps s at max bytes.
func truncateString(s string, max int, obs *Observations) string {
	if len(s) <= max {
		return s
	}
	obs.TruncatedStrings++
	return s[:max]
}
