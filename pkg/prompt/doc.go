// Package prompt builds upstream request bodies for draft-assistant
// actions. Building is a pure function of the action, the structured
// payload, and a set of named size limits: oversized arrays and strings
// are truncated rather than rejected, and array elements are slimmed to an
// allow-listed set of fields before submission.
package prompt
