// Package upstream implements the connection to the hosted chat service:
// opening a single streaming POST, validating the response before any
// frames are consumed, and incrementally parsing the event-stream wire
// format into discrete frames.
//
// The package deliberately does not retry: a failed call is surfaced once
// with a typed error and retry policy is left to the caller.
package upstream
