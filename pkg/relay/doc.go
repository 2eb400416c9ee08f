// Package relay implements the streaming-proxy and buffering engine: it
// opens an upstream session, drives the frame parser from a single read
// loop, and consumes frames with one of two strategies: pass-through
// re-framing to the caller's sink, or full buffering into one aggregated
// result. Three cancellation triggers (connect watchdog, overall deadline,
// caller disconnect) compose into one token whose terminal state determines
// what, if anything, is surfaced to the caller.
//
// Each call runs as one independent session; sessions share no mutable
// state with each other.
package relay
