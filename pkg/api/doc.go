// Package api exposes the assist HTTP surface. It decodes assist
// requests, enriches payloads from the roster store, and hands sessions
// to the relay engine in buffered or pass-through mode.
package api
