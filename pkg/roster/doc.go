// Package roster maintains a local player and schedule store used to
// enrich assist payloads before they are sent upstream.
//
// The store is backed by SQLite and seeded from a JSON file. When watching
// is enabled, edits to the seed file are picked up automatically and the
// store is reloaded in place.
package roster
