// Package transcript keeps diagnostic transcripts of relay sessions: an
// in-memory bounded ring of recent entries per correlation id, and an
// optional SQLite archive of finished sessions with scheduled retention
// pruning. Transcripts hold breadcrumbs and frame summaries, not
// conversation content.
package transcript
