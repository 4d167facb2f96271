// Package compaction keeps rolling conversation sessions inside the token
// budget.
//
// The Manager re-evaluates a session from scratch on every turn: a session
// under the trigger threshold passes through untouched; one over the
// threshold goes through hybrid compaction. Hybrid compaction reserves the
// most recent pairs verbatim, partitions everything older into important
// pairs (kept verbatim) and normal pairs (replaced by a model-written
// summary), and recomposes the session as summary, important, recent.
//
// There is no persisted compaction state. Each turn decides again from the
// stored session, which makes the process idempotent and restart-safe, and
// lets budget mis-estimation correct itself on the next turn instead of
// being an error.
//
// Compaction failures never escape the Manager: a failed summarization or
// store write logs the cause and leaves the previous session in place. In
// a counseling product an oversized context is a recoverable condition; a
// dropped conversation is not.
package compaction
