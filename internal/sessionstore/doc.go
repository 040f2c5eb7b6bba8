// Package sessionstore is the daemon's leaf persistence layer for named
// sessions: the name -> conversation-id index, per-session context text,
// per-session provider config, and the append-only conversation log.
//
// Index, context, provider and last-trigger writes are atomic (temp file +
// rename), grounded on the same idiom as internal/storage; the
// conversation log is appended in place and the creation timestamp file is
// written directly. A session's creation timestamp is write-once: once
// recorded it is never touched by a later saveSessionID, matching the
// invariant that a session's created-at never moves.
package sessionstore
