// Package queue is the injection pipeline's FIFO scheduler: at most one
// active injection per session at any instant, parallel across sessions,
// with cooperative cancellation of the active entry.
//
// Grounded on the session processor pattern in the teacher's
// internal/session/processor.go (a per-session active-state map with
// waiter channels for callers that arrive while a session is busy), but
// restructured from "wake one waiter, which re-enters and races for the
// lock" into an explicit ordered queue per session. The teacher's retry
// loop does not guarantee FIFO order among multiple waiters that wake
// concurrently; this queue orders entries explicitly so within-session
// completion order always matches enqueue order, per the ordering
// guarantee this daemon depends on.
package queue
