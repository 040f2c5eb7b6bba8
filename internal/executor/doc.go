// Package executor implements the injection executor: the heart of the
// daemon that turns one (session, message) pair into a provider response.
//
// It wires together, in order, internal/security (session access check),
// internal/contextpipeline (context assembly), internal/middleware
// (incoming/outgoing hooks), internal/provider (resolution + streaming),
// and internal/sessionstore (conversation log + session state), following
// the fifteen-step contract: security check, abort check, payload
// normalization, new-session event, context assembly, incoming
// middleware, user-message log, prompt composition, provider resolution,
// idle-timeout-guarded streaming loop with stale-resume recovery,
// outgoing middleware, response log, last-trigger watermark update, and
// a guaranteed security-context clear on every exit path.
//
// Grounded on the teacher's internal/session/loop.go runLoop (retry
// around a streaming call, finish-reason switch, message persistence)
// and internal/session/stream.go's event-processing loop, restructured
// around WOPR's own pipeline stages.
package executor
