// Package wsfanout implements the daemon's WebSocket event fan-out: a
// topic-based pub/sub hub that relays internal/event bus traffic to
// connected clients.
//
// It is a pure subscriber of internal/event (via event.SubscribeAll) and
// knows nothing about sessions, providers, or the executor directly —
// every event it forwards is translated into one or more dotted-colon
// topics by topicsForEvent. Lifecycle, auth, heartbeat, and backpressure
// follow the gorilla/websocket upgrade-and-pump pattern shared by this
// pack's telnet2-opencode/go-memsh/api/handlers.go and
// wingedpig-trellis/internal/api/handlers/events.go.
package wsfanout
