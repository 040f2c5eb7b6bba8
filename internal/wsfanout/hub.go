package wsfanout

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wopr-network/wopr/internal/event"
	"github.com/wopr-network/wopr/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// TokenVerifier checks a client-supplied auth token. It is pluggable so the
// handshake can be exercised in tests without a real credential store.
type TokenVerifier func(token string) bool

// Stats is the observability snapshot returned by GetSubscriptionStats.
type Stats struct {
	Clients            int `json:"clients"`
	TotalSubscriptions int `json:"totalSubscriptions"`
	Backpressured      int `json:"backpressured"`
}

// Hub fans out internal/event bus traffic to subscribed WebSocket clients.
// It is itself a pure subscriber of the bus: it never calls back into the
// executor, queue, or scheduler.
type Hub struct {
	verifier TokenVerifier

	mu      sync.Mutex
	clients map[*client]struct{}

	unsubscribeBus func()
	stopHeartbeat  chan struct{}
}

// New returns a Hub wired to the global event bus and starts its heartbeat
// loop. Callers must call Close on shutdown.
func New(verifier TokenVerifier) *Hub {
	h := &Hub{
		verifier:      verifier,
		clients:       make(map[*client]struct{}),
		stopHeartbeat: make(chan struct{}),
	}
	h.unsubscribeBus = event.SubscribeAll(h.broadcast)
	go h.heartbeatLoop()
	return h
}

// Close unsubscribes from the event bus, stops the heartbeat loop, and
// closes every connected client.
func (h *Hub) Close() {
	if h.unsubscribeBus != nil {
		h.unsubscribeBus()
	}
	close(h.stopHeartbeat)

	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

// ServeHTTP upgrades the request to a WebSocket connection and runs the
// client's read pump on the calling goroutine until disconnect.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := newClient(h, conn)
	h.add(c)
	go c.writePump()

	c.sendJSON(map[string]string{"type": "connected"})
	c.readPump()
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// GetClientCount returns the number of currently connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// GetSubscriptionStats returns an observability snapshot across all
// connected clients.
func (h *Hub) GetSubscriptionStats() Stats {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	stats := Stats{Clients: len(clients)}
	for _, c := range clients {
		stats.TotalSubscriptions += c.subscriptionCount()
		c.mu.Lock()
		if c.backpressure > backpressureThreshold {
			stats.Backpressured++
		}
		c.mu.Unlock()
	}
	return stats
}

// handleMessage dispatches one parsed client frame.
func (h *Hub) handleMessage(c *client, msg clientMessage) {
	switch msg.Type {
	case "auth":
		if h.verifier == nil || !h.verifier(msg.Token) {
			c.sendError("Invalid token", "")
			return
		}
		c.authenticate()
		c.sendJSON(map[string]any{"type": "auth", "ok": true})

	case "subscribe":
		if !c.isAuthenticated() {
			c.sendError("Not authenticated", "")
			return
		}
		accepted := c.addSubscriptions(requestedTopics(msg))
		c.sendJSON(map[string]any{"type": "subscribed", "topics": accepted})

	case "unsubscribe":
		if !c.isAuthenticated() {
			c.sendError("Not authenticated", "")
			return
		}
		accepted := c.removeSubscriptions(requestedTopics(msg))
		c.sendJSON(map[string]any{"type": "unsubscribed", "topics": accepted})

	case "ping":
		c.sendJSON(map[string]string{"type": "pong"})

	default:
		c.sendError("Unknown message type", "")
	}
}

// requestedTopics normalizes the three client-facing subscribe shapes
// (topics, sessions, session) into a flat topic list, filtering blanks.
func requestedTopics(msg clientMessage) []string {
	out := make([]string, 0, len(msg.Topics)+len(msg.Sessions)+1)
	for _, t := range msg.Topics {
		if t != "" {
			out = append(out, t)
		}
	}
	for _, s := range msg.Sessions {
		if s != "" {
			out = append(out, "session:"+s)
		}
	}
	if msg.Session != "" {
		out = append(out, "session:"+msg.Session)
	}
	return out
}

// broadcast is the event.SubscribeAll callback: it translates one bus event
// into its topics and forwards it to every matching client once.
func (h *Hub) broadcast(ev event.Event) {
	topics := topicsForEvent(ev)
	if len(topics) == 0 {
		return
	}

	data, err := json.Marshal(map[string]any{
		"type":  "event",
		"topic": topics[0],
		"event": ev,
	})
	if err != nil {
		logging.Warn().Err(err).Str("eventType", string(ev.Type)).Msg("wsfanout: failed to marshal event")
		return
	}

	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if c.matchesAny(topics) {
			c.enqueue(data)
		}
	}
}

// disconnectBackpressure queues a final BACKPRESSURE_DISCONNECT error as
// the last frame writePump will send (never writing to the connection
// directly itself, to preserve the single-writer invariant) and removes
// the client from the hub immediately so no further event reaches it.
func (h *Hub) disconnectBackpressure(c *client) {
	payload, _ := json.Marshal(map[string]string{
		"type":    "error",
		"message": "backpressure limit exceeded",
		"code":    "BACKPRESSURE_DISCONNECT",
	})
	h.remove(c)
	c.sendFinal(payload)
}

// heartbeatLoop pings every connected client and resets its backpressure
// counter each tick (spec: "counter is zeroed on each heartbeat tick").
func (h *Hub) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.mu.Lock()
			clients := make([]*client, 0, len(h.clients))
			for c := range h.clients {
				clients = append(clients, c)
			}
			h.mu.Unlock()

			for _, c := range clients {
				c.resetBackpressure()
				c.requestPing()
			}
		case <-h.stopHeartbeat:
			return
		}
	}
}
