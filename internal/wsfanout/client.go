package wsfanout

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// heartbeatInterval is how often the hub pings idle clients and resets
	// their backpressure counter (spec HEARTBEAT_INTERVAL_MS).
	heartbeatInterval = 30 * time.Second
	// clientTimeout is how long a client may go without sending anything
	// (including pongs) before it is disconnected (spec CLIENT_TIMEOUT_MS).
	clientTimeout = 90 * time.Second
	// backpressureThreshold is the max number of queued sends tolerated
	// between two heartbeat ticks.
	backpressureThreshold = 512

	writeWait  = 10 * time.Second
	sendBuffer = 1024
)

// clientMessage is the envelope for every inbound client frame.
type clientMessage struct {
	Type     string   `json:"type"`
	Token    string   `json:"token,omitempty"`
	Topics   []string `json:"topics,omitempty"`
	Sessions []string `json:"sessions,omitempty"`
	Session  string   `json:"session,omitempty"`
}

// client is one connected WebSocket subscriber.
type client struct {
	hub  *Hub
	conn *websocket.Conn

	send     chan []byte
	ping     chan struct{}
	closeMsg chan []byte
	done     chan struct{}
	once     sync.Once

	mu            sync.Mutex
	authenticated bool
	subscriptions map[string]struct{}
	backpressure  int
}

func newClient(hub *Hub, conn *websocket.Conn) *client {
	return &client{
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, sendBuffer),
		ping:          make(chan struct{}, 1),
		closeMsg:      make(chan []byte, 1),
		done:          make(chan struct{}),
		subscriptions: make(map[string]struct{}),
	}
}

// close is idempotent; safe to call from readPump, writePump, or the hub's
// heartbeat/backpressure paths.
func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// enqueue queues msg for delivery and applies the backpressure rule: a full
// send buffer or a counter that crosses the threshold disconnects the
// client immediately, matching "any thrown send removes the client".
func (c *client) enqueue(msg []byte) {
	c.mu.Lock()
	select {
	case c.send <- msg:
		c.backpressure++
		over := c.backpressure > backpressureThreshold
		c.mu.Unlock()
		if over {
			c.hub.disconnectBackpressure(c)
		}
		return
	default:
	}
	c.mu.Unlock()
	c.hub.disconnectBackpressure(c)
}

func (c *client) resetBackpressure() {
	c.mu.Lock()
	c.backpressure = 0
	c.mu.Unlock()
}

func (c *client) requestPing() {
	select {
	case c.ping <- struct{}{}:
	default:
	}
}

// sendFinal queues msg as the last frame writePump will ever write for this
// client, then stops accepting further writes. Used for the
// BACKPRESSURE_DISCONNECT notice so the close handshake still goes through
// the single writer goroutine instead of racing it.
func (c *client) sendFinal(msg []byte) {
	select {
	case c.closeMsg <- msg:
	default:
	}
}

func (c *client) isAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

func (c *client) authenticate() {
	c.mu.Lock()
	c.authenticated = true
	c.mu.Unlock()
}

// addSubscriptions returns the accepted (non-empty) topics after adding them.
func (c *client) addSubscriptions(topics []string) []string {
	accepted := make([]string, 0, len(topics))
	c.mu.Lock()
	for _, t := range topics {
		if t == "" {
			continue
		}
		c.subscriptions[t] = struct{}{}
		accepted = append(accepted, t)
	}
	c.mu.Unlock()
	return accepted
}

func (c *client) removeSubscriptions(topics []string) []string {
	accepted := make([]string, 0, len(topics))
	c.mu.Lock()
	for _, t := range topics {
		if t == "" {
			continue
		}
		delete(c.subscriptions, t)
		accepted = append(accepted, t)
	}
	c.mu.Unlock()
	return accepted
}

// matchesAny reports whether any of c's subscriptions covers any of topics.
func (c *client) matchesAny(topics []string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for sub := range c.subscriptions {
		for _, t := range topics {
			if topicMatches(sub, t) {
				return true
			}
		}
	}
	return false
}

func (c *client) subscriptionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscriptions)
}

// writePump serializes every frame written to the connection: data
// messages, heartbeat pings, and the close handshake all flow through here
// so gorilla never sees concurrent writers.
func (c *client) writePump() {
	defer c.close()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-c.ping:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case msg := <-c.closeMsg:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.TextMessage, msg)
			return
		case <-c.done:
			return
		}
	}
}

// readPump processes inbound frames and resets the read deadline on any
// activity (message or pong), implementing the 90s client timeout.
func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(clientTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(clientTimeout))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(clientTimeout))

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("Invalid message", "")
			continue
		}
		c.hub.handleMessage(c, msg)
	}
}

func (c *client) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.enqueue(data)
}

func (c *client) sendError(message, code string) {
	payload := map[string]string{"type": "error", "message": message}
	if code != "" {
		payload["code"] = code
	}
	c.sendJSON(payload)
}
