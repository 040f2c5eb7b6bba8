package wsfanout

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/wopr-network/wopr/internal/event"
)

const testToken = "secret"

func allowToken(token string) bool { return token == testToken }

func newTestHub(t *testing.T) (*Hub, string) {
	t.Helper()
	event.Reset()
	hub := New(allowToken)
	t.Cleanup(hub.Close)

	ts := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	return hub, wsURL
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHubSendsConnectedOnUpgrade(t *testing.T) {
	_, wsURL := newTestHub(t)
	conn := dial(t, wsURL)

	msg := readJSON(t, conn)
	require.Equal(t, "connected", msg["type"])
}

func TestHubSubscribeBeforeAuthIsRejected(t *testing.T) {
	_, wsURL := newTestHub(t)
	conn := dial(t, wsURL)
	readJSON(t, conn) // connected

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "subscribe", "topics": []string{"instances"}}))
	msg := readJSON(t, conn)
	require.Equal(t, "error", msg["type"])
	require.Equal(t, "Not authenticated", msg["message"])
}

func TestHubAuthThenSubscribeAcksAcceptedTopics(t *testing.T) {
	_, wsURL := newTestHub(t)
	conn := dial(t, wsURL)
	readJSON(t, conn) // connected

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "auth", "token": testToken}))
	auth := readJSON(t, conn)
	require.Equal(t, "auth", auth["type"])
	require.Equal(t, true, auth["ok"])

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":   "subscribe",
		"topics": []string{"instance:s1", "", "instances"},
	}))
	ack := readJSON(t, conn)
	require.Equal(t, "subscribed", ack["type"])
	topics := toStringSlice(ack["topics"])
	require.ElementsMatch(t, []string{"instance:s1", "instances"}, topics)
}

func TestHubAuthFailureSendsError(t *testing.T) {
	_, wsURL := newTestHub(t)
	conn := dial(t, wsURL)
	readJSON(t, conn) // connected

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "auth", "token": "wrong"}))
	msg := readJSON(t, conn)
	require.Equal(t, "error", msg["type"])
}

func TestHubDeliversMatchingBroadcastAfterSubscribe(t *testing.T) {
	_, wsURL := newTestHub(t)
	conn := dial(t, wsURL)
	readJSON(t, conn) // connected

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "auth", "token": testToken}))
	readJSON(t, conn) // auth ack

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "subscribe", "session": "s1"}))
	readJSON(t, conn) // subscribed ack

	event.PublishSync(event.Event{
		Type: event.SessionResponseChunk,
		Data: event.SessionResponseChunkData{Session: "s1", Kind: event.StreamDelta, Text: "hello"},
	})

	msg := readJSON(t, conn)
	require.Equal(t, "event", msg["type"])
}

func TestHubDoesNotDeliverNonMatchingTopic(t *testing.T) {
	_, wsURL := newTestHub(t)
	conn := dial(t, wsURL)
	readJSON(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "auth", "token": testToken}))
	readJSON(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "subscribe", "session": "other"}))
	readJSON(t, conn)

	event.PublishSync(event.Event{
		Type: event.SessionResponseChunk,
		Data: event.SessionResponseChunkData{Session: "s1", Kind: event.StreamDelta, Text: "hello"},
	})

	// Ping/pong exercise confirms the connection is alive without receiving
	// the unrelated broadcast.
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping"}))
	msg := readJSON(t, conn)
	require.Equal(t, "pong", msg["type"])
}

func TestHubPingPong(t *testing.T) {
	_, wsURL := newTestHub(t)
	conn := dial(t, wsURL)
	readJSON(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping"}))
	msg := readJSON(t, conn)
	require.Equal(t, "pong", msg["type"])
}

func TestHubClientCountTracksConnections(t *testing.T) {
	hub, wsURL := newTestHub(t)
	require.Eventually(t, func() bool { return hub.GetClientCount() == 0 }, time.Second, 10*time.Millisecond)

	conn := dial(t, wsURL)
	readJSON(t, conn)
	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.GetClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHubBackpressureDisconnectsClient(t *testing.T) {
	hub, wsURL := newTestHub(t)
	conn := dial(t, wsURL)
	readJSON(t, conn) // connected

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "auth", "token": testToken}))
	readJSON(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "subscribe", "topics": []string{"*"}}))
	readJSON(t, conn)

	for i := 0; i < backpressureThreshold+1; i++ {
		event.PublishSync(event.Event{
			Type: event.SessionResponseChunk,
			Data: event.SessionResponseChunkData{Session: "s1", Kind: event.StreamDelta, Text: "x"},
		})
	}

	sawDisconnect := false
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		if msg["type"] == "error" && msg["code"] == "BACKPRESSURE_DISCONNECT" {
			sawDisconnect = true
			break
		}
	}
	require.True(t, sawDisconnect)
	require.Eventually(t, func() bool { return hub.GetClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHubHeartbeatResetsBackpressureCounter(t *testing.T) {
	hub, wsURL := newTestHub(t)
	conn := dial(t, wsURL)
	readJSON(t, conn)
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "auth", "token": testToken}))
	readJSON(t, conn)
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "subscribe", "topics": []string{"*"}}))
	readJSON(t, conn)

	var target *client
	hub.mu.Lock()
	for c := range hub.clients {
		target = c
	}
	hub.mu.Unlock()
	require.NotNil(t, target)

	target.mu.Lock()
	target.backpressure = backpressureThreshold
	target.mu.Unlock()

	target.resetBackpressure()

	target.mu.Lock()
	got := target.backpressure
	target.mu.Unlock()
	require.Equal(t, 0, got)
}

func toStringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
