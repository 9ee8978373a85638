package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// dialPair returns a client connection and the matching server-side connection
// obtained through an httptest upgrade.
func dialPair(t *testing.T) (client, server *websocket.Conn) {
	t.Helper()

	serverConns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case server = <-serverConns:
	case <-time.After(time.Second):
		t.Fatal("server connection never arrived")
	}
	return client, server
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg WSMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()

	client1, server1 := dialPair(t)
	client2, server2 := dialPair(t)
	hub.AddConnection("room-1", server1)
	hub.AddConnection("room-1", server2)
	require.Equal(t, 2, hub.ConnectionCount("room-1"))

	hub.Broadcast("room-1", WSMessage{Type: "new_message", Data: map[string]string{"text": "hi"}})

	for _, client := range []*websocket.Conn{client1, client2} {
		msg := readMessage(t, client)
		assert.Equal(t, "new_message", msg.Type)
	}
}

func TestHubBroadcastIsRoomScoped(t *testing.T) {
	hub := NewHub()

	client1, server1 := dialPair(t)
	client2, server2 := dialPair(t)
	hub.AddConnection("room-1", server1)
	hub.AddConnection("room-2", server2)

	hub.Broadcast("room-1", WSMessage{Type: "progress_update"})

	msg := readMessage(t, client1)
	assert.Equal(t, "progress_update", msg.Type)

	client2.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := client2.ReadMessage()
	assert.Error(t, err, "other rooms must not receive the broadcast")
}

func TestHubSend(t *testing.T) {
	hub := NewHub()

	client, server := dialPair(t)
	hub.AddConnection("room-1", server)

	require.NoError(t, hub.Send(server, WSMessage{Type: "room_update"}))
	msg := readMessage(t, client)
	assert.Equal(t, "room_update", msg.Type)
}

func TestHubRemoveConnection(t *testing.T) {
	hub := NewHub()

	_, server := dialPair(t)
	hub.AddConnection("room-1", server)
	hub.RemoveConnection("room-1", server)
	assert.Equal(t, 0, hub.ConnectionCount("room-1"))

	// Removing twice, or broadcasting into an empty room, must not panic.
	hub.RemoveConnection("room-1", server)
	hub.Broadcast("room-1", WSMessage{Type: "new_message"})
}

func TestHubDropsDeadConnections(t *testing.T) {
	hub := NewHub()

	client, server := dialPair(t)
	hub.AddConnection("room-1", server)

	client.Close()
	server.Close()

	// The first failed write evicts the connection.
	hub.Broadcast("room-1", WSMessage{Type: "new_message"})
	assert.Equal(t, 0, hub.ConnectionCount("room-1"))
}
