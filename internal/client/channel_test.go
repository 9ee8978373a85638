package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"faciliroom/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// fakeGateway upgrades /ws/room/:id and hands the server-side connection to
// the test after consuming the initial join event.
func fakeGateway(t *testing.T) (serverURL string, conns <-chan *websocket.Conn) {
	t.Helper()

	ch := make(chan *websocket.Conn, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasPrefix(r.URL.Path, "/ws/room/"))
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		var env envelope
		require.NoError(t, conn.ReadJSON(&env))
		require.Equal(t, "join_discussion_room", env.Type)

		var join struct {
			RoomID string `json:"room_id"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &join))
		require.Equal(t, strings.TrimPrefix(r.URL.Path, "/ws/room/"), join.RoomID)

		ch <- conn
	}))
	t.Cleanup(srv.Close)
	return srv.URL, ch
}

func awaitConn(t *testing.T, conns <-chan *websocket.Conn) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-conns:
		t.Cleanup(func() { conn.Close() })
		return conn
	case <-time.After(time.Second):
		t.Fatal("gateway never saw the join event")
		return nil
	}
}

func awaitEvent(t *testing.T, ch *Channel) Event {
	t.Helper()
	select {
	case ev, ok := <-ch.Events():
		require.True(t, ok, "event channel closed unexpectedly")
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event arrived")
		return nil
	}
}

func pushFrame(t *testing.T, conn *websocket.Conn, eventType string, data interface{}) {
	t.Helper()
	payload, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(envelope{Type: eventType, Data: payload}))
}

func TestDialChannelAnnouncesAndConnects(t *testing.T) {
	serverURL, conns := fakeGateway(t)

	ch, err := DialChannel(serverURL, "room-1")
	require.NoError(t, err)
	defer ch.Close()
	awaitConn(t, conns)

	assert.Equal(t, Connected{}, awaitEvent(t, ch))
}

func TestChannelDecodesInboundEvents(t *testing.T) {
	serverURL, conns := fakeGateway(t)

	ch, err := DialChannel(serverURL, "room-1")
	require.NoError(t, err)
	defer ch.Close()
	server := awaitConn(t, conns)
	require.Equal(t, Connected{}, awaitEvent(t, ch))

	pushFrame(t, server, "new_message", models.Message{ID: "1", Author: "Bob", Text: "hi", SenderID: "uid-bob"})
	pushFrame(t, server, "progress_update", map[string]int{"finished_count": 1, "total_participants": 2})
	pushFrame(t, server, "room_update", models.Room{ID: "room-1", Status: models.RoomStatusDiscussing})
	pushFrame(t, server, "some_future_event", map[string]string{"x": "y"})
	pushFrame(t, server, "new_message", models.Message{ID: "2", Author: "Bob", Text: "still here", SenderID: "uid-bob"})

	ev := awaitEvent(t, ch)
	require.IsType(t, MessageReceived{}, ev)
	assert.Equal(t, "hi", ev.(MessageReceived).Message.Text)

	assert.Equal(t, ProgressUpdated{FinishedCount: 1, TotalParticipants: 2}, awaitEvent(t, ch))

	ev = awaitEvent(t, ch)
	require.IsType(t, RoomUpdated{}, ev)
	assert.Equal(t, "room-1", ev.(RoomUpdated).Room.ID)

	// The unknown event type was skipped, not fatal.
	ev = awaitEvent(t, ch)
	require.IsType(t, MessageReceived{}, ev)
	assert.Equal(t, "still here", ev.(MessageReceived).Message.Text)
}

func TestChannelOutboundWireFormat(t *testing.T) {
	serverURL, conns := fakeGateway(t)

	ch, err := DialChannel(serverURL, "room-1")
	require.NoError(t, err)
	defer ch.Close()
	server := awaitConn(t, conns)

	msg := models.Message{ID: "1-alice", Author: "Alice", Text: "hello", SenderID: "uid-alice"}
	require.NoError(t, ch.SendMessage(msg))
	require.NoError(t, ch.MarkFinished("uid-alice"))
	require.NoError(t, ch.ResetProgress())

	var env envelope
	require.NoError(t, server.ReadJSON(&env))
	require.Equal(t, "send_message", env.Type)
	var sendPayload struct {
		RoomID  string         `json:"room_id"`
		Message models.Message `json:"message"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &sendPayload))
	assert.Equal(t, "room-1", sendPayload.RoomID)
	assert.Equal(t, msg, sendPayload.Message)

	require.NoError(t, server.ReadJSON(&env))
	require.Equal(t, "finish_step", env.Type)
	var finishPayload struct {
		RoomID        string `json:"room_id"`
		ParticipantID string `json:"participant_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &finishPayload))
	assert.Equal(t, "uid-alice", finishPayload.ParticipantID)

	require.NoError(t, server.ReadJSON(&env))
	assert.Equal(t, "reset_progress_for_next_step", env.Type)
}

func TestChannelDisconnect(t *testing.T) {
	serverURL, conns := fakeGateway(t)

	ch, err := DialChannel(serverURL, "room-1")
	require.NoError(t, err)
	defer ch.Close()
	server := awaitConn(t, conns)
	require.Equal(t, Connected{}, awaitEvent(t, ch))

	server.Close()

	assert.Equal(t, Disconnected{}, awaitEvent(t, ch))
	_, ok := <-ch.Events()
	assert.False(t, ok, "event channel closes after Disconnected")
}

func TestChannelClose(t *testing.T) {
	serverURL, conns := fakeGateway(t)

	ch, err := DialChannel(serverURL, "room-1")
	require.NoError(t, err)
	awaitConn(t, conns)

	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close(), "closing twice is safe")

	err = ch.SendMessage(models.Message{Text: "too late"})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestChannelCloseUnblocksReadLoop(t *testing.T) {
	serverURL, conns := fakeGateway(t)

	ch, err := DialChannel(serverURL, "room-1")
	require.NoError(t, err)
	server := awaitConn(t, conns)

	// Flood well past the event buffer while the consumer drains nothing.
	for i := 0; i < 200; i++ {
		pushFrame(t, server, "new_message", models.Message{
			ID: fmt.Sprintf("%d-bob", i), Author: "Bob", Text: "spam", SenderID: "uid-bob",
		})
	}

	require.NoError(t, ch.Close())

	// The read loop must wind down and close the event stream even though
	// the flood was never consumed.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("event stream never closed")
		}
	}
}

func TestDialChannelRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := DialChannel(srv.URL, "room-1")
	assert.ErrorContains(t, err, "failed to connect to gateway")
}

func TestGatewayURL(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"http://localhost:8080", "ws://localhost:8080/ws/room/room-1"},
		{"https://rooms.example.com", "wss://rooms.example.com/ws/room/room-1"},
		{"http://localhost:8080/", "ws://localhost:8080/ws/room/room-1"},
	}
	for _, tc := range cases {
		got, err := gatewayURL(tc.in, "room-1")
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}
