package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"

	"faciliroom/internal/models"

	"github.com/gorilla/websocket"
)

var ErrNotConnected = errors.New("realtime channel is not connected")

// Channel is the realtime adapter for one room visit: a single websocket to
// the gateway, inbound envelopes decoded into Events, outbound actions
// encoded into the gateway's wire contract. One Channel per successful
// bootstrap; Close tears it down on every exit path.
type Channel struct {
	roomID string
	conn   *websocket.Conn
	events chan Event
	quit   chan struct{}

	writeMu sync.Mutex
	closed  bool
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type wireProgress struct {
	FinishedCount     int `json:"finished_count"`
	TotalParticipants int `json:"total_participants"`
}

// DialChannel connects to the gateway for roomID and announces the visit with
// a join_discussion_room event. No acknowledgement is awaited: the channel is
// usable as soon as the dial succeeds.
func DialChannel(serverURL, roomID string) (*Channel, error) {
	wsURL, err := gatewayURL(serverURL, roomID)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to gateway: %w", err)
	}

	c := &Channel{
		roomID: roomID,
		conn:   conn,
		events: make(chan Event, 64),
		quit:   make(chan struct{}),
	}

	if err := c.send("join_discussion_room", map[string]string{"room_id": roomID}); err != nil {
		conn.Close()
		return nil, err
	}

	c.events <- Connected{}
	go c.readLoop()

	return c, nil
}

// Events delivers inbound gateway events in arrival order. The channel is
// closed after a Disconnected event when the connection goes away.
func (c *Channel) Events() <-chan Event {
	return c.events
}

func (c *Channel) readLoop() {
	defer func() {
		c.deliver(Disconnected{})
		close(c.events)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("channel: dropping malformed frame: %v", err)
			continue
		}

		switch env.Type {
		case "new_message":
			var msg models.Message
			if err := json.Unmarshal(env.Data, &msg); err != nil {
				continue
			}
			if !c.deliver(MessageReceived{Message: msg}) {
				return
			}

		case "progress_update":
			var p wireProgress
			if err := json.Unmarshal(env.Data, &p); err != nil {
				continue
			}
			if !c.deliver(ProgressUpdated{
				FinishedCount:     p.FinishedCount,
				TotalParticipants: p.TotalParticipants,
			}) {
				return
			}

		case "room_update":
			var room models.Room
			if err := json.Unmarshal(env.Data, &room); err != nil {
				continue
			}
			if !c.deliver(RoomUpdated{Room: room}) {
				return
			}

		default:
			// Unknown event types from newer gateways are ignored.
		}
	}
}

// deliver hands an event to the consumer, giving up when the channel is
// closed; a consumer that stopped draining must not pin the read loop.
func (c *Channel) deliver(ev Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.quit:
		return false
	}
}

// SendMessage transmits a chat message. The caller is responsible for the
// optimistic local echo; the payload carries the sender id so every other
// client can tell it is not their own.
func (c *Channel) SendMessage(msg models.Message) error {
	return c.send("send_message", map[string]interface{}{
		"room_id": c.roomID,
		"message": msg,
	})
}

// MarkFinished signals completion of the current step for participantID.
func (c *Channel) MarkFinished(participantID string) error {
	return c.send("finish_step", map[string]string{
		"room_id":        c.roomID,
		"participant_id": participantID,
	})
}

// ResetProgress tells the aggregator to zero the counts for the next step.
// The receiving side treats duplicate resets as no-ops, so every client that
// observes the advancement threshold may safely emit its own.
func (c *Channel) ResetProgress() error {
	return c.send("reset_progress_for_next_step", map[string]string{
		"room_id": c.roomID,
	})
}

func (c *Channel) send(eventType string, data interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed {
		return ErrNotConnected
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return c.conn.WriteJSON(envelope{Type: eventType, Data: payload})
}

// Close shuts the channel down. Safe to call more than once; sends after
// Close fail with ErrNotConnected instead of panicking.
func (c *Channel) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.quit)
	return c.conn.Close()
}

func gatewayURL(serverURL, roomID string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/room/" + roomID
	return u.String(), nil
}
