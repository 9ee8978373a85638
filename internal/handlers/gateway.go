package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"faciliroom/internal/models"
	"faciliroom/internal/services"
	"faciliroom/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// historyLimit caps the per-room chat history kept for facilitator replies.
const historyLimit = 20

// GatewayHandler is the realtime side of a room: one websocket per connected
// client, JSON envelopes both ways. Inbound events are join_discussion_room,
// send_message, finish_step and reset_progress_for_next_step; outbound events
// are new_message, progress_update and room_update. When the AI is available
// the facilitator reacts to chat messages with its own new_message.
type GatewayHandler struct {
	roomService *services.RoomService
	progress    *services.ProgressService
	agenda      *services.AgendaService
	hub         *ws.Hub

	historyMu sync.Mutex
	history   map[string][]models.Message
}

func NewGatewayHandler(roomService *services.RoomService, progress *services.ProgressService, agenda *services.AgendaService, hub *ws.Hub) *GatewayHandler {
	return &GatewayHandler{
		roomService: roomService,
		progress:    progress,
		agenda:      agenda,
		hub:         hub,
		history:     make(map[string][]models.Message),
	}
}

type inboundEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type joinPayload struct {
	RoomID string `json:"room_id"`
}

type sendMessagePayload struct {
	RoomID  string         `json:"room_id"`
	Message models.Message `json:"message"`
}

type finishStepPayload struct {
	RoomID        string `json:"room_id"`
	ParticipantID string `json:"participant_id"`
}

type resetProgressPayload struct {
	RoomID string `json:"room_id"`
}

type progressPayload struct {
	FinishedCount     int `json:"finished_count"`
	TotalParticipants int `json:"total_participants"`
}

// HandleRoomWebSocket godoc
// @Summary      Realtime channel for a discussion room
// @Description  Upgrade to websocket; emit join_discussion_room to attach
// @Tags         websocket
// @Param        id path string true "Room ID"
// @Router       /ws/room/{id} [get]
func (h *GatewayHandler) HandleRoomWebSocket(c *gin.Context) {
	roomID := c.Param("id")
	if _, err := h.roomService.GetRoom(roomID); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	joined := false
	defer func() {
		if joined {
			h.hub.RemoveConnection(roomID, conn)
		} else {
			conn.Close()
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var ev inboundEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Printf("ws: dropping malformed event: %v", err)
			continue
		}

		switch ev.Type {
		case "join_discussion_room":
			var p joinPayload
			if err := json.Unmarshal(ev.Data, &p); err != nil || p.RoomID != roomID {
				continue
			}
			if !joined {
				h.hub.AddConnection(roomID, conn)
				joined = true
			}
			// Bring the newcomer up to date without waiting for traffic.
			if room, err := h.roomService.GetRoom(roomID); err == nil {
				h.hub.Send(conn, ws.WSMessage{Type: "room_update", Data: room})
			}
			h.hub.Send(conn, ws.WSMessage{Type: "progress_update", Data: h.snapshot(roomID)})

		case "send_message":
			if !joined {
				continue
			}
			var p sendMessagePayload
			if err := json.Unmarshal(ev.Data, &p); err != nil || p.Message.Text == "" {
				continue
			}
			h.hub.Broadcast(roomID, ws.WSMessage{Type: "new_message", Data: p.Message})
			h.remember(roomID, p.Message)
			if h.agenda.IsAvailable() {
				go h.facilitate(roomID)
			}

		case "finish_step":
			if !joined {
				continue
			}
			var p finishStepPayload
			if err := json.Unmarshal(ev.Data, &p); err != nil || p.ParticipantID == "" {
				continue
			}
			// Only room members may move the progress count; an arbitrary
			// uid must never be able to satisfy the advancement threshold.
			if _, err := h.roomService.GetParticipant(roomID, p.ParticipantID); err != nil {
				log.Printf("ws: finish_step from non-member %s in room %s", p.ParticipantID, roomID)
				continue
			}
			if h.progress.MarkFinished(roomID, p.ParticipantID) {
				h.hub.Broadcast(roomID, ws.WSMessage{Type: "progress_update", Data: h.snapshot(roomID)})
			}

		case "reset_progress_for_next_step":
			if !joined {
				continue
			}
			h.progress.Reset(roomID)
			h.hub.Broadcast(roomID, ws.WSMessage{Type: "progress_update", Data: h.snapshot(roomID)})

		default:
			log.Printf("ws: unknown event type %q", ev.Type)
		}
	}
}

func (h *GatewayHandler) snapshot(roomID string) progressPayload {
	return progressPayload{
		FinishedCount:     h.progress.FinishedCount(roomID),
		TotalParticipants: h.roomService.CountParticipants(roomID),
	}
}

// remember appends a message to the room's recent history, bounded at
// historyLimit entries.
func (h *GatewayHandler) remember(roomID string, msg models.Message) {
	h.historyMu.Lock()
	defer h.historyMu.Unlock()

	history := append(h.history[roomID], msg)
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	h.history[roomID] = history
}

// facilitate asks the AI for a reaction to the room's recent messages and
// broadcasts it as a facilitator message. Failures only cost the reply.
func (h *GatewayHandler) facilitate(roomID string) {
	room, err := h.roomService.GetRoom(roomID)
	if err != nil {
		return
	}

	h.historyMu.Lock()
	history := make([]models.Message, len(h.history[roomID]))
	copy(history, h.history[roomID])
	h.historyMu.Unlock()

	reply, err := h.agenda.FacilitatorReply(room.Topic, history)
	if err != nil {
		log.Printf("ws: facilitator reply failed for room %s: %v", roomID, err)
		return
	}

	msg := models.Message{
		ID:     fmt.Sprintf("facilitator-reply-%d", time.Now().UnixMilli()),
		Author: models.FacilitatorName,
		Text:   reply,
	}
	h.remember(roomID, msg)
	h.hub.Broadcast(roomID, ws.WSMessage{Type: "new_message", Data: msg})
}
