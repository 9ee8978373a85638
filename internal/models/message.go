package models

// FacilitatorName is the reserved author name for prompts pushed by the
// facilitator itself rather than by a participant.
const FacilitatorName = "AI Facilitator"

// Message is a chat message in flight. Messages live only for the duration of
// a connected discussion; they are never persisted.
type Message struct {
	ID       string `json:"id"`
	Author   string `json:"author"`
	Text     string `json:"text"`
	SenderID string `json:"sender_id,omitempty"`
}
