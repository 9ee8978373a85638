package models

import "time"

type Room struct {
	ID           string        `gorm:"primaryKey;size:36" json:"id"`
	CreatorUID   string        `gorm:"size:36;not null;index" json:"creator_uid"`
	Topic        string        `gorm:"size:255" json:"topic"`
	Duration     int           `gorm:"not null;default:0" json:"duration"`
	Status       string        `gorm:"size:20;not null;default:'setup'" json:"status"`
	Participants []Participant `gorm:"foreignKey:RoomID" json:"participants,omitempty"`
	Agenda       []AgendaStep  `gorm:"foreignKey:RoomID" json:"agenda,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

const (
	RoomStatusSetup      = "setup"
	RoomStatusDiscussing = "discussing"
	RoomStatusFinished   = "finished"

	// MaxParticipants caps a room; the creator counts as the first member.
	MaxParticipants = 5
)

type Participant struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	RoomID   string    `gorm:"size:36;not null;index" json:"room_id"`
	UID      string    `gorm:"size:36;not null" json:"uid"`
	Username string    `gorm:"size:100;not null" json:"username"`
	JoinedAt time.Time `json:"joined_at"`
}
