package models

// AgendaStep is one phase of a structured discussion. The agenda is generated
// once when the creator saves the room settings and is immutable afterwards.
type AgendaStep struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	RoomID         string `gorm:"size:36;not null;index" json:"room_id"`
	OrderNum       int    `gorm:"not null" json:"order_num"`
	StepName       string `gorm:"size:100;not null" json:"step_name"`
	PromptQuestion string `gorm:"size:500;not null" json:"prompt_question"`
	AllocatedTime  int    `gorm:"not null" json:"allocated_time"`
}
