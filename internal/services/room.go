package services

import (
	"errors"
	"fmt"
	"time"

	"faciliroom/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrRoomNotFound = errors.New("room not found")

type RoomService struct {
	db     *gorm.DB
	agenda *AgendaService
}

func NewRoomService(db *gorm.DB, agenda *AgendaService) *RoomService {
	return &RoomService{db: db, agenda: agenda}
}

func (s *RoomService) CreateRoom(creatorUID, username string) (*models.Room, error) {
	if username == "" {
		return nil, errors.New("username is required")
	}

	room := models.Room{
		ID:         uuid.NewString(),
		CreatorUID: creatorUID,
		Status:     models.RoomStatusSetup,
	}
	if err := s.db.Create(&room).Error; err != nil {
		return nil, err
	}

	creator := models.Participant{
		RoomID:   room.ID,
		UID:      creatorUID,
		Username: username,
		JoinedAt: time.Now(),
	}
	if err := s.db.Create(&creator).Error; err != nil {
		return nil, fmt.Errorf("failed to add creator: %w", err)
	}

	return s.GetRoom(room.ID)
}

func (s *RoomService) GetRoom(roomID string) (*models.Room, error) {
	var room models.Room
	if err := s.db.
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC")
		}).
		Preload("Agenda", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_num ASC")
		}).
		First(&room, "id = ?", roomID).Error; err != nil {
		return nil, ErrRoomNotFound
	}
	return &room, nil
}

// JoinRoom adds a participant, or returns the existing membership when the
// same uid joins again (rejoin after a reload must not create a duplicate).
func (s *RoomService) JoinRoom(roomID, uid, username string) (*models.Room, error) {
	if username == "" {
		return nil, errors.New("username is required")
	}

	room, err := s.GetRoom(roomID)
	if err != nil {
		return nil, err
	}
	if room.Status == models.RoomStatusFinished {
		return nil, errors.New("discussion already finished")
	}

	var existing models.Participant
	if err := s.db.Where("room_id = ? AND uid = ?", roomID, uid).
		First(&existing).Error; err == nil {
		if username != existing.Username {
			existing.Username = username
			s.db.Save(&existing)
		}
		return s.GetRoom(roomID)
	}

	if len(room.Participants) >= models.MaxParticipants {
		return nil, errors.New("room is full")
	}

	member := models.Participant{
		RoomID:   roomID,
		UID:      uid,
		Username: username,
		JoinedAt: time.Now(),
	}
	if err := s.db.Create(&member).Error; err != nil {
		return nil, fmt.Errorf("failed to join room: %w", err)
	}

	return s.GetRoom(roomID)
}

// UpdateSettings stores the topic and total duration, generates the agenda and
// moves the room into the discussing state. Creator only; once discussing the
// agenda is immutable.
func (s *RoomService) UpdateSettings(roomID, uid, topic string, duration int) (*models.Room, error) {
	room, err := s.GetRoom(roomID)
	if err != nil {
		return nil, err
	}
	if room.CreatorUID != uid {
		return nil, errors.New("only the room creator can update settings")
	}
	if room.Status != models.RoomStatusSetup {
		return nil, errors.New("discussion already started")
	}
	if topic == "" || duration <= 0 {
		return nil, errors.New("topic and duration are required")
	}

	steps, err := s.agenda.Generate(topic, duration)
	if err != nil {
		return nil, fmt.Errorf("failed to generate agenda: %w", err)
	}

	tx := s.db.Begin()
	if err := tx.Model(&models.Room{}).Where("id = ?", roomID).
		Updates(map[string]interface{}{
			"topic":    topic,
			"duration": duration,
			"status":   models.RoomStatusDiscussing,
		}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	for i, step := range steps {
		step.RoomID = roomID
		step.OrderNum = i + 1
		if err := tx.Create(&step).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return s.GetRoom(roomID)
}

// FinishDiscussion marks the room finished. Several clients observe the
// terminal agenda state at roughly the same time, so finishing twice is fine.
func (s *RoomService) FinishDiscussion(roomID string) error {
	room, err := s.GetRoom(roomID)
	if err != nil {
		return err
	}
	switch room.Status {
	case models.RoomStatusFinished:
		return nil
	case models.RoomStatusDiscussing:
		return s.db.Model(&models.Room{}).
			Where("id = ?", roomID).
			Update("status", models.RoomStatusFinished).Error
	default:
		return errors.New("discussion has not started")
	}
}

func (s *RoomService) CountParticipants(roomID string) int {
	var count int64
	s.db.Model(&models.Participant{}).Where("room_id = ?", roomID).Count(&count)
	return int(count)
}

func (s *RoomService) GetParticipant(roomID, uid string) (*models.Participant, error) {
	var member models.Participant
	if err := s.db.Where("room_id = ? AND uid = ?", roomID, uid).
		First(&member).Error; err != nil {
		return nil, errors.New("participant not found")
	}
	return &member, nil
}
