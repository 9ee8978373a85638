package client

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"faciliroom/internal/models"
)

var ErrEmptyMessage = errors.New("message text is empty")

// RoomSession drives one participant's visit to one room: it bootstraps the
// room state, opens exactly one realtime channel, and runs every event
// (gateway traffic, the one-second clock, local actions) through the state
// machine one at a time. All session state lives here and is discarded when
// the session closes; nothing is persisted.
type RoomSession struct {
	api      *APIClient
	identity Identity
	machine  Machine
	roomID   string

	mu           sync.Mutex
	state        State
	advanceTimer *time.Timer

	ch        *Channel
	ticker    *time.Ticker
	done      chan struct{}
	closeOnce sync.Once
	updates   chan struct{}
}

// OpenRoomSession fetches the room once and, on success, connects the
// realtime channel and starts the session loop.
//
// A missing room is fatal and returns ErrRoomNotFound with no channel opened.
// A room whose agenda is still being prepared is not an error: the session
// starts in the loading phase and leaves it when the gateway pushes the
// room_update that carries the agenda.
func OpenRoomSession(api *APIClient, identity Identity, roomID string) (*RoomSession, error) {
	room, err := api.FetchRoom(roomID)
	if err != nil {
		return nil, err
	}

	s := &RoomSession{
		api:      api,
		identity: identity,
		machine:  NewMachine(identity.UID),
		roomID:   roomID,
		state:    NewState(),
		done:     make(chan struct{}),
		updates:  make(chan struct{}, 1),
	}
	// First step entry emits no effects, so the bootstrap snapshot can be
	// reduced directly before the loop exists.
	s.state, _ = s.machine.Reduce(s.state, RoomUpdated{Room: *room})

	ch, err := DialChannel(api.BaseURL(), roomID)
	if err != nil {
		return nil, err
	}
	s.ch = ch
	s.ticker = time.NewTicker(time.Second)

	go s.run()
	return s, nil
}

func (s *RoomSession) run() {
	for {
		select {
		case ev, ok := <-s.ch.Events():
			if !ok {
				return
			}
			s.apply(ev)
		case <-s.ticker.C:
			s.apply(Tick{})
		case <-s.done:
			return
		}
	}
}

func (s *RoomSession) apply(ev Event) {
	s.mu.Lock()
	effects := s.reduce(ev)
	s.mu.Unlock()

	s.execute(effects)
	s.notify()
}

func (s *RoomSession) reduce(ev Event) []Effect {
	st, effects := s.machine.Reduce(s.state, ev)
	s.state = st
	return effects
}

func (s *RoomSession) execute(effects []Effect) {
	for _, effect := range effects {
		switch effect := effect.(type) {
		case ScheduleAdvance:
			s.mu.Lock()
			if s.advanceTimer != nil {
				s.advanceTimer.Stop()
			}
			s.advanceTimer = time.AfterFunc(effect.Delay, func() {
				s.apply(AdvanceDue{})
			})
			s.mu.Unlock()

		case ResetProgress:
			// A dead channel makes this a no-op; the next progress push
			// from a surviving client carries the reset counts anyway.
			if s.ch != nil {
				_ = s.ch.ResetProgress()
			}
		}
	}
}

// SendMessage validates, appends the optimistic local echo, then transmits.
// Empty text is rejected before any network call.
func (s *RoomSession) SendMessage(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	msg := models.Message{
		ID:       newMessageID(s.identity.UID),
		Author:   s.identity.Name,
		Text:     text,
		SenderID: s.identity.UID,
	}

	s.apply(MessageSent{Message: msg})
	return s.ch.SendMessage(msg)
}

// MarkFinished signals completion of the current step, at most once per step.
func (s *RoomSession) MarkFinished() error {
	s.mu.Lock()
	if s.state.Phase != PhaseActive || s.state.HasFinished {
		s.mu.Unlock()
		return nil
	}
	s.reduce(SelfFinished{})
	s.mu.Unlock()
	s.notify()

	return s.ch.MarkFinished(s.identity.UID)
}

// FinishRoom reports the terminal agenda state back to the room API.
func (s *RoomSession) FinishRoom() error {
	return s.api.FinishRoom(s.roomID)
}

// Snapshot returns a copy of the current state for rendering.
func (s *RoomSession) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Updates signals (coalesced) that the state changed since the last read.
func (s *RoomSession) Updates() <-chan struct{} {
	return s.updates
}

func (s *RoomSession) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// Close tears the session down deterministically: timer, ticker and channel
// all stop regardless of which exit path got here first.
func (s *RoomSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if s.ticker != nil {
			s.ticker.Stop()
		}
		s.mu.Lock()
		if s.advanceTimer != nil {
			s.advanceTimer.Stop()
		}
		s.mu.Unlock()
		if s.ch != nil {
			err = s.ch.Close()
		}
	})
	return err
}

// newMessageID derives an id from the emission time and the sender, unique
// enough within one session.
func newMessageID(uid string) string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uid)
}

func facilitatorMessageID(step int) string {
	return fmt.Sprintf("facilitator-%d", step)
}
