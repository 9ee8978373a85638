package client

import (
	"time"

	"faciliroom/internal/models"
)

// Discussion phases. Loading covers both "room fetch in flight" and "agenda
// still being prepared"; Complete is terminal.
const (
	PhaseLoading  = "loading"
	PhaseActive   = "active"
	PhaseComplete = "complete"
)

// DefaultAdvanceDelay is how long a client waits between observing the
// all-finished threshold and actually switching steps, so the full progress
// count is visible for a moment before the prompt changes.
const DefaultAdvanceDelay = 750 * time.Millisecond

// State is the whole discussion-session state of one connected participant.
// It is a value: Reduce returns a new State and never mutates its input, which
// keeps the state machine testable without a network or a clock.
type State struct {
	Phase             string
	Topic             string
	Agenda            []models.AgendaStep
	CurrentStep       int
	TimeLeft          int
	Messages          []models.Message
	FinishedCount     int
	TotalParticipants int
	HasFinished       bool
	Connected         bool
	RoomFinished      bool

	// lastAppliedStep guards prompt insertion: the facilitator prompt for a
	// step is appended at most once even if the transition effect fires
	// again for the same index.
	lastAppliedStep int
	// pendingAdvance is set between observing the threshold and AdvanceDue.
	pendingAdvance bool
}

// NewState returns the initial loading state.
func NewState() State {
	return State{Phase: PhaseLoading, lastAppliedStep: -1}
}

// Event is an inbound occurrence the state machine reacts to: a gateway
// event, a local action already performed, or a tick of the session clock.
type Event interface{ isEvent() }

type Connected struct{}

type Disconnected struct{}

// RoomUpdated carries a fresh room snapshot, either from the one-shot
// bootstrap fetch or from a room_update push on the channel.
type RoomUpdated struct{ Room models.Room }

// MessageReceived is an inbound new_message gateway event.
type MessageReceived struct{ Message models.Message }

// MessageSent is the optimistic local echo of a message this participant just
// submitted; it is appended before any network round-trip completes.
type MessageSent struct{ Message models.Message }

// ProgressUpdated is an inbound progress_update gateway event.
type ProgressUpdated struct {
	FinishedCount     int
	TotalParticipants int
}

// Tick is one second of wall clock.
type Tick struct{}

// AdvanceDue fires after the fixed post-threshold delay.
type AdvanceDue struct{}

// SelfFinished records that this participant marked the current step done.
type SelfFinished struct{}

func (Connected) isEvent()       {}
func (Disconnected) isEvent()    {}
func (RoomUpdated) isEvent()     {}
func (MessageReceived) isEvent() {}
func (MessageSent) isEvent()     {}
func (ProgressUpdated) isEvent() {}
func (Tick) isEvent()            {}
func (AdvanceDue) isEvent()      {}
func (SelfFinished) isEvent()    {}

// Effect is a side effect the caller must execute after a reduction. The
// reducer itself never touches the network or timers.
type Effect interface{ isEffect() }

// ScheduleAdvance asks the session to dispatch AdvanceDue after Delay.
type ScheduleAdvance struct{ Delay time.Duration }

// ResetProgress asks the session to emit reset_progress_for_next_step.
type ResetProgress struct{}

func (ScheduleAdvance) isEffect() {}
func (ResetProgress) isEffect()   {}

// Machine reduces events into states for one local participant.
type Machine struct {
	SelfUID      string
	AdvanceDelay time.Duration
}

func NewMachine(selfUID string) Machine {
	return Machine{SelfUID: selfUID, AdvanceDelay: DefaultAdvanceDelay}
}

// Reduce applies one event. Handlers run one at a time in arrival order; the
// caller provides that serialization.
func (m Machine) Reduce(st State, ev Event) (State, []Effect) {
	switch ev := ev.(type) {
	case Connected:
		st.Connected = true
		return st, nil

	case Disconnected:
		st.Connected = false
		return st, nil

	case RoomUpdated:
		return m.applyRoom(st, ev.Room)

	case MessageReceived:
		if st.Phase == PhaseComplete {
			return st, nil
		}
		// Echo suppression: the local send path already appended this.
		if ev.Message.SenderID != "" && ev.Message.SenderID == m.SelfUID {
			return st, nil
		}
		st.Messages = appendMessage(st.Messages, ev.Message)
		return st, nil

	case MessageSent:
		if st.Phase == PhaseComplete {
			return st, nil
		}
		st.Messages = appendMessage(st.Messages, ev.Message)
		return st, nil

	case ProgressUpdated:
		if st.Phase != PhaseActive {
			return st, nil
		}
		st.FinishedCount = ev.FinishedCount
		st.TotalParticipants = ev.TotalParticipants
		if ev.TotalParticipants > 0 && ev.FinishedCount >= ev.TotalParticipants && !st.pendingAdvance {
			st.pendingAdvance = true
			return st, []Effect{ScheduleAdvance{Delay: m.advanceDelay()}}
		}
		return st, nil

	case Tick:
		if st.Phase == PhaseActive && st.TimeLeft > 0 {
			st.TimeLeft--
		}
		return st, nil

	case AdvanceDue:
		if st.Phase != PhaseActive || !st.pendingAdvance {
			return st, nil
		}
		st.pendingAdvance = false
		return m.enterStep(st, st.CurrentStep+1)

	case SelfFinished:
		if st.Phase != PhaseActive || st.HasFinished {
			return st, nil
		}
		st.HasFinished = true
		return st, nil
	}

	return st, nil
}

func (m Machine) applyRoom(st State, room models.Room) (State, []Effect) {
	st.Topic = room.Topic
	st.TotalParticipants = len(room.Participants)
	if room.Status == models.RoomStatusFinished {
		st.RoomFinished = true
	}

	if st.Phase != PhaseLoading {
		// Agenda is immutable once the discussion runs; later snapshots
		// only refresh metadata.
		return st, nil
	}
	if room.Status != models.RoomStatusDiscussing || len(room.Agenda) == 0 {
		// Agenda still being prepared: stay in loading until the next push.
		return st, nil
	}

	st.Agenda = room.Agenda
	st.Phase = PhaseActive
	next, _ := m.enterStep(st, 0)
	return next, nil
}

// enterStep moves to step i, or to Complete when the agenda is exhausted.
func (m Machine) enterStep(st State, i int) (State, []Effect) {
	if i >= len(st.Agenda) {
		st.Phase = PhaseComplete
		st.CurrentStep = len(st.Agenda)
		return st, nil
	}

	st.CurrentStep = i
	st.TimeLeft = st.Agenda[i].AllocatedTime * 60
	st.HasFinished = false
	st.FinishedCount = 0

	if st.lastAppliedStep < i {
		st.lastAppliedStep = i
		st.Messages = appendMessage(st.Messages, models.Message{
			ID:     facilitatorMessageID(i),
			Author: models.FacilitatorName,
			Text:   st.Agenda[i].PromptQuestion,
		})
	}

	if i > 0 {
		return st, []Effect{ResetProgress{}}
	}
	return st, nil
}

func (m Machine) advanceDelay() time.Duration {
	if m.AdvanceDelay > 0 {
		return m.AdvanceDelay
	}
	return DefaultAdvanceDelay
}

// appendMessage copies before appending so snapshots of earlier states never
// alias the live message slice.
func appendMessage(msgs []models.Message, msg models.Message) []models.Message {
	out := make([]models.Message, len(msgs), len(msgs)+1)
	copy(out, msgs)
	return append(out, msg)
}
