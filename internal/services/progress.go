package services

import "sync"

// ProgressService aggregates per-step completion signals for active rooms.
// State is kept in memory only: step progress has no meaning outside a live
// discussion and is rebuilt from scratch when a room's step changes.
//
// MarkFinished is idempotent per participant and Reset is idempotent per call;
// every client that observes the all-finished threshold emits its own reset,
// so racing resets must not corrupt the counts.
type ProgressService struct {
	mu    sync.Mutex
	rooms map[string]map[string]bool
}

func NewProgressService() *ProgressService {
	return &ProgressService{rooms: make(map[string]map[string]bool)}
}

// MarkFinished records that uid completed the current step. Returns true when
// this was the first signal from that participant for the step.
func (s *ProgressService) MarkFinished(roomID, uid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	finished, ok := s.rooms[roomID]
	if !ok {
		finished = make(map[string]bool)
		s.rooms[roomID] = finished
	}
	if finished[uid] {
		return false
	}
	finished[uid] = true
	return true
}

// Reset clears the completion set for the room's next step. Resetting an
// already-empty set is a no-op, which makes duplicate resets harmless.
func (s *ProgressService) Reset(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
}

func (s *ProgressService) FinishedCount(roomID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms[roomID])
}
