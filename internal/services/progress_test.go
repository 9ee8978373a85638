package services

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressMarkFinished(t *testing.T) {
	svc := NewProgressService()

	assert.True(t, svc.MarkFinished("room-1", "alice"))
	assert.True(t, svc.MarkFinished("room-1", "bob"))
	assert.Equal(t, 2, svc.FinishedCount("room-1"))

	t.Run("duplicate signals are ignored", func(t *testing.T) {
		assert.False(t, svc.MarkFinished("room-1", "alice"))
		assert.Equal(t, 2, svc.FinishedCount("room-1"))
	})

	t.Run("rooms are independent", func(t *testing.T) {
		assert.True(t, svc.MarkFinished("room-2", "alice"))
		assert.Equal(t, 1, svc.FinishedCount("room-2"))
		assert.Equal(t, 2, svc.FinishedCount("room-1"))
	})
}

func TestProgressReset(t *testing.T) {
	svc := NewProgressService()

	svc.MarkFinished("room-1", "alice")
	svc.MarkFinished("room-1", "bob")
	svc.Reset("room-1")
	assert.Equal(t, 0, svc.FinishedCount("room-1"))

	// Every client that saw the threshold sends its own reset.
	svc.Reset("room-1")
	svc.Reset("room-1")
	assert.Equal(t, 0, svc.FinishedCount("room-1"))

	t.Run("participants can finish again after reset", func(t *testing.T) {
		assert.True(t, svc.MarkFinished("room-1", "alice"))
		assert.Equal(t, 1, svc.FinishedCount("room-1"))
	})
}

func TestProgressConcurrentSignals(t *testing.T) {
	svc := NewProgressService()

	const participants = 50
	var wg sync.WaitGroup
	for i := 0; i < participants; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			uid := fmt.Sprintf("uid-%d", i)
			// Each participant double-fires, as a flaky connection would.
			svc.MarkFinished("room-1", uid)
			svc.MarkFinished("room-1", uid)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, participants, svc.FinishedCount("room-1"))
}
