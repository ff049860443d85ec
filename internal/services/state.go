package services

import (
	"sync"

	"github.com/akagifreeez/seed-restock-bot/internal/models"
)

// PollState is the state shared between the poller and the interactive handlers:
// the id of the last processed channel message and the latest known snapshot.
// The marker lives in memory only; after a restart it is re-seeded from the channel.
type PollState struct {
	mu       sync.RWMutex
	marker   string
	snapshot *models.Snapshot
}

func NewPollState() *PollState {
	return &PollState{}
}

// Marker returns the last processed message id, empty while idle
func (s *PollState) Marker() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.marker
}

// Tracking reports whether a baseline marker has been established
func (s *PollState) Tracking() bool {
	return s.Marker() != ""
}

// Advance moves the marker to id. It returns false when id is already the marker,
// meaning the message was processed before.
func (s *PollState) Advance(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == s.marker {
		return false
	}
	s.marker = id
	return true
}

// Snapshot returns the latest known snapshot or nil
func (s *PollState) Snapshot() *models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// SetSnapshot replaces the latest snapshot as a whole
func (s *PollState) SetSnapshot(snap *models.Snapshot) {
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
}
