package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/akagifreeez/seed-restock-bot/internal/catalog"
	"github.com/akagifreeez/seed-restock-bot/internal/models"
)

type memoryUser struct {
	subscribed bool
	lastActive time.Time
	pref       models.UserPreference
}

// MemoryStore keeps everything in process memory
type MemoryStore struct {
	mu    sync.RWMutex
	users map[int64]*memoryUser
	stock *models.Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[int64]*memoryUser),
	}
}

func (s *MemoryStore) AddOrTouch(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	u, exists := s.users[userID]
	if !exists {
		u = &memoryUser{
			pref: models.UserPreference{UserID: userID, CreatedAt: now, UpdatedAt: now},
		}
		s.users[userID] = u
	}
	u.subscribed = true
	u.lastActive = now
	return nil
}

func (s *MemoryStore) GetPreference(ctx context.Context, userID int64) (*models.UserPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u, exists := s.users[userID]; exists {
		pref := u.pref
		return &pref, nil
	}
	return defaultPreference(userID), nil
}

func (s *MemoryStore) SetPreference(ctx context.Context, userID int64, ignored catalog.TierSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	u, exists := s.users[userID]
	if !exists {
		u = &memoryUser{
			subscribed: true,
			lastActive: now,
			pref:       models.UserPreference{UserID: userID, CreatedAt: now},
		}
		s.users[userID] = u
	}
	u.pref.Ignored = ignored
	u.pref.UpdatedAt = now
	return nil
}

func (s *MemoryStore) ListUserIDs(ctx context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.users))
	for id, u := range s.users {
		if u.subscribed {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *MemoryStore) RemoveUsers(ctx context.Context, userIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range userIDs {
		if u, exists := s.users[id]; exists {
			u.subscribed = false
		}
	}
	return nil
}

func (s *MemoryStore) SaveStock(ctx context.Context, snap *models.Snapshot) error {
	s.mu.Lock()
	s.stock = snap
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) LatestStock(ctx context.Context) (*models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stock, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (*models.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.UserStats{TotalUsers: len(s.users)}
	for _, u := range s.users {
		if u.subscribed {
			stats.Subscribed++
		}
		if !u.pref.Ignored.Empty() {
			stats.WithFilters++
		}
	}
	return stats, nil
}

func (s *MemoryStore) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
