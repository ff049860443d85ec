package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/akagifreeez/seed-restock-bot/internal/catalog"
	"github.com/akagifreeez/seed-restock-bot/internal/storage"
)

type session struct {
	ignored  catalog.TierSet
	lastUsed time.Time
}

// SessionStore holds uncommitted preference edits. A session starts from the user's
// persisted preference and only reaches the store on Commit.
type SessionStore struct {
	store storage.Store
	ttl   time.Duration
	limit int
	now   func() time.Time

	mu       sync.Mutex
	sessions map[int64]*session
}

func NewSessionStore(store storage.Store, ttl time.Duration, limit int) *SessionStore {
	return &SessionStore{
		store:    store,
		ttl:      ttl,
		limit:    limit,
		now:      time.Now,
		sessions: make(map[int64]*session),
	}
}

// GetOrCreate returns the pending set of ignored tiers for a user, seeding a new
// session from the persisted preference
func (s *SessionStore) GetOrCreate(ctx context.Context, userID int64) (catalog.TierSet, error) {
	return s.update(ctx, userID, nil)
}

// Toggle flips one tier in the user's pending set and returns the new set
func (s *SessionStore) Toggle(ctx context.Context, userID int64, tier catalog.Tier) (catalog.TierSet, error) {
	return s.update(ctx, userID, func(ignored catalog.TierSet) catalog.TierSet {
		return ignored.Toggle(tier)
	})
}

// update applies change to the user's session, creating the session from the persisted
// preference first. Creation and change happen under the same lock, so a session swept
// in between is never rebuilt without its seed.
func (s *SessionStore) update(ctx context.Context, userID int64, change func(catalog.TierSet) catalog.TierSet) (catalog.TierSet, error) {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	if !ok {
		s.mu.Unlock()
		pref, err := s.store.GetPreference(ctx, userID)
		if err != nil {
			return 0, err
		}
		s.mu.Lock()

		// Another request may have created it while the store was queried
		if sess, ok = s.sessions[userID]; !ok {
			s.evictLocked()
			sess = &session{ignored: pref.Ignored}
			s.sessions[userID] = sess
		}
	}
	defer s.mu.Unlock()

	if change != nil {
		sess.ignored = change(sess.ignored)
	}
	sess.lastUsed = s.now()
	return sess.ignored, nil
}

// Commit persists the pending set and ends the session. It returns false when the user
// has no session. If the store write fails the session is kept so the user can retry.
func (s *SessionStore) Commit(ctx context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	var ignored catalog.TierSet
	if ok {
		ignored = sess.ignored
	}
	s.mu.Unlock()

	if !ok {
		return false, nil
	}

	if err := s.store.SetPreference(ctx, userID, ignored); err != nil {
		return false, err
	}

	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
	return true, nil
}

// Discard drops a session without persisting it
func (s *SessionStore) Discard(userID int64) {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many were removed
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for id, sess := range s.sessions {
		if sess.lastUsed.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// StartJanitor sweeps expired sessions periodically until ctx is done
func (s *SessionStore) StartJanitor(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				log.Debug().Int("removed", n).Msg("Expired settings sessions swept")
			}
		}
	}
}

// evictLocked makes room for one more session. Expired sessions go first, then the
// least recently used ones.
func (s *SessionStore) evictLocked() {
	if s.limit <= 0 || len(s.sessions) < s.limit {
		return
	}

	cutoff := s.now().Add(-s.ttl)
	for id, sess := range s.sessions {
		if sess.lastUsed.Before(cutoff) {
			delete(s.sessions, id)
		}
	}

	for len(s.sessions) >= s.limit {
		var (
			oldestID int64
			oldest   time.Time
			found    bool
		)
		for id, sess := range s.sessions {
			if !found || sess.lastUsed.Before(oldest) {
				oldestID, oldest, found = id, sess.lastUsed, true
			}
		}
		delete(s.sessions, oldestID)
	}
}
