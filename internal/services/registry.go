package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/akagifreeez/seed-restock-bot/internal/storage"
)

// Registry is the set of subscribers that receive restock notifications.
// It mirrors the subscribed users of the store so the fan-out never queries the user list.
type Registry struct {
	store storage.Store
	mu    sync.RWMutex
	ids   map[int64]struct{}
}

func NewRegistry(store storage.Store) *Registry {
	return &Registry{
		store: store,
		ids:   make(map[int64]struct{}),
	}
}

// Load replaces the in-memory set with the subscribed users of the store
func (r *Registry) Load(ctx context.Context) error {
	ids, err := r.store.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load subscribers: %w", err)
	}

	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}

	r.mu.Lock()
	r.ids = set
	r.mu.Unlock()

	log.Info().Int("count", len(set)).Msg("Subscribers loaded")
	return nil
}

// Add registers a user. Repeated calls only refresh the user's activity time.
func (r *Registry) Add(ctx context.Context, userID int64) error {
	if err := r.store.AddOrTouch(ctx, userID); err != nil {
		return err
	}

	r.mu.Lock()
	r.ids[userID] = struct{}{}
	r.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the subscriber ids in ascending order.
// Later changes to the registry do not affect the returned slice.
func (r *Registry) Snapshot() []int64 {
	r.mu.RLock()
	ids := make([]int64, 0, len(r.ids))
	for id := range r.ids {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Remove drops users from the registry and unsubscribes them with a single store write.
// The in-memory set is updated even if the write fails.
func (r *Registry) Remove(ctx context.Context, userIDs []int64) error {
	if len(userIDs) == 0 {
		return nil
	}

	r.mu.Lock()
	for _, id := range userIDs {
		delete(r.ids, id)
	}
	r.mu.Unlock()

	if err := r.store.RemoveUsers(ctx, userIDs); err != nil {
		return fmt.Errorf("failed to persist removal of %d users: %w", len(userIDs), err)
	}
	return nil
}

// Contains reports whether the user is subscribed
func (r *Registry) Contains(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ids[userID]
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}
