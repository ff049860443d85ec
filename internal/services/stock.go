package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/akagifreeez/seed-restock-bot/internal/models"
	"github.com/akagifreeez/seed-restock-bot/internal/storage"
)

// StockService answers "what is in the shop right now"
type StockService struct {
	reader    ChannelReader
	extractor *Extractor
	state     *PollState
	store     storage.Store
	scanLimit int
}

func NewStockService(reader ChannelReader, extractor *Extractor, state *PollState, store storage.Store, scanLimit int) *StockService {
	if scanLimit <= 0 {
		scanLimit = 10
	}
	return &StockService{
		reader:    reader,
		extractor: extractor,
		state:     state,
		store:     store,
		scanLimit: scanLimit,
	}
}

// Latest returns the latest known snapshot. The in-memory snapshot is preferred;
// otherwise the recent channel history is scanned, then the persisted stock is used.
// A snapshot found by scanning is cached without moving the poll marker.
func (s *StockService) Latest(ctx context.Context) (*models.Snapshot, error) {
	if snap := s.state.Snapshot(); !snap.Empty() {
		return snap, nil
	}

	snap, err := s.scanRecent(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to scan recent announcements")
	}
	if snap != nil {
		s.state.SetSnapshot(snap)
		return snap, nil
	}

	if s.store != nil {
		stored, err := s.store.LatestStock(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load persisted stock")
		} else if !stored.Empty() {
			s.state.SetSnapshot(stored)
			return stored, nil
		}
	}

	return nil, ErrNoStock
}

func (s *StockService) scanRecent(ctx context.Context) (*models.Snapshot, error) {
	msgs, err := s.reader.FetchRecent(ctx, s.scanLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent messages: %w", err)
	}
	// Newest first
	for _, msg := range msgs {
		if snap := s.extractor.ExtractMessage(msg); !snap.Empty() {
			return snap, nil
		}
	}
	return nil, nil
}

// Record persists a newly detected snapshot. Failures are logged only.
func (s *StockService) Record(ctx context.Context, snap *models.Snapshot) {
	if s.store == nil || snap.Empty() {
		return
	}
	if err := s.store.SaveStock(ctx, snap); err != nil {
		log.Error().Err(err).Str("message_id", snap.MessageID).Msg("Failed to persist stock")
	}
}
