package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/akagifreeez/seed-restock-bot/internal/models"
	"github.com/akagifreeez/seed-restock-bot/internal/storage"
)

// BroadcastConfig tunes the fan-out
type BroadcastConfig struct {
	Concurrency int
	SendTimeout time.Duration
}

// Broadcaster delivers restock notifications to every subscriber, honouring each
// subscriber's ignored tiers. Deliveries run on a bounded pool of goroutines.
type Broadcaster struct {
	store       storage.Store
	registry    *Registry
	notifier    Notifier
	concurrency int
	sendTimeout time.Duration

	// parent of fire-and-forget batches, cancelled by Close
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewBroadcaster(store storage.Store, registry *Registry, notifier Notifier, cfg BroadcastConfig) *Broadcaster {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 25
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Broadcaster{
		store:       store,
		registry:    registry,
		notifier:    notifier,
		concurrency: cfg.Concurrency,
		sendTimeout: cfg.SendTimeout,
		baseCtx:     ctx,
		cancel:      cancel,
	}
}

// Dispatch starts a broadcast of snap in the background and returns immediately
func (b *Broadcaster) Dispatch(snap *models.Snapshot) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.Broadcast(b.baseCtx, snap)
	}()
}

// Wait blocks until all dispatched batches are finished
func (b *Broadcaster) Wait() {
	b.wg.Wait()
}

// Close aborts pending deliveries of dispatched batches and waits for them to return
func (b *Broadcaster) Close() {
	b.cancel()
	b.wg.Wait()
}

// Broadcast sends the visible part of snap to every current subscriber and reports
// the outcome. Subscribers whose tiers are all ignored are skipped.
func (b *Broadcaster) Broadcast(ctx context.Context, snap *models.Snapshot) models.DispatchReport {
	return b.fanOut(ctx, "restock", func(ctx context.Context, userID int64) (string, bool, error) {
		pref, err := b.store.GetPreference(ctx, userID)
		if err != nil {
			return "", false, err
		}
		if !ShouldNotify(snap, pref.Ignored) {
			return "", false, nil
		}
		return Render(VisibleSubset(snap, pref.Ignored), true), true, nil
	})
}

// Announce sends the same text to every subscriber, without filtering
func (b *Broadcaster) Announce(ctx context.Context, text string) models.DispatchReport {
	msg := AnnouncementText(text)
	return b.fanOut(ctx, "announcement", func(context.Context, int64) (string, bool, error) {
		return msg, true, nil
	})
}

// compose builds the message for one subscriber; false means the subscriber is skipped
type compose func(ctx context.Context, userID int64) (string, bool, error)

func (b *Broadcaster) fanOut(ctx context.Context, kind string, build compose) models.DispatchReport {
	start := time.Now()
	recipients := b.registry.Snapshot()

	report := models.DispatchReport{
		BatchID: uuid.NewString(),
		Total:   len(recipients),
	}
	logger := log.With().Str("batch_id", report.BatchID).Str("kind", kind).Logger()

	if len(recipients) == 0 {
		logger.Info().Msg("No subscribers to notify")
		return report
	}

	var (
		mu      sync.Mutex
		removed []int64
	)
	count := func(field *int) {
		mu.Lock()
		*field++
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for _, userID := range recipients {
		g.Go(func() error {
			// A failure of one subscriber never affects the others
			text, ok, err := build(gctx, userID)
			if err != nil {
				logger.Warn().Err(err).Int64("user_id", userID).Msg("Failed to prepare notification")
				count(&report.Failed)
				return nil
			}
			if !ok {
				count(&report.Skipped)
				return nil
			}

			sendCtx, cancel := context.WithTimeout(gctx, b.sendTimeout)
			err = b.notifier.Send(sendCtx, userID, text)
			cancel()

			switch {
			case err == nil:
				count(&report.Notified)
			case errors.Is(err, ErrRecipientUnreachable):
				logger.Info().Err(err).Int64("user_id", userID).Msg("Subscriber unreachable, removing")
				mu.Lock()
				removed = append(removed, userID)
				report.Failed++
				report.Removed++
				mu.Unlock()
			default:
				logger.Warn().Err(err).Int64("user_id", userID).Msg("Failed to deliver notification")
				count(&report.Failed)
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(removed) > 0 {
		// Removal is persisted even if the batch context was cancelled meanwhile
		rmCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		if err := b.registry.Remove(rmCtx, removed); err != nil {
			logger.Error().Err(err).Msg("Failed to persist subscriber removal")
		}
		cancel()
	}

	logger.Info().
		Int("total", report.Total).
		Int("notified", report.Notified).
		Int("skipped", report.Skipped).
		Int("removed", report.Removed).
		Int("failed", report.Failed).
		Dur("duration", time.Since(start)).
		Msg("Broadcast completed")

	return report
}
