package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/akagifreeez/seed-restock-bot/internal/models"
	"github.com/akagifreeez/seed-restock-bot/internal/services"
)

// PollerConfig holds the timing of the restock poller
type PollerConfig struct {
	Interval      time.Duration
	ErrorBackoff  time.Duration
	FetchTimeout  time.Duration
	// RecordTimeout bounds persisting a detected restock
	RecordTimeout time.Duration
}

// RestockPoller watches the announcement channel and hands every new restock
// to the registered dispatchers
type RestockPoller struct {
	reader      services.ChannelReader
	extractor   *services.Extractor
	state       *services.PollState
	stock       *services.StockService
	dispatchers []services.Dispatcher
	cfg         PollerConfig
}

// NewRestockPoller creates a new RestockPoller worker
func NewRestockPoller(reader services.ChannelReader, extractor *services.Extractor, state *services.PollState,
	stock *services.StockService, cfg PollerConfig, dispatchers ...services.Dispatcher) *RestockPoller {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = 30 * time.Second
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 5 * time.Second
	}
	if cfg.RecordTimeout <= 0 {
		cfg.RecordTimeout = 5 * time.Second
	}
	return &RestockPoller{
		reader:      reader,
		extractor:   extractor,
		state:       state,
		stock:       stock,
		dispatchers: dispatchers,
		cfg:         cfg,
	}
}

// Start seeds the marker from the newest channel message and then polls until ctx is done.
// The message present at start-up is treated as already announced.
func (p *RestockPoller) Start(ctx context.Context) {
	log.Info().
		Dur("interval", p.cfg.Interval).
		Dur("errorBackoff", p.cfg.ErrorBackoff).
		Msg("Starting Restock Poller worker")

	if err := p.Seed(ctx); err != nil {
		// Stay idle: the first successful tick will treat the latest message as new
		log.Error().Err(err).Msg("Initial channel read failed")
	}

	timer := time.NewTimer(p.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Restock Poller worker stopped")
			return
		case <-timer.C:
			delay := p.cfg.Interval
			if _, err := p.Poll(ctx); err != nil {
				log.Error().Err(err).Dur("retryIn", p.cfg.ErrorBackoff).Msg("Restock poll failed")
				delay = p.cfg.ErrorBackoff
			}
			timer.Reset(delay)
		}
	}
}

// Seed establishes the marker baseline and caches the current stock without notifying anyone
func (p *RestockPoller) Seed(ctx context.Context) error {
	msg, err := p.fetchLatest(ctx)
	if err != nil {
		return err
	}
	if msg == nil {
		log.Info().Msg("Announcement channel is empty")
		return nil
	}

	p.state.Advance(msg.ID)
	if snap := p.extractor.ExtractMessage(*msg); !snap.Empty() {
		p.state.SetSnapshot(snap)
	}

	log.Info().Str("message_id", msg.ID).Msg("Poll marker initialized")
	return nil
}

// Poll runs a single tick. It reports whether a new restock was dispatched.
func (p *RestockPoller) Poll(ctx context.Context) (bool, error) {
	msg, err := p.fetchLatest(ctx)
	if err != nil {
		return false, err
	}
	if msg == nil {
		return false, nil
	}

	// The marker moves for every new message, restock or not
	if !p.state.Advance(msg.ID) {
		return false, nil
	}

	snap := p.extractor.ExtractMessage(*msg)
	if snap.Empty() {
		log.Debug().Str("message_id", msg.ID).Msg("New message is not a restock")
		return false, nil
	}

	p.state.SetSnapshot(snap)
	log.Info().
		Str("message_id", msg.ID).
		Str("observed_at", snap.ObservedAt).
		Int("items", len(snap.Items)).
		Msg("New restock detected")

	for _, d := range p.dispatchers {
		d.Dispatch(snap)
	}
	if p.stock != nil {
		recordCtx, cancel := context.WithTimeout(ctx, p.cfg.RecordTimeout)
		p.stock.Record(recordCtx, snap)
		cancel()
	}
	return true, nil
}

func (p *RestockPoller) fetchLatest(ctx context.Context) (*models.Message, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	defer cancel()

	msg, err := p.reader.FetchLatest(fetchCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest message: %w", err)
	}
	return msg, nil
}
