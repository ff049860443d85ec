package services

import (
	"context"
	"errors"

	"github.com/akagifreeez/seed-restock-bot/internal/models"
)

var (
	// ErrRecipientUnreachable marks a delivery failure that will not recover by retrying
	// (bot blocked, chat deleted, user deactivated). Subscribers failing with it are evicted.
	ErrRecipientUnreachable = errors.New("recipient unreachable")

	// ErrNoStock is returned when no restock can be found anywhere
	ErrNoStock = errors.New("no known stock")
)

// ChannelReader reads announcements from the source channel.
// FetchLatest returns nil without error when the channel is empty.
type ChannelReader interface {
	FetchLatest(ctx context.Context) (*models.Message, error)
	FetchRecent(ctx context.Context, limit int) ([]models.Message, error)
}

// Notifier delivers a rendered message to one recipient
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Dispatcher receives every newly detected snapshot. Dispatch must not block.
type Dispatcher interface {
	Dispatch(snap *models.Snapshot)
}
