package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/akagifreeez/seed-restock-bot/internal/catalog"
	"github.com/akagifreeez/seed-restock-bot/internal/models"
)

// Store persists users, their preferences and the latest known stock
type Store interface {
	// AddOrTouch registers a user as subscribed, creating a default preference on
	// first contact. Calling it again only refreshes the activity time.
	AddOrTouch(ctx context.Context, userID int64) error
	// GetPreference returns the confirmed preference, the default one if none exists.
	GetPreference(ctx context.Context, userID int64) (*models.UserPreference, error)
	SetPreference(ctx context.Context, userID int64, ignored catalog.TierSet) error
	// ListUserIDs returns every subscribed user
	ListUserIDs(ctx context.Context) ([]int64, error)
	// RemoveUsers unsubscribes users in one write; their preferences are kept.
	RemoveUsers(ctx context.Context, userIDs []int64) error

	SaveStock(ctx context.Context, snap *models.Snapshot) error
	// LatestStock returns nil without error when nothing was saved yet
	LatestStock(ctx context.Context) (*models.Snapshot, error)

	Stats(ctx context.Context) (*models.UserStats, error)
	Close() error
}

// Config selects and configures a Store backend
type Config struct {
	Driver      string // postgres, sqlite or memory
	DatabaseURL string
	SQLitePath  string
}

// Open creates the configured Store and prepares its schema
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "postgres", "":
		return NewPostgresStore(ctx, cfg.DatabaseURL)
	case "sqlite":
		return NewSQLiteStore(ctx, cfg.SQLitePath)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func defaultPreference(userID int64) *models.UserPreference {
	return &models.UserPreference{UserID: userID}
}

// decodeStockItems reads a stored stock_data value. Rows written by the previous bot
// hold a plain {"plant": quantity} object, which is regrouped into display order.
func decodeStockItems(raw []byte) ([]models.StockItem, error) {
	var items []models.StockItem
	if err := json.Unmarshal(raw, &items); err == nil {
		return items, nil
	}

	var legacy map[string]int
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, fmt.Errorf("corrupt stock row: %w", err)
	}
	return models.ItemsFromQuantities(legacy), nil
}
