package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/akagifreeez/seed-restock-bot/internal/catalog"
	"github.com/akagifreeez/seed-restock-bot/internal/models"
	"github.com/akagifreeez/seed-restock-bot/pkg/database"
)

// PostgresStore persists users and stock in PostgreSQL
type PostgresStore struct {
	db *database.DB
}

// NewPostgresStore connects to PostgreSQL and runs the migrations
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := database.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	log.Info().Msg("Running database migrations...")
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) AddOrTouch(ctx context.Context, userID int64) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO users (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE
		SET last_active = CURRENT_TIMESTAMP, subscribed = TRUE
	`, userID)
	if err != nil {
		return fmt.Errorf("failed to upsert user %d: %w", userID, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO user_settings (user_id, ignored_rarities) VALUES ($1, '[]'::jsonb)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return fmt.Errorf("failed to create settings for user %d: %w", userID, err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) GetPreference(ctx context.Context, userID int64) (*models.UserPreference, error) {
	var raw []byte
	pref := &models.UserPreference{UserID: userID}

	err := s.db.Pool.QueryRow(ctx, `
		SELECT ignored_rarities, created_at, updated_at
		FROM user_settings
		WHERE user_id = $1
	`, userID).Scan(&raw, &pref.CreatedAt, &pref.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return defaultPreference(userID), nil
		}
		return nil, fmt.Errorf("failed to load settings for user %d: %w", userID, err)
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &pref.Ignored); err != nil {
			return nil, fmt.Errorf("corrupt settings for user %d: %w", userID, err)
		}
	}
	return pref, nil
}

func (s *PostgresStore) SetPreference(ctx context.Context, userID int64, ignored catalog.TierSet) error {
	data, err := json.Marshal(ignored)
	if err != nil {
		return err
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `INSERT INTO users (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return fmt.Errorf("failed to ensure user %d: %w", userID, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO user_settings (user_id, ignored_rarities, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id) DO UPDATE
		SET ignored_rarities = EXCLUDED.ignored_rarities,
		    updated_at = CURRENT_TIMESTAMP
	`, userID, data)
	if err != nil {
		return fmt.Errorf("failed to update settings for user %d: %w", userID, err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.Pool.Query(ctx, `SELECT user_id FROM users WHERE subscribed ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) RemoveUsers(ctx context.Context, userIDs []int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := s.db.Pool.Exec(ctx, `UPDATE users SET subscribed = FALSE WHERE user_id = ANY($1)`, userIDs)
	if err != nil {
		return fmt.Errorf("failed to unsubscribe %d users: %w", len(userIDs), err)
	}
	return nil
}

func (s *PostgresStore) SaveStock(ctx context.Context, snap *models.Snapshot) error {
	data, err := json.Marshal(snap.Items)
	if err != nil {
		return err
	}
	_, err = s.db.Pool.Exec(ctx, `
		INSERT INTO current_stock (stock_data, restock_time, message_id)
		VALUES ($1, $2, $3)
	`, data, snap.ObservedAt, snap.MessageID)
	if err != nil {
		return fmt.Errorf("failed to save stock: %w", err)
	}
	return nil
}

func (s *PostgresStore) LatestStock(ctx context.Context) (*models.Snapshot, error) {
	var (
		raw       []byte
		messageID *string
	)
	snap := &models.Snapshot{}

	err := s.db.Pool.QueryRow(ctx, `
		SELECT stock_data, restock_time, message_id
		FROM current_stock
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`).Scan(&raw, &snap.ObservedAt, &messageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load stock: %w", err)
	}

	if messageID != nil {
		snap.MessageID = *messageID
	}
	items, err := decodeStockItems(raw)
	if err != nil {
		return nil, err
	}
	snap.Items = items
	return snap, nil
}

func (s *PostgresStore) Stats(ctx context.Context) (*models.UserStats, error) {
	stats := &models.UserStats{}
	err := s.db.Pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM users WHERE subscribed),
			(SELECT COUNT(*) FROM user_settings WHERE ignored_rarities != '[]'::jsonb)
	`).Scan(&stats.TotalUsers, &stats.Subscribed, &stats.WithFilters)
	if err != nil {
		return nil, fmt.Errorf("failed to load user stats: %w", err)
	}
	return stats, nil
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
