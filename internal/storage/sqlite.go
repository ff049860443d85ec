package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/akagifreeez/seed-restock-bot/internal/catalog"
	"github.com/akagifreeez/seed-restock-bot/internal/models"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteStore keeps users and stock in a single SQLite file.
// Timestamps are stored as unix seconds.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database file at path
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Info().Str("path", path).Msg("SQLite store initialized")
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS users (
		user_id INTEGER PRIMARY KEY,
		subscribed INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		last_active INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS user_settings (
		user_id INTEGER PRIMARY KEY REFERENCES users(user_id) ON DELETE CASCADE,
		ignored_rarities TEXT NOT NULL DEFAULT '[]',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS current_stock (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		stock_data TEXT NOT NULL,
		restock_time TEXT NOT NULL,
		message_id TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_users_subscribed ON users(subscribed);
	`)
	return err
}

func (s *SQLiteStore) AddOrTouch(ctx context.Context, userID int64) error {
	now := time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (user_id, subscribed, created_at, last_active) VALUES (?, 1, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET last_active = excluded.last_active, subscribed = 1
	`, userID, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert user %d: %w", userID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, ignored_rarities, created_at, updated_at) VALUES (?, '[]', ?, ?)
		ON CONFLICT(user_id) DO NOTHING
	`, userID, now, now)
	if err != nil {
		return fmt.Errorf("failed to create settings for user %d: %w", userID, err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetPreference(ctx context.Context, userID int64) (*models.UserPreference, error) {
	var (
		raw              string
		created, updated int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT ignored_rarities, created_at, updated_at FROM user_settings WHERE user_id = ?
	`, userID).Scan(&raw, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return defaultPreference(userID), nil
		}
		return nil, fmt.Errorf("failed to load settings for user %d: %w", userID, err)
	}

	pref := &models.UserPreference{
		UserID:    userID,
		CreatedAt: time.Unix(created, 0),
		UpdatedAt: time.Unix(updated, 0),
	}
	if err := json.Unmarshal([]byte(raw), &pref.Ignored); err != nil {
		return nil, fmt.Errorf("corrupt settings for user %d: %w", userID, err)
	}
	return pref, nil
}

func (s *SQLiteStore) SetPreference(ctx context.Context, userID int64, ignored catalog.TierSet) error {
	data, err := json.Marshal(ignored)
	if err != nil {
		return err
	}
	now := time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (user_id, subscribed, created_at, last_active) VALUES (?, 1, ?, ?)
		ON CONFLICT(user_id) DO NOTHING
	`, userID, now, now)
	if err != nil {
		return fmt.Errorf("failed to ensure user %d: %w", userID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, ignored_rarities, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET ignored_rarities = excluded.ignored_rarities, updated_at = excluded.updated_at
	`, userID, string(data), now, now)
	if err != nil {
		return fmt.Errorf("failed to update settings for user %d: %w", userID, err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM users WHERE subscribed = 1 ORDER BY user_id`)
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

func (s *SQLiteStore) RemoveUsers(ctx context.Context, userIDs []int64) error {
	if len(userIDs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE users SET subscribed = 0 WHERE user_id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, id := range userIDs {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("failed to unsubscribe user %d: %w", id, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) SaveStock(ctx context.Context, snap *models.Snapshot) error {
	data, err := json.Marshal(snap.Items)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO current_stock (stock_data, restock_time, message_id, created_at) VALUES (?, ?, ?, ?)
	`, string(data), snap.ObservedAt, snap.MessageID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save stock: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LatestStock(ctx context.Context) (*models.Snapshot, error) {
	var (
		raw       string
		messageID sql.NullString
	)
	snap := &models.Snapshot{}

	err := s.db.QueryRowContext(ctx, `
		SELECT stock_data, restock_time, message_id FROM current_stock ORDER BY id DESC LIMIT 1
	`).Scan(&raw, &snap.ObservedAt, &messageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load stock: %w", err)
	}

	snap.MessageID = messageID.String
	items, err := decodeStockItems([]byte(raw))
	if err != nil {
		return nil, err
	}
	snap.Items = items
	return snap, nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (*models.UserStats, error) {
	stats := &models.UserStats{}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM users WHERE subscribed = 1),
			(SELECT COUNT(*) FROM user_settings WHERE ignored_rarities != '[]')
	`).Scan(&stats.TotalUsers, &stats.Subscribed, &stats.WithFilters)
	if err != nil {
		return nil, fmt.Errorf("failed to load user stats: %w", err)
	}
	return stats, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
