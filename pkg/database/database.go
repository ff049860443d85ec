package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new database connection pool
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Fan-out reads one preference per subscriber concurrently
	config.MaxConns = 30
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	db.Pool.Close()
}

// Migrate creates the tables if they do not exist. The layout is compatible with
// databases created by the previous bot, which had no subscription flag and stored
// stock_data as a plain quantity map (see storage.decodeStockItems).
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id BIGINT PRIMARY KEY,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			last_active TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		);`,

		// Unreachable users are unsubscribed, not deleted, so their filters survive a comeback
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS subscribed BOOLEAN NOT NULL DEFAULT TRUE;`,

		`CREATE TABLE IF NOT EXISTS user_settings (
			user_id BIGINT PRIMARY KEY REFERENCES users(user_id) ON DELETE CASCADE,
			ignored_rarities JSONB DEFAULT '[]'::jsonb,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS current_stock (
			id SERIAL PRIMARY KEY,
			stock_data JSONB NOT NULL,
			restock_time TEXT NOT NULL,
			message_id TEXT,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE INDEX IF NOT EXISTS idx_users_created ON users(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_users_subscribed ON users(subscribed) WHERE subscribed = true;`,
		`CREATE INDEX IF NOT EXISTS idx_settings_rarities ON user_settings USING GIN (ignored_rarities);`,
		`CREATE INDEX IF NOT EXISTS idx_stock_created ON current_stock(created_at DESC);`,
	}

	for _, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w\nQuery: %s", err, migration)
		}
	}

	return nil
}
