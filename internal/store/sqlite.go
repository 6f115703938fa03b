package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kodlidy/quest-server/internal/domain"
	"github.com/kodlidy/quest-server/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite. Each player's progress is
// one JSON document in a single row, mirroring the "single serialized record
// under one storage key" model the quest pages expect.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS progress (
		player_id TEXT PRIMARY KEY,
		progress_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_progress_updated ON progress(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetProgress retrieves the progress record for a player. A missing row or
// an unparseable document both read back as (nil, nil): persisted state is
// never allowed to become a fatal error for the player.
func (s *SQLiteStore) GetProgress(ctx context.Context, playerID string) (*domain.Progress, error) {
	query := `SELECT progress_json FROM progress WHERE player_id = ?`

	var raw string
	err := s.db.QueryRowContext(ctx, query, playerID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan progress row: %w", err)
	}

	var p domain.Progress
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		slog.Warn("Discarding unparseable progress record", "player_id", playerID, "error", err)
		return nil, nil
	}
	p.EnsureMaps()
	return &p, nil
}

// SaveProgress creates or replaces the player's progress record. Retries
// with exponential backoff on SQLITE_BUSY.
func (s *SQLiteStore) SaveProgress(ctx context.Context, playerID string, p *domain.Progress) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}

	query := `
	INSERT INTO progress (player_id, progress_json, created_at, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(player_id) DO UPDATE SET
		progress_json = excluded.progress_json,
		updated_at = excluded.updated_at`

	now := time.Now().Unix()
	err = s.withBusyRetry(ctx, "save progress", playerID, func() error {
		_, execErr := s.db.ExecContext(ctx, query, playerID, string(doc), now, now)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	return nil
}

// DeleteProgress removes the player's progress record.
func (s *SQLiteStore) DeleteProgress(ctx context.Context, playerID string) error {
	err := s.withBusyRetry(ctx, "delete progress", playerID, func() error {
		_, execErr := s.db.ExecContext(ctx, `DELETE FROM progress WHERE player_id = ?`, playerID)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	return nil
}

// CleanupStaleProgress removes records whose identity cookie has long
// expired and that have not been touched within ttl.
func (s *SQLiteStore) CleanupStaleProgress(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()
	result, err := s.db.ExecContext(ctx, `DELETE FROM progress WHERE updated_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup stale progress: %w", err)
	}
	return result.RowsAffected()
}

// withBusyRetry runs op up to three times, backing off exponentially when
// SQLite reports the database busy or locked.
func (s *SQLiteStore) withBusyRetry(ctx context.Context, opName, playerID string, op func() error) error {
	const maxRetries = 3
	baseDelay := 100 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		err = op()
		if err == nil {
			return nil
		}
		if !shared.IsSQLiteConflictError(err) || i == maxRetries-1 {
			return err
		}
		delay := baseDelay * time.Duration(1<<i) // 100ms, 200ms, 400ms
		slog.Debug("SQLite busy, retrying",
			"op", opName,
			"player_id", playerID,
			"attempt", i+1,
			"delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
