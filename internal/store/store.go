// Horizon - Realtime Services for Study-Abroad Counseling
// Copyright 2026 Stellar Education
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stellaredu/horizon

// Package store is the persistence layer consumed by the realtime handlers.
//
// Its defining responsibility is atomic counter synchronization: the forum
// post rows carry cached aggregates (likes_count, comments_count) that must
// always equal the true row counts in forum_likes and forum_comments. Every
// mutating operation recounts the aggregate inside the same transaction as
// the write, so the invariant holds at every commit boundary. The recount
// (rather than count+1) also makes retried transactions safe against
// double-counting.
//
// The database transaction, not an in-process lock, is the concurrency
// control for these invariants: the same guarantees hold across processes
// and replicas, which a mutex cannot provide.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/stellaredu/horizon/internal/config"
	"github.com/stellaredu/horizon/internal/logging"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Store wraps the SQLite connection and provides data access methods.
type Store struct {
	conn *sql.DB
}

// Open creates the database connection and initializes the schema.
func Open(cfg *config.DatabaseConfig) (*Store, error) {
	// Ensure the parent directory exists for the database file.
	// Use 0750 permissions (owner: rwx, group: rx, other: none) per gosec G301.
	dbDir := filepath.Dir(cfg.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)", cfg.Path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer at a time. A single pooled connection
	// serializes transactions at the pool instead of surfacing SQLITE_BUSY
	// to callers under concurrent writes.
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn}
	if err := s.createSchema(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	logging.Info().Str("path", cfg.Path).Msg("database opened")
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Ping verifies the connection is alive. Used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// createSchema creates all tables. Safe to call multiple times.
func (s *Store) createSchema() error {
	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// begin starts a transaction. The returned cleanup func rolls back unless
// the transaction was committed; rollback failures after commit are
// expected and ignored, any other rollback failure is logged.
func (s *Store) begin(ctx context.Context) (*sql.Tx, func(), error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	cleanup := func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logging.Error().Err(rbErr).Msg("transaction rollback failed")
		}
	}
	return tx, cleanup, nil
}

const schema = `
-- Forum posts with cached aggregate counters
CREATE TABLE IF NOT EXISTS forum_posts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    author_id TEXT NOT NULL,
    title TEXT NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    likes_count INTEGER NOT NULL DEFAULT 0,
    comments_count INTEGER NOT NULL DEFAULT 0,
    has_poll INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS forum_comments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    post_id INTEGER NOT NULL REFERENCES forum_posts(id) ON DELETE CASCADE,
    author_id TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_forum_comments_post ON forum_comments(post_id);

-- Presence rows: one per (post, user)
CREATE TABLE IF NOT EXISTS forum_likes (
    post_id INTEGER NOT NULL REFERENCES forum_posts(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (post_id, user_id)
);

CREATE TABLE IF NOT EXISTS forum_saves (
    post_id INTEGER NOT NULL REFERENCES forum_posts(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (post_id, user_id)
);

CREATE TABLE IF NOT EXISTS poll_options (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    post_id INTEGER NOT NULL REFERENCES forum_posts(id) ON DELETE CASCADE,
    text TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_poll_options_post ON poll_options(post_id);

-- One vote per (post, user); re-voting overwrites option_id
CREATE TABLE IF NOT EXISTS poll_votes (
    post_id INTEGER NOT NULL REFERENCES forum_posts(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    option_id INTEGER NOT NULL REFERENCES poll_options(id) ON DELETE CASCADE,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (post_id, user_id)
);

-- Single-use staff invitation links
CREATE TABLE IF NOT EXISTS invitation_links (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    token TEXT NOT NULL UNIQUE,
    role TEXT NOT NULL DEFAULT 'counselor',
    used_count INTEGER NOT NULL DEFAULT 0,
    is_active INTEGER NOT NULL DEFAULT 1,
    last_used_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL
);
`
