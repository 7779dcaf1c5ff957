// Horizon - Realtime Services for Study-Abroad Counseling
// Copyright 2026 Stellar Education
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stellaredu/horizon

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stellaredu/horizon/internal/models"
)

// AddPollOption attaches a poll option to a post.
func (s *Store) AddPollOption(ctx context.Context, postID int64, text string) (*models.PollOption, error) {
	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO poll_options (post_id, text) VALUES (?, ?)
	`, postID, text)
	if err != nil {
		return nil, fmt.Errorf("failed to insert poll option: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read option id: %w", err)
	}
	return &models.PollOption{ID: id, PostID: postID, Text: text}, nil
}

// PollOptions returns a post's options in insertion order.
func (s *Store) PollOptions(ctx context.Context, postID int64) ([]models.PollOption, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, post_id, text FROM poll_options WHERE post_id = ? ORDER BY id
	`, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to query poll options: %w", err)
	}
	defer rows.Close()

	var options []models.PollOption
	for rows.Next() {
		var o models.PollOption
		if err := rows.Scan(&o.ID, &o.PostID, &o.Text); err != nil {
			return nil, fmt.Errorf("failed to scan poll option: %w", err)
		}
		options = append(options, o)
	}
	return options, rows.Err()
}

// CastVote records the user's choice on a post's poll. A user holds at most
// one vote per post: voting again overwrites the previous option in place.
// The option must belong to the post, checked inside the same transaction
// as the upsert.
func (s *Store) CastVote(ctx context.Context, postID int64, userID string, optionID int64) (err error) {
	tx, cleanup, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	var belongs bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM poll_options WHERE id = ? AND post_id = ?)
	`, optionID, postID).Scan(&belongs)
	if err != nil {
		return fmt.Errorf("failed to check poll option: %w", err)
	}
	if !belongs {
		return fmt.Errorf("option %d does not belong to post %d: %w", optionID, postID, ErrNotFound)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO poll_votes (post_id, user_id, option_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (post_id, user_id) DO UPDATE SET option_id = excluded.option_id, created_at = excluded.created_at
	`, postID, userID, optionID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to cast vote: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit vote: %w", err)
	}
	return nil
}

// HasVoted reports whether the user holds a vote on the post.
func (s *Store) HasVoted(ctx context.Context, postID int64, userID string) (bool, error) {
	var exists bool
	err := s.conn.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM poll_votes WHERE post_id = ? AND user_id = ?)
	`, postID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to read vote presence: %w", err)
	}
	return exists, nil
}

// VotersByPost returns every voter on the post mapped to their chosen
// option. The fan-out uses this single bulk query instead of one lookup
// per connected session.
func (s *Store) VotersByPost(ctx context.Context, postID int64) (map[string]int64, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT user_id, option_id FROM poll_votes WHERE post_id = ?
	`, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to query voters: %w", err)
	}
	defer rows.Close()

	voters := make(map[string]int64)
	for rows.Next() {
		var userID string
		var optionID int64
		if err := rows.Scan(&userID, &optionID); err != nil {
			return nil, fmt.Errorf("failed to scan voter: %w", err)
		}
		voters[userID] = optionID
	}
	return voters, rows.Err()
}

// PollTally returns each option with its current vote count, plus the
// total. Percentages are a presentation concern computed by the fan-out.
func (s *Store) PollTally(ctx context.Context, postID int64) (options []models.PollOptionResult, total int, err error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT o.id, o.text, COUNT(v.option_id)
		FROM poll_options o
		LEFT JOIN poll_votes v ON v.option_id = o.id
		WHERE o.post_id = ?
		GROUP BY o.id, o.text
		ORDER BY o.id
	`, postID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query poll tally: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r models.PollOptionResult
		if err := rows.Scan(&r.ID, &r.Text, &r.Votes); err != nil {
			return nil, 0, fmt.Errorf("failed to scan poll tally: %w", err)
		}
		total += r.Votes
		options = append(options, r)
	}
	return options, total, rows.Err()
}

// UserVote returns the option the user chose on the post, or ErrNotFound.
func (s *Store) UserVote(ctx context.Context, postID int64, userID string) (int64, error) {
	var optionID int64
	err := s.conn.QueryRowContext(ctx, `
		SELECT option_id FROM poll_votes WHERE post_id = ? AND user_id = ?
	`, postID, userID).Scan(&optionID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read user vote: %w", err)
	}
	return optionID, nil
}
