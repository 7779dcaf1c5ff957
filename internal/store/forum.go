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

// CreatePost inserts a new forum post with zeroed aggregates.
func (s *Store) CreatePost(ctx context.Context, authorID, title, content string, hasPoll bool) (*models.ForumPost, error) {
	now := time.Now().UTC()
	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO forum_posts (author_id, title, content, has_poll, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, authorID, title, content, hasPoll, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert post: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read post id: %w", err)
	}

	return &models.ForumPost{
		ID:        id,
		AuthorID:  authorID,
		Title:     title,
		Content:   content,
		HasPoll:   hasPoll,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetPost fetches one post including its cached aggregates.
func (s *Store) GetPost(ctx context.Context, postID int64) (*models.ForumPost, error) {
	return scanPost(s.conn.QueryRowContext(ctx, `
		SELECT id, author_id, title, content, likes_count, comments_count, has_poll, created_at, updated_at
		FROM forum_posts WHERE id = ?
	`, postID))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.ForumPost, error) {
	var p models.ForumPost
	err := row.Scan(&p.ID, &p.AuthorID, &p.Title, &p.Content,
		&p.LikesCount, &p.CommentsCount, &p.HasPoll, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan post: %w", err)
	}
	return &p, nil
}

// CreateComment inserts a comment and synchronizes the parent post's
// comments_count in the same transaction. The counter is set to the true
// recount rather than incremented, so a retried transaction cannot
// double-count. Returns the comment and the post's new comment count.
func (s *Store) CreateComment(ctx context.Context, postID int64, authorID, content string) (comment *models.ForumComment, count int, err error) {
	tx, cleanup, err := s.begin(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer cleanup()

	if err := postExists(ctx, tx, postID); err != nil {
		return nil, 0, err
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO forum_comments (post_id, author_id, content, created_at)
		VALUES (?, ?, ?, ?)
	`, postID, authorID, content, now)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to insert comment: %w", err)
	}
	commentID, err := res.LastInsertId()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read comment id: %w", err)
	}

	count, err = s.recountComments(ctx, tx, postID, now)
	if err != nil {
		return nil, 0, err
	}

	if err = tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("failed to commit comment: %w", err)
	}

	return &models.ForumComment{
		ID:        commentID,
		PostID:    postID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: now,
	}, count, nil
}

// DeleteComment removes a comment and synchronizes the parent post's
// comments_count in the same transaction. Returns the post id and its new
// comment count.
func (s *Store) DeleteComment(ctx context.Context, commentID int64) (postID int64, count int, err error) {
	tx, cleanup, err := s.begin(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer cleanup()

	err = tx.QueryRowContext(ctx, `SELECT post_id FROM forum_comments WHERE id = ?`, commentID).Scan(&postID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, ErrNotFound
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to look up comment: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM forum_comments WHERE id = ?`, commentID); err != nil {
		return 0, 0, fmt.Errorf("failed to delete comment: %w", err)
	}

	count, err = s.recountComments(ctx, tx, postID, time.Now().UTC())
	if err != nil {
		return 0, 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit comment delete: %w", err)
	}
	return postID, count, nil
}

// postExists verifies the post inside the mutating transaction, so a
// mutation against a deleted post fails with ErrNotFound instead of a
// foreign key violation.
func postExists(ctx context.Context, tx *sql.Tx, postID int64) error {
	var exists bool
	err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM forum_posts WHERE id = ?)`, postID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check post: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

// recountComments sets the post's cached comments_count to the true row
// count and returns the new value. Must run inside the mutating transaction.
func (s *Store) recountComments(ctx context.Context, tx *sql.Tx, postID int64, now time.Time) (int, error) {
	if _, err := tx.ExecContext(ctx, `
		UPDATE forum_posts
		SET comments_count = (SELECT COUNT(*) FROM forum_comments WHERE post_id = ?),
		    updated_at = ?
		WHERE id = ?
	`, postID, now, postID); err != nil {
		return 0, fmt.Errorf("failed to recount comments: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT comments_count FROM forum_posts WHERE id = ?`, postID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to read comment count: %w", err)
	}
	return count, nil
}

// ToggleLike flips the calling user's like on a post. Presence is read and
// flipped within the same transaction as the recount, so two concurrent
// toggles cannot both insert or both delete. Returns the resulting presence
// and the post's new like count.
func (s *Store) ToggleLike(ctx context.Context, postID int64, userID string) (liked bool, count int, err error) {
	tx, cleanup, err := s.begin(ctx)
	if err != nil {
		return false, 0, err
	}
	defer cleanup()

	if err := postExists(ctx, tx, postID); err != nil {
		return false, 0, err
	}

	var exists bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM forum_likes WHERE post_id = ? AND user_id = ?)
	`, postID, userID).Scan(&exists)
	if err != nil {
		return false, 0, fmt.Errorf("failed to read like presence: %w", err)
	}

	now := time.Now().UTC()
	if exists {
		_, err = tx.ExecContext(ctx, `DELETE FROM forum_likes WHERE post_id = ? AND user_id = ?`, postID, userID)
	} else {
		_, err = tx.ExecContext(ctx, `INSERT INTO forum_likes (post_id, user_id, created_at) VALUES (?, ?, ?)`, postID, userID, now)
	}
	if err != nil {
		return false, 0, fmt.Errorf("failed to toggle like: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE forum_posts
		SET likes_count = (SELECT COUNT(*) FROM forum_likes WHERE post_id = ?),
		    updated_at = ?
		WHERE id = ?
	`, postID, now, postID); err != nil {
		return false, 0, fmt.Errorf("failed to recount likes: %w", err)
	}

	if err = tx.QueryRowContext(ctx, `SELECT likes_count FROM forum_posts WHERE id = ?`, postID).Scan(&count); err != nil {
		return false, 0, fmt.Errorf("failed to read like count: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("failed to commit like toggle: %w", err)
	}
	return !exists, count, nil
}

// ToggleSave flips the calling user's save bookmark on a post. Saves carry
// no cached counter; the toggle still runs in one transaction so concurrent
// calls cannot produce duplicate rows.
func (s *Store) ToggleSave(ctx context.Context, postID int64, userID string) (saved bool, err error) {
	tx, cleanup, err := s.begin(ctx)
	if err != nil {
		return false, err
	}
	defer cleanup()

	if err := postExists(ctx, tx, postID); err != nil {
		return false, err
	}

	var exists bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM forum_saves WHERE post_id = ? AND user_id = ?)
	`, postID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to read save presence: %w", err)
	}

	if exists {
		_, err = tx.ExecContext(ctx, `DELETE FROM forum_saves WHERE post_id = ? AND user_id = ?`, postID, userID)
	} else {
		_, err = tx.ExecContext(ctx, `INSERT INTO forum_saves (post_id, user_id, created_at) VALUES (?, ?, ?)`, postID, userID, time.Now().UTC())
	}
	if err != nil {
		return false, fmt.Errorf("failed to toggle save: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit save toggle: %w", err)
	}
	return !exists, nil
}

// CountComments returns the true number of comment rows for a post,
// bypassing the cached aggregate. Used to verify counter consistency.
func (s *Store) CountComments(ctx context.Context, postID int64) (int, error) {
	var n int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM forum_comments WHERE post_id = ?`, postID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count comments: %w", err)
	}
	return n, nil
}

// CountLikes returns the true number of like rows for a post, bypassing
// the cached aggregate.
func (s *Store) CountLikes(ctx context.Context, postID int64) (int, error) {
	var n int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM forum_likes WHERE post_id = ?`, postID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count likes: %w", err)
	}
	return n, nil
}
