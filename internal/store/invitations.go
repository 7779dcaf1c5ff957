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

	"github.com/google/uuid"

	"github.com/stellaredu/horizon/internal/models"
)

// CreateInvitation mints a new single-use staff invitation link.
func (s *Store) CreateInvitation(ctx context.Context, role string) (*models.InvitationLink, error) {
	token := uuid.NewString()
	now := time.Now().UTC()
	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO invitation_links (token, role, used_count, is_active, created_at)
		VALUES (?, ?, 0, 1, ?)
	`, token, role, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert invitation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read invitation id: %w", err)
	}
	return &models.InvitationLink{
		ID:        id,
		Token:     token,
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
	}, nil
}

// GetInvitation fetches an invitation link by token regardless of state.
func (s *Store) GetInvitation(ctx context.Context, token string) (*models.InvitationLink, error) {
	var link models.InvitationLink
	err := s.conn.QueryRowContext(ctx, `
		SELECT id, token, role, used_count, is_active, last_used_at, created_at
		FROM invitation_links WHERE token = ?
	`, token).Scan(&link.ID, &link.Token, &link.Role, &link.UsedCount, &link.IsActive, &link.LastUsedAt, &link.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read invitation: %w", err)
	}
	return &link, nil
}

// ClaimInvitation atomically claims a still-active invitation link:
// it reads the link, increments used_count, and flips is_active to false
// in one transaction. Returns the pre-claim record when the claim won, or
// nil when the link was already consumed or never existed.
//
// The conditional UPDATE re-checks is_active, so even if two claims read
// the same active row, only the one whose UPDATE touches a row wins. The
// transaction boundary, not application locking, is the enforcement
// mechanism: at most one caller ever observes the active record.
func (s *Store) ClaimInvitation(ctx context.Context, token string) (link *models.InvitationLink, err error) {
	tx, cleanup, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	var pre models.InvitationLink
	err = tx.QueryRowContext(ctx, `
		SELECT id, token, role, used_count, is_active, last_used_at, created_at
		FROM invitation_links WHERE token = ? AND is_active = 1
	`, token).Scan(&pre.ID, &pre.Token, &pre.Role, &pre.UsedCount, &pre.IsActive, &pre.LastUsedAt, &pre.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read invitation for claim: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE invitation_links
		SET used_count = used_count + 1, is_active = 0, last_used_at = ?
		WHERE token = ? AND is_active = 1
	`, time.Now().UTC(), token)
	if err != nil {
		return nil, fmt.Errorf("failed to invalidate invitation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		// Lost a race with a concurrent claim.
		return nil, nil
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit invitation claim: %w", err)
	}
	return &pre, nil
}
