// Horizon - Realtime Services for Study-Abroad Counseling
// Copyright 2026 Stellar Education
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stellaredu/horizon

// Package models defines data structures shared between the store and the
// realtime layer: forum records with their cached aggregates, poll result
// views, and invitation links.
package models

import "time"

// ForumPost represents a community forum post.
//
// LikesCount and CommentsCount are cached aggregates: denormalized copies
// of the true row counts in forum_likes and forum_comments. The store keeps
// them in sync by recounting inside the same transaction as the mutating
// write, so a broadcast built from a post read after the write always
// carries consistent counts.
type ForumPost struct {
	ID            int64     `json:"id"`
	AuthorID      string    `json:"authorId"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	LikesCount    int       `json:"likesCount"`
	CommentsCount int       `json:"commentsCount"`
	HasPoll       bool      `json:"hasPoll"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ForumComment represents a comment on a forum post.
type ForumComment struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"postId"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// InvitationLink is a single-use staff invitation token.
//
// Once IsActive is false the token is permanently unusable. The only path
// that flips an active link to consumed is the store's atomic
// claim-and-invalidate, which guarantees at most one successful claim per
// link even under concurrent attempts.
type InvitationLink struct {
	ID         int64      `json:"id"`
	Token      string     `json:"token"`
	Role       string     `json:"role"`
	UsedCount  int        `json:"usedCount"`
	IsActive   bool       `json:"isActive"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}
