// Horizon - Realtime Services for Study-Abroad Counseling
// Copyright 2026 Stellar Education
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stellaredu/horizon

package models

// PollOption is one choice attached to a post's poll.
type PollOption struct {
	ID     int64  `json:"id"`
	PostID int64  `json:"postId"`
	Text   string `json:"text"`
}

// PollVote records one user's current choice on a post. At most one row
// exists per (post, user); re-voting overwrites the option rather than
// adding a second row.
type PollVote struct {
	PostID   int64  `json:"postId"`
	UserID   string `json:"userId"`
	OptionID int64  `json:"optionId"`
}

// PollOptionResult is a single option with its tally, visible only to
// users who have already voted on the post.
type PollOptionResult struct {
	ID         int64  `json:"id"`
	Text       string `json:"text"`
	Votes      int    `json:"votes"`
	Percentage int    `json:"percentage"`
}

// PollResults is the full-results view of a poll: per-option tallies,
// the total, and the viewer's own choice.
type PollResults struct {
	PostID       int64              `json:"postId"`
	Options      []PollOptionResult `json:"options"`
	TotalVotes   int                `json:"totalVotes"`
	UserOptionID int64              `json:"userOptionId"`
}

// PollOptionsOnly is the restricted view sent to users who have not voted
// yet. It deliberately has no count-bearing fields at all, so a non-voter
// cannot infer tallies from the payload shape.
type PollOptionsOnly struct {
	PostID  int64        `json:"postId"`
	Options []PollOption `json:"options"`
}
