// Horizon - Realtime Services for Study-Abroad Counseling
// Copyright 2026 Stellar Education
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stellaredu/horizon

package websocket

import (
	"context"
	"math"

	"github.com/stellaredu/horizon/internal/logging"
	"github.com/stellaredu/horizon/internal/metrics"
	"github.com/stellaredu/horizon/internal/models"
)

// PollStore is the persistence surface the poll fan-out reads from.
type PollStore interface {
	PollOptions(ctx context.Context, postID int64) ([]models.PollOption, error)
	VotersByPost(ctx context.Context, postID int64) (map[string]int64, error)
	PollTally(ctx context.Context, postID int64) ([]models.PollOptionResult, int, error)
}

// UserDirectory enumerates the users currently eligible to receive a
// fan-out. The hub satisfies it.
type UserDirectory interface {
	AuthenticatedUserIDs() []string
}

// PollFanout recomputes and delivers a per-recipient poll view after a
// vote. Recipients who have voted see the full tally plus their own
// choice; recipients who have not voted see option labels only — no
// counts, no percentages, no total — so partial results cannot sway an
// undecided voter.
type PollFanout struct {
	store       PollStore
	directory   UserDirectory
	broadcaster Broadcaster
}

func NewPollFanout(store PollStore, directory UserDirectory, broadcaster Broadcaster) *PollFanout {
	return &PollFanout{store: store, directory: directory, broadcaster: broadcaster}
}

// pollVoteUpdateData is the poll_vote_update payload. Results holds a
// *models.PollResults for voters or a *models.PollOptionsOnly for
// non-voters; the two shapes share no count-bearing fields.
type pollVoteUpdateData struct {
	PostID   int64       `json:"postId"`
	VoterID  string      `json:"voterId"`
	HasVoted bool        `json:"hasVoted"`
	Results  interface{} `json:"results"`
}

// BroadcastPollVote sends every authenticated user an up-to-date view of
// the poll on postID after voterID cast or changed a vote. The trigger
// user is just another recipient: they have voted as of this event, so
// they receive the full-results view like any other voter.
//
// The vote map and tally are fetched once per event, not once per
// recipient; per-recipient work is pure branching. Inherently
// O(connected users) sends per vote, and a failure computing one
// recipient's view never blocks the rest.
func (f *PollFanout) BroadcastPollVote(ctx context.Context, postID int64, voterID string) {
	guard("broadcast_poll_vote", func() {
		voters, err := f.store.VotersByPost(ctx, postID)
		if err != nil {
			logging.Error().Err(err).Int64("post_id", postID).Msg("poll fan-out: failed to load voters")
			return
		}
		tally, total, err := f.store.PollTally(ctx, postID)
		if err != nil {
			logging.Error().Err(err).Int64("post_id", postID).Msg("poll fan-out: failed to load tally")
			return
		}
		options, err := f.store.PollOptions(ctx, postID)
		if err != nil {
			logging.Error().Err(err).Int64("post_id", postID).Msg("poll fan-out: failed to load options")
			return
		}

		results := withPercentages(tally, total)

		for _, userID := range f.directory.AuthenticatedUserIDs() {
			f.sendPollView(postID, voterID, userID, voters, results, total, options)
		}
	})
}

// sendPollView computes and delivers one recipient's view. Isolated so a
// panic while building one view cannot abort the remaining recipients.
func (f *PollFanout) sendPollView(postID int64, voterID, userID string, voters map[string]int64, results []models.PollOptionResult, total int, options []models.PollOption) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().
				Str("operation", "poll_vote_view").
				Str("user_id", userID).
				Int64("post_id", postID).
				Interface("panic", r).
				Msg("poll fan-out recovered from panic for one recipient")
		}
	}()

	optionID, voted := voters[userID]

	var view interface{}
	if voted {
		view = &models.PollResults{
			PostID:       postID,
			Options:      results,
			TotalVotes:   total,
			UserOptionID: optionID,
		}
	} else {
		view = &models.PollOptionsOnly{
			PostID:  postID,
			Options: options,
		}
	}

	f.broadcaster.SendToUser(userID, newEnvelope(MessageTypePollVoteUpdate, pollVoteUpdateData{
		PostID:   postID,
		VoterID:  voterID,
		HasVoted: voted,
		Results:  view,
	}))
	metrics.PollFanoutRecipients.Inc()
}

// withPercentages fills each option's percentage of the total. All
// percentages are 0 when the poll has no votes.
func withPercentages(tally []models.PollOptionResult, total int) []models.PollOptionResult {
	results := make([]models.PollOptionResult, len(tally))
	copy(results, tally)
	for i := range results {
		if total > 0 {
			results[i].Percentage = int(math.Round(float64(results[i].Votes) / float64(total) * 100))
		} else {
			results[i].Percentage = 0
		}
	}
	return results
}
