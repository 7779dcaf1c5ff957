// Horizon - Realtime Services for Study-Abroad Counseling
// Copyright 2026 Stellar Education
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stellaredu/horizon

package websocket

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/stellaredu/horizon/internal/config"
	"github.com/stellaredu/horizon/internal/models"
	"github.com/stellaredu/horizon/internal/store"
)

type stubDirectory struct {
	users []string
}

func (d *stubDirectory) AuthenticatedUserIDs() []string {
	return d.users
}

// setupPollFanout builds a real store with one poll post and the given
// option labels, plus a spy to capture deliveries.
func setupPollFanout(t *testing.T, users []string, labels ...string) (*store.Store, *models.ForumPost, []models.PollOption, *spyBroadcaster, *PollFanout) {
	t.Helper()
	s, err := store.Open(&config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	post, err := s.CreatePost(context.Background(), "author-1", "Which intake?", "", true)
	if err != nil {
		t.Fatalf("failed to create poll post: %v", err)
	}
	options := make([]models.PollOption, 0, len(labels))
	for _, label := range labels {
		opt, err := s.AddPollOption(context.Background(), post.ID, label)
		if err != nil {
			t.Fatalf("failed to add option: %v", err)
		}
		options = append(options, *opt)
	}

	spy := &spyBroadcaster{}
	fanout := NewPollFanout(s, &stubDirectory{users: users}, spy)
	return s, post, options, spy, fanout
}

func pollPayload(t *testing.T, send spySend) pollVoteUpdateData {
	t.Helper()
	if send.message.Type != MessageTypePollVoteUpdate {
		t.Fatalf("message type = %q, want %q", send.message.Type, MessageTypePollVoteUpdate)
	}
	data, ok := send.message.Data.(pollVoteUpdateData)
	if !ok {
		t.Fatalf("payload = %#v, want pollVoteUpdateData", send.message.Data)
	}
	return data
}

func TestPollFanoutPrivacy(t *testing.T) {
	ctx := context.Background()
	s, post, options, spy, fanout := setupPollFanout(t, []string{"u1", "u2", "u3"}, "Fall 2026", "Spring 2027")

	if err := s.CastVote(ctx, post.ID, "u1", options[0].ID); err != nil {
		t.Fatalf("CastVote u1: %v", err)
	}
	if err := s.CastVote(ctx, post.ID, "u2", options[1].ID); err != nil {
		t.Fatalf("CastVote u2: %v", err)
	}

	fanout.BroadcastPollVote(ctx, post.ID, "u2")

	if len(spy.userSends) != 3 {
		t.Fatalf("deliveries = %d, want 3 (every authenticated user)", len(spy.userSends))
	}
	byUser := map[string]spySend{}
	for _, send := range spy.userSends {
		byUser[send.userID] = send
	}

	// Non-voter: option labels only, and no count-bearing field anywhere
	// in the serialized payload.
	nonVoter := pollPayload(t, byUser["u3"])
	if nonVoter.HasVoted {
		t.Error("u3 has not voted, hasVoted should be false")
	}
	restricted, ok := nonVoter.Results.(*models.PollOptionsOnly)
	if !ok {
		t.Fatalf("u3 results = %#v, want *models.PollOptionsOnly", nonVoter.Results)
	}
	if len(restricted.Options) != 2 {
		t.Errorf("u3 option count = %d, want 2", len(restricted.Options))
	}
	raw, err := json.Marshal(byUser["u3"].message)
	if err != nil {
		t.Fatalf("marshal u3 payload: %v", err)
	}
	for _, forbidden := range []string{"votes", "percentage", "totalVotes"} {
		if strings.Contains(string(raw), forbidden) {
			t.Errorf("non-voter payload leaks %q: %s", forbidden, raw)
		}
	}

	// Voter: full tallies, percentages summing to 100 within rounding,
	// and their own choice echoed back.
	voter := pollPayload(t, byUser["u1"])
	if !voter.HasVoted {
		t.Error("u1 has voted, hasVoted should be true")
	}
	full, ok := voter.Results.(*models.PollResults)
	if !ok {
		t.Fatalf("u1 results = %#v, want *models.PollResults", voter.Results)
	}
	if full.TotalVotes != 2 {
		t.Errorf("totalVotes = %d, want 2", full.TotalVotes)
	}
	if full.UserOptionID != options[0].ID {
		t.Errorf("u1 userOptionId = %d, want %d", full.UserOptionID, options[0].ID)
	}
	sum := 0
	for _, opt := range full.Options {
		sum += opt.Percentage
	}
	if sum < 100-len(full.Options) || sum > 100+len(full.Options) {
		t.Errorf("percentages sum = %d, want 100 within rounding", sum)
	}

	// The trigger user is an ordinary recipient with the full view.
	trigger := pollPayload(t, byUser["u2"])
	triggerFull, ok := trigger.Results.(*models.PollResults)
	if !ok {
		t.Fatalf("u2 results = %#v, want *models.PollResults", trigger.Results)
	}
	if triggerFull.UserOptionID != options[1].ID {
		t.Errorf("u2 userOptionId = %d, want %d", triggerFull.UserOptionID, options[1].ID)
	}
	if trigger.VoterID != "u2" {
		t.Errorf("voterId = %q, want u2", trigger.VoterID)
	}
}

// TestPollFanoutIsolation arms the broadcaster to blow up on the second
// recipient: the first and third must still receive their view, and the
// failure must not escape to the caller.
func TestPollFanoutIsolation(t *testing.T) {
	ctx := context.Background()
	s, post, options, spy, fanout := setupPollFanout(t, []string{"u1", "u2", "u3"}, "Fall 2026", "Spring 2027")
	spy.panicOn = 2

	for _, userID := range []string{"u1", "u2", "u3"} {
		if err := s.CastVote(ctx, post.ID, userID, options[0].ID); err != nil {
			t.Fatalf("CastVote %s: %v", userID, err)
		}
	}

	fanout.BroadcastPollVote(ctx, post.ID, "u1")

	if len(spy.userSends) != 2 {
		t.Fatalf("deliveries = %d, want 2 (second recipient failed)", len(spy.userSends))
	}
	if spy.userSends[0].userID != "u1" || spy.userSends[1].userID != "u3" {
		t.Errorf("recipients = %q, %q, want u1 and u3", spy.userSends[0].userID, spy.userSends[1].userID)
	}
}

func TestWithPercentages(t *testing.T) {
	tests := []struct {
		name  string
		votes []int
		total int
		want  []int
	}{
		{name: "no votes", votes: []int{0, 0}, total: 0, want: []int{0, 0}},
		{name: "even split", votes: []int{1, 1}, total: 2, want: []int{50, 50}},
		{name: "thirds round", votes: []int{1, 1, 1}, total: 3, want: []int{33, 33, 33}},
		{name: "all one option", votes: []int{4, 0}, total: 4, want: []int{100, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tally := make([]models.PollOptionResult, len(tt.votes))
			for i, v := range tt.votes {
				tally[i] = models.PollOptionResult{ID: int64(i + 1), Votes: v}
			}
			got := withPercentages(tally, tt.total)
			for i, want := range tt.want {
				if got[i].Percentage != want {
					t.Errorf("option %d percentage = %d, want %d", i, got[i].Percentage, want)
				}
			}
			// Input tally must not be mutated.
			for i := range tally {
				if tally[i].Percentage != 0 {
					t.Errorf("input tally mutated at %d", i)
				}
			}
		})
	}
}
