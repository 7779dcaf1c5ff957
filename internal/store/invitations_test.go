// Horizon - Realtime Services for Study-Abroad Counseling
// Copyright 2026 Stellar Education
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stellaredu/horizon

package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stellaredu/horizon/internal/models"
)

func TestClaimInvitationHappyPath(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	created, err := s.CreateInvitation(ctx, "counselor")
	if err != nil {
		t.Fatalf("CreateInvitation: %v", err)
	}

	claimed, err := s.ClaimInvitation(ctx, created.Token)
	if err != nil {
		t.Fatalf("ClaimInvitation: %v", err)
	}
	if claimed == nil {
		t.Fatal("first claim should return the pre-claim record")
	}
	if !claimed.IsActive {
		t.Error("returned record should reflect pre-claim state (active)")
	}
	if claimed.UsedCount != 0 {
		t.Errorf("pre-claim used_count = %d, want 0", claimed.UsedCount)
	}

	after, err := s.GetInvitation(ctx, created.Token)
	if err != nil {
		t.Fatalf("GetInvitation: %v", err)
	}
	if after.IsActive {
		t.Error("link must be inactive after claim")
	}
	if after.UsedCount != 1 {
		t.Errorf("used_count after claim = %d, want 1", after.UsedCount)
	}
	if after.LastUsedAt == nil {
		t.Error("last_used_at should be set after claim")
	}
}

func TestClaimInvitationAlreadyConsumed(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	created, err := s.CreateInvitation(ctx, "counselor")
	if err != nil {
		t.Fatalf("CreateInvitation: %v", err)
	}
	if _, err := s.ClaimInvitation(ctx, created.Token); err != nil {
		t.Fatalf("first claim: %v", err)
	}

	second, err := s.ClaimInvitation(ctx, created.Token)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if second != nil {
		t.Error("claiming a consumed link should return nil")
	}
}

func TestClaimInvitationUnknownToken(t *testing.T) {
	s := setupStore(t)
	claimed, err := s.ClaimInvitation(context.Background(), "no-such-token")
	if err != nil {
		t.Fatalf("ClaimInvitation: %v", err)
	}
	if claimed != nil {
		t.Error("unknown token should return nil")
	}
}

// TestConcurrentClaimExactlyOneWinner drives N concurrent claims against
// one active link: exactly one caller may observe the pre-claim record,
// and the link must show exactly one usage increment afterward.
func TestConcurrentClaimExactlyOneWinner(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	created, err := s.CreateInvitation(ctx, "admin")
	if err != nil {
		t.Fatalf("CreateInvitation: %v", err)
	}

	const claimers = 16
	results := make([]*models.InvitationLink, claimers)
	errs := make([]error, claimers)

	var wg sync.WaitGroup
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			results[n], errs[n] = s.ClaimInvitation(ctx, created.Token)
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := 0; i < claimers; i++ {
		if errs[i] != nil {
			t.Errorf("claimer %d error: %v", i, errs[i])
		}
		if results[i] != nil {
			winners++
			if !results[i].IsActive {
				t.Error("winning claim should observe the active pre-claim record")
			}
		}
	}
	if winners != 1 {
		t.Errorf("winners = %d, want exactly 1", winners)
	}

	after, err := s.GetInvitation(ctx, created.Token)
	if err != nil {
		t.Fatalf("GetInvitation: %v", err)
	}
	if after.IsActive {
		t.Error("link must be inactive after the claim batch")
	}
	if after.UsedCount != 1 {
		t.Errorf("used_count = %d, want 1 (not %d)", after.UsedCount, claimers)
	}
}
