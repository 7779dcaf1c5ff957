// Horizon - Realtime Services for Study-Abroad Counseling
// Copyright 2026 Stellar Education
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stellaredu/horizon

package api

import (
	"net/http"

	"github.com/stellaredu/horizon/internal/logging"
)

// CreateInvitationRequest mints a single-use invitation link granting
// the named role. Admin only.
type CreateInvitationRequest struct {
	Role string `json:"role" validate:"required,oneof=counselor admin student"`
}

// ClaimInvitationRequest redeems an invitation token.
type ClaimInvitationRequest struct {
	Token string `json:"token" validate:"required"`
}

func (h *Handler) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	var req CreateInvitationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	link, err := h.store.CreateInvitation(r.Context(), req.Role)
	if err != nil {
		logging.Error().Err(err).Msg("failed to create invitation")
		respondError(w, http.StatusInternalServerError, "INTERNAL", "failed to create invitation")
		return
	}
	writeJSON(w, http.StatusCreated, link)
}

// ClaimInvitation atomically consumes a single-use invitation link. The
// claim and the invalidation are one transaction, so under concurrent
// redemption exactly one caller wins; everyone else gets 410 Gone.
func (h *Handler) ClaimInvitation(w http.ResponseWriter, r *http.Request) {
	var req ClaimInvitationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	link, err := h.store.ClaimInvitation(r.Context(), req.Token)
	if err != nil {
		logging.Error().Err(err).Msg("failed to claim invitation")
		respondError(w, http.StatusInternalServerError, "INTERNAL", "failed to claim invitation")
		return
	}
	if link == nil {
		respondError(w, http.StatusGone, "INVITATION_CONSUMED", "invitation link is invalid or already used")
		return
	}

	logging.Info().Str("role", link.Role).Msg("invitation link claimed")
	writeJSON(w, http.StatusOK, map[string]string{"role": link.Role})
}
