// Horizon - Realtime Services for Study-Abroad Counseling
// Copyright 2026 Stellar Education
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stellaredu/horizon

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stellaredu/horizon/internal/logging"
	"github.com/stellaredu/horizon/internal/store"
)

// CreatePostRequest creates a forum post, optionally with a poll.
type CreatePostRequest struct {
	Title       string   `json:"title" validate:"required,min=1,max=300"`
	Content     string   `json:"content" validate:"max=20000"`
	PollOptions []string `json:"pollOptions" validate:"omitempty,min=2,max=10,dive,required,max=200"`
}

// CreateCommentRequest adds a comment to a post.
type CreateCommentRequest struct {
	Content string `json:"content" validate:"required,min=1,max=10000"`
}

// CastVoteRequest records a poll vote.
type CastVoteRequest struct {
	OptionID int64 `json:"optionId" validate:"required,gt=0"`
}

// pathID parses the {id} URL parameter. Writes the error response and
// returns false on a non-numeric id.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "invalid id in path")
		return 0, false
	}
	return id, true
}

// CreatePost persists a post (plus poll options, if any) and broadcasts
// it to every connected client. The broadcast happens only after the
// write committed; its own failure cannot fail the request.
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req CreatePostRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	userID := requestUserID(r.Context())
	post, err := h.store.CreatePost(r.Context(), userID, req.Title, req.Content, len(req.PollOptions) > 0)
	if err != nil {
		logging.Error().Err(err).Msg("failed to create post")
		respondError(w, http.StatusInternalServerError, "INTERNAL", "failed to create post")
		return
	}
	for _, label := range req.PollOptions {
		if _, err := h.store.AddPollOption(r.Context(), post.ID, label); err != nil {
			logging.Error().Err(err).Int64("post_id", post.ID).Msg("failed to add poll option")
			respondError(w, http.StatusInternalServerError, "INTERNAL", "failed to create poll")
			return
		}
	}

	h.forum.BroadcastPostCreated(post)
	writeJSON(w, http.StatusCreated, post)
}

// GetPost returns one post.
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, r)
	if !ok {
		return
	}
	post, err := h.store.GetPost(r.Context(), postID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "post not found")
		return
	}
	if err != nil {
		logging.Error().Err(err).Int64("post_id", postID).Msg("failed to load post")
		respondError(w, http.StatusInternalServerError, "INTERNAL", "failed to load post")
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// CreateComment inserts the comment and recounts the parent's cached
// commentsCount in one transaction, then broadcasts the comment with
// the already-consistent count.
func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req CreateCommentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	comment, count, err := h.store.CreateComment(r.Context(), postID, requestUserID(r.Context()), req.Content)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "post not found")
		return
	}
	if err != nil {
		logging.Error().Err(err).Int64("post_id", postID).Msg("failed to create comment")
		respondError(w, http.StatusInternalServerError, "INTERNAL", "failed to create comment")
		return
	}

	h.forum.BroadcastCommentCreated(comment, count)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"comment":       comment,
		"commentsCount": count,
	})
}

// DeleteComment removes a comment and recounts the parent post, then
// broadcasts the refreshed post.
func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	commentID, ok := pathID(w, r)
	if !ok {
		return
	}

	postID, count, err := h.store.DeleteComment(r.Context(), commentID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "comment not found")
		return
	}
	if err != nil {
		logging.Error().Err(err).Int64("comment_id", commentID).Msg("failed to delete comment")
		respondError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete comment")
		return
	}

	if post, err := h.store.GetPost(r.Context(), postID); err == nil {
		h.forum.BroadcastPostUpdated(post)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"postId":        postID,
		"commentsCount": count,
	})
}

// ToggleLike flips the caller's like on the post and broadcasts the
// recounted total.
func (h *Handler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, r)
	if !ok {
		return
	}

	userID := requestUserID(r.Context())
	liked, count, err := h.store.ToggleLike(r.Context(), postID, userID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "post not found")
		return
	}
	if err != nil {
		logging.Error().Err(err).Int64("post_id", postID).Msg("failed to toggle like")
		respondError(w, http.StatusInternalServerError, "INTERNAL", "failed to toggle like")
		return
	}

	h.forum.BroadcastPostLikeUpdate(postID, userID, liked, count)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"liked":      liked,
		"likesCount": count,
	})
}

// ToggleSave flips the caller's save bookmark. Saves are private, so
// nothing is broadcast.
func (h *Handler) ToggleSave(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, r)
	if !ok {
		return
	}

	saved, err := h.store.ToggleSave(r.Context(), postID, requestUserID(r.Context()))
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "post not found")
		return
	}
	if err != nil {
		logging.Error().Err(err).Int64("post_id", postID).Msg("failed to toggle save")
		respondError(w, http.StatusInternalServerError, "INTERNAL", "failed to toggle save")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"saved": saved})
}

// CastVote records the caller's poll choice and fans the per-recipient
// poll views out to every authenticated connection.
func (h *Handler) CastVote(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req CastVoteRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	userID := requestUserID(r.Context())
	if err := h.store.CastVote(r.Context(), postID, userID, req.OptionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "poll option not found on this post")
			return
		}
		logging.Error().Err(err).Int64("post_id", postID).Msg("failed to cast vote")
		respondError(w, http.StatusInternalServerError, "INTERNAL", "failed to cast vote")
		return
	}

	h.polls.BroadcastPollVote(r.Context(), postID, userID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"postId":   postID,
		"optionId": req.OptionID,
	})
}
