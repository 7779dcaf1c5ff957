// Horizon - Realtime Services for Study-Abroad Counseling
// Copyright 2026 Stellar Education
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stellaredu/horizon

package websocket

import (
	"github.com/stellaredu/horizon/internal/logging"
	"github.com/stellaredu/horizon/internal/models"
)

// Broadcaster is the delivery surface the event handlers need from the
// hub. Narrowed to an interface so handler tests can run against a spy
// instead of live connections.
type Broadcaster interface {
	SendToUser(userID string, message Envelope) int
	BroadcastToAll(message Envelope)
}

// guard runs fn and swallows any panic with a log. Event emission is a
// side effect of a business operation that has already committed; a
// delivery failure must never surface to that operation's caller.
func guard(operation string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().
				Str("operation", operation).
				Interface("panic", r).
				Msg("websocket event handler recovered from panic")
		}
	}()
	fn()
}

// ChatEvents emits chat-room activity to the two participants of a
// student/counselor conversation.
type ChatEvents struct {
	broadcaster Broadcaster
}

func NewChatEvents(b Broadcaster) *ChatEvents {
	return &ChatEvents{broadcaster: b}
}

// BroadcastChatMessage delivers the same chat_message envelope to every
// session of both participants.
func (e *ChatEvents) BroadcastChatMessage(studentID, counselorID string, payload interface{}) {
	guard("broadcast_chat_message", func() {
		msg := newEnvelope(MessageTypeChatMessage, payload)
		e.broadcaster.SendToUser(studentID, msg)
		e.broadcaster.SendToUser(counselorID, msg)
	})
}

// BroadcastMessageReadStatus tells both participants a message was read.
func (e *ChatEvents) BroadcastMessageReadStatus(studentID, counselorID, messageID string, payload interface{}) {
	guard("broadcast_message_read", func() {
		msg := newEnvelope(MessageTypeMessageRead, messageReadData{
			MessageID: messageID,
			Payload:   payload,
		})
		e.broadcaster.SendToUser(studentID, msg)
		e.broadcaster.SendToUser(counselorID, msg)
	})
}

type messageReadData struct {
	MessageID string      `json:"messageId"`
	Payload   interface{} `json:"payload,omitempty"`
}

// NotificationEvents delivers in-app notifications to one user.
type NotificationEvents struct {
	broadcaster Broadcaster
}

func NewNotificationEvents(b Broadcaster) *NotificationEvents {
	return &NotificationEvents{broadcaster: b}
}

func (e *NotificationEvents) SendNotification(userID string, payload interface{}) {
	guard("send_notification", func() {
		e.broadcaster.SendToUser(userID, newEnvelope(MessageTypeNotification, payload))
	})
}

// ApplicationEvents delivers application-status changes to the student
// who owns the application.
type ApplicationEvents struct {
	broadcaster Broadcaster
}

func NewApplicationEvents(b Broadcaster) *ApplicationEvents {
	return &ApplicationEvents{broadcaster: b}
}

func (e *ApplicationEvents) SendApplicationUpdate(userID string, payload interface{}) {
	guard("send_application_update", func() {
		e.broadcaster.SendToUser(userID, newEnvelope(MessageTypeApplicationUpdate, payload))
	})
}

// ForumEvents broadcasts forum activity to every connected client. Forum
// content is community-wide, so these four deliberately skip per-user
// filtering.
type ForumEvents struct {
	broadcaster Broadcaster
}

func NewForumEvents(b Broadcaster) *ForumEvents {
	return &ForumEvents{broadcaster: b}
}

func (e *ForumEvents) BroadcastPostCreated(post *models.ForumPost) {
	guard("broadcast_post_created", func() {
		e.broadcaster.BroadcastToAll(newEnvelope(MessageTypeForumPostCreated, post))
	})
}

func (e *ForumEvents) BroadcastPostUpdated(post *models.ForumPost) {
	guard("broadcast_post_updated", func() {
		e.broadcaster.BroadcastToAll(newEnvelope(MessageTypeForumPostUpdated, post))
	})
}

// BroadcastPostLikeUpdate carries the post's recounted like total. The
// count is read inside the same transaction that flipped the like, so
// the broadcast is consistent with what a fresh fetch would return.
func (e *ForumEvents) BroadcastPostLikeUpdate(postID int64, userID string, liked bool, likesCount int) {
	guard("broadcast_post_like_update", func() {
		e.broadcaster.BroadcastToAll(newEnvelope(MessageTypeForumPostLikeUpdate, likeUpdateData{
			PostID:     postID,
			UserID:     userID,
			Liked:      liked,
			LikesCount: likesCount,
		}))
	})
}

func (e *ForumEvents) BroadcastCommentCreated(comment *models.ForumComment, commentsCount int) {
	guard("broadcast_comment_created", func() {
		e.broadcaster.BroadcastToAll(newEnvelope(MessageTypeForumCommentCreated, commentCreatedData{
			Comment:       comment,
			CommentsCount: commentsCount,
		}))
	})
}

type likeUpdateData struct {
	PostID     int64  `json:"postId"`
	UserID     string `json:"userId"`
	Liked      bool   `json:"liked"`
	LikesCount int    `json:"likesCount"`
}

type commentCreatedData struct {
	Comment       *models.ForumComment `json:"comment"`
	CommentsCount int                  `json:"commentsCount"`
}
