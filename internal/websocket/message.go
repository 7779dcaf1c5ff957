// Horizon - Realtime Services for Study-Abroad Counseling
// Copyright 2026 Stellar Education
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stellaredu/horizon

package websocket

import "time"

// Outbound message types. This is a closed vocabulary: every message the
// server emits uses one of these discriminants, and adding a new kind
// means adding a constant here plus a typed payload struct next to its
// producer.
const (
	MessageTypeConnected           = "connected"
	MessageTypeAuthenticated       = "authenticated"
	MessageTypeAuthError           = "auth_error"
	MessageTypeError               = "error"
	MessageTypePong                = "pong"
	MessageTypeSubscribed          = "subscribed"
	MessageTypeChatMessage         = "chat_message"
	MessageTypeMessageRead         = "message_read"
	MessageTypeNotification        = "notification"
	MessageTypeApplicationUpdate   = "application_update"
	MessageTypeForumPostCreated    = "forum_post_created"
	MessageTypeForumPostUpdated    = "forum_post_updated"
	MessageTypeForumPostLikeUpdate = "forum_post_like_update"
	MessageTypeForumCommentCreated = "forum_comment_created"
	MessageTypePollVoteUpdate      = "poll_vote_update"
)

// Inbound message types accepted from clients. Unrecognized types are
// logged and ignored without a reply.
const (
	MessageTypeAuthenticate = "authenticate"
	MessageTypePing         = "ping"
	MessageTypeSubscribe    = "subscribe"
)

// Envelope is the wrapper around every outbound message. UserID and
// Message are top-level only for the handful of control replies that
// carry them (authenticated, auth_error, error).
type Envelope struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
	UserID    string      `json:"userId,omitempty"`
	Message   string      `json:"message,omitempty"`
}

// newEnvelope builds an outbound envelope stamped with the current time.
func newEnvelope(messageType string, data interface{}) Envelope {
	return Envelope{
		Type:      messageType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// inboundMessage is the shape of client-to-server messages. Fields beyond
// Type are populated per message kind.
type inboundMessage struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
	Topic string `json:"topic,omitempty"`
}
