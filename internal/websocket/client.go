// Horizon - Realtime Services for Study-Abroad Counseling
// Copyright 2026 Stellar Education
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stellaredu/horizon

package websocket

import (
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/stellaredu/horizon/internal/logging"
	"github.com/stellaredu/horizon/internal/metrics"
)

// clientSeqCounter orders clients by registration for deterministic
// fan-out iteration.
var clientSeqCounter atomic.Uint64

// Client is the middleman between one websocket connection and the hub.
//
// A client is Unauthenticated until a verified authenticate message binds
// a user id; that binding is terminal for the connection's lifetime. The
// send channel is the only path to the wire: writePump is the sole writer
// on the underlying connection.
type Client struct {
	id   string
	seq  uint64
	hub  *Hub
	conn *websocket.Conn
	send chan Envelope

	// userID is empty until authentication succeeds. Written once via
	// setUserID under the hub's write lock; read lock-free elsewhere.
	userID atomic.Value

	// closeCode, when set, is the close frame code writePump emits after
	// draining the send queue. Used to terminate a session with a policy
	// violation after a failed token verification.
	closeCode atomic.Int32
}

// NewClient creates a client for an upgraded connection. The connection
// id is opaque and process-unique.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   uuid.NewString(),
		seq:  clientSeqCounter.Add(1),
		hub:  hub,
		conn: conn,
		send: make(chan Envelope, hub.cfg.SendBufferSize),
	}
}

// ID returns the opaque connection id.
func (c *Client) ID() string {
	return c.id
}

// UserID returns the bound user id, or "" while unauthenticated.
func (c *Client) UserID() string {
	if v := c.userID.Load(); v != nil {
		return v.(string)
	}
	return ""
}

func (c *Client) setUserID(userID string) {
	c.userID.Store(userID)
}

// trySend queues a message without blocking. A full queue drops the
// message: delivery is best-effort and a slow consumer must not stall the
// fan-out. Caller must hold the hub lock (read or write) so the channel
// cannot be closed concurrently.
func (c *Client) trySend(message Envelope) bool {
	select {
	case c.send <- message:
		metrics.MessagesSent.WithLabelValues(message.Type).Inc()
		return true
	default:
		metrics.MessagesDropped.WithLabelValues(message.Type).Inc()
		logging.Warn().
			Str("connection_id", c.id).
			Str("message_type", message.Type).
			Msg("send queue full, dropping message")
		return false
	}
}

// Start begins reading and writing for the client.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// readPump pumps inbound messages from the connection to the dispatcher.
// A read error of any kind ends the session; errors are handled exactly
// like closes (no retry, the client must reconnect).
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.cfg.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.PongTimeout)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.PongTimeout))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Str("connection_id", c.id).Msg("websocket closed unexpectedly")
			}
			break
		}
		c.handleMessage(raw)
	}
}

// handleMessage dispatches one inbound frame. A frame that is not valid
// JSON gets an error reply and the connection survives; an unrecognized
// type is logged without a reply.
func (c *Client) handleMessage(raw []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		logging.Debug().Err(err).Str("connection_id", c.id).Msg("malformed websocket message")
		c.hub.SendToConnection(c.id, Envelope{
			Type:      MessageTypeError,
			Message:   "Invalid message format",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	switch msg.Type {
	case MessageTypeAuthenticate:
		c.handleAuthenticate(msg.Token)
	case MessageTypePing:
		c.hub.SendToConnection(c.id, newEnvelope(MessageTypePong, nil))
	case MessageTypeSubscribe:
		// Acknowledgement only: topics carry no delivery filtering.
		c.hub.SendToConnection(c.id, newEnvelope(MessageTypeSubscribed, subscribedData{Topic: msg.Topic}))
	default:
		logging.Debug().
			Str("connection_id", c.id).
			Str("message_type", msg.Type).
			Msg("unrecognized websocket message type")
	}
}

// handleAuthenticate verifies the supplied token and binds the session.
//
// Failure paths differ deliberately:
//   - missing token: retryable, the connection stays open;
//   - invalid token: a security event — the session is told why, then
//     terminated with a policy-violation close and unregistered.
//
// A second authenticate on an already-bound session is ignored with a
// log; identity is never silently rebound.
func (c *Client) handleAuthenticate(token string) {
	if c.UserID() != "" {
		logging.Warn().
			Str("connection_id", c.id).
			Str("user_id", c.UserID()).
			Msg("ignoring re-authentication on bound connection")
		return
	}

	if token == "" {
		metrics.AuthFailures.WithLabelValues("missing_token").Inc()
		c.hub.SendToConnection(c.id, Envelope{
			Type:      MessageTypeAuthError,
			Message:   "Authentication token required",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	claims, err := c.hub.verifier.Verify(token)
	if err != nil {
		metrics.AuthFailures.WithLabelValues("invalid_token").Inc()
		logging.Warn().Err(err).Str("connection_id", c.id).Msg("socket authentication failed")
		c.hub.SendToConnection(c.id, Envelope{
			Type:      MessageTypeAuthError,
			Message:   "Invalid or expired token",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		// Terminate after the reply drains: unregistering closes the send
		// channel, and writePump emits the close frame once it is empty.
		c.closeCode.Store(websocket.ClosePolicyViolation)
		c.hub.Unregister <- c
		return
	}

	if !c.hub.bindUser(c, claims.UserID) {
		// Session ended while the token was being verified.
		return
	}

	logging.Info().
		Str("connection_id", c.id).
		Str("user_id", claims.UserID).
		Msg("socket session authenticated")
	c.hub.SendToConnection(c.id, Envelope{
		Type:      MessageTypeAuthenticated,
		UserID:    claims.UserID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// writePump pumps messages from the send queue to the connection. It is
// the single writer on the connection; a write or serialization failure
// affects only this session.
func (c *Client) writePump() {
	pingPeriod := c.hub.cfg.PongTimeout * 9 / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel; say goodbye with the
				// recorded close code (normal closure by default).
				code := int(c.closeCode.Load())
				if code == 0 {
					code = websocket.CloseNormalClosure
				}
				frame := websocket.FormatCloseMessage(code, "")
				if err := c.conn.WriteMessage(websocket.CloseMessage, frame); err != nil {
					logging.Debug().Err(err).Msg("failed to write close message")
				}
				return
			}

			data, err := json.Marshal(message)
			if err != nil {
				// Serialization failure drops this one message, not the
				// session and not anyone else's delivery.
				logging.Error().Err(err).
					Str("connection_id", c.id).
					Str("message_type", message.Type).
					Msg("failed to marshal outbound message")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logging.Debug().Err(err).Str("connection_id", c.id).Msg("websocket write failed")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// subscribedData echoes the topic a client asked to subscribe to.
type subscribedData struct {
	Topic string `json:"topic"`
}
