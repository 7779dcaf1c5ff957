// Horizon - Realtime Services for Study-Abroad Counseling
// Copyright 2026 Stellar Education
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stellaredu/horizon

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/stellaredu/horizon/internal/auth"
	"github.com/stellaredu/horizon/internal/config"
	"github.com/stellaredu/horizon/internal/logging"
	"github.com/stellaredu/horizon/internal/metrics"
)

// Hub maintains the registry of live socket sessions and routes messages
// to them. It owns the only shared mutable state in the realtime layer:
// the connection maps, guarded by mu. Connection send channels are only
// written while mu is held (read or write), and only closed while the
// write lock is held, so a send can never race a close.
//
// Delivery is best-effort and fire-and-forget: a full send queue drops
// the message for that one connection, and nothing is retried or
// persisted. Authoritative state is always re-derivable by a REST fetch.
type Hub struct {
	verifier auth.Verifier
	cfg      config.WebSocketConfig

	mu      sync.RWMutex
	clients map[string]*Client
	// byUser indexes authenticated connections by bound user id so
	// sendToUser fan-out is a map hit, not a registry scan. Multiple
	// connections may share one user (multi-tab, multi-device).
	byUser map[string]map[string]*Client

	Register   chan *Client
	Unregister chan *Client
}

// NewHub creates a hub. The verifier is consulted once per authenticate
// message; the hub itself never trusts client-declared identity.
func NewHub(verifier auth.Verifier, cfg config.WebSocketConfig) *Hub {
	return &Hub{
		verifier:   verifier,
		cfg:        cfg,
		clients:    make(map[string]*Client),
		byUser:     make(map[string]map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Serve implements suture.Service, running the hub until the supervisor
// cancels the context.
func (h *Hub) Serve(ctx context.Context) error {
	return h.RunWithContext(ctx)
}

// RunWithContext processes connection lifecycle events until ctx is
// canceled, then closes every remaining client and returns ctx.Err().
//
// Priority-based selection keeps behavior predictable when multiple
// channels are ready: shutdown first, then lifecycle events, then a
// blocking wait.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		}
	}
}

// addClient registers a session and acknowledges it with a connected
// envelope carrying the assigned connection id.
func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	metrics.WebSocketConnections.Set(float64(len(h.clients)))
	ack := newEnvelope(MessageTypeConnected, connectedData{ConnectionID: c.id})
	c.trySend(ack)
	total := len(h.clients)
	h.mu.Unlock()

	logging.Info().Str("connection_id", c.id).Int("total_clients", total).Msg("websocket client connected")
}

// removeClient unregisters a session. Idempotent: a second call for the
// same client (double-close, error after close) finds nothing to do.
func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	if ok {
		delete(h.clients, c.id)
		if userID := c.UserID(); userID != "" {
			h.unindexUserLocked(userID, c.id)
		}
		close(c.send)
		metrics.WebSocketConnections.Set(float64(len(h.clients)))
	}
	total := len(h.clients)
	h.mu.Unlock()

	if ok {
		logging.Info().Str("connection_id", c.id).Int("total_clients", total).Msg("websocket client disconnected")
	}
}

// bindUser binds a verified identity to a registered session. Called only
// from the authentication path after the token verifies; a session whose
// registration already ended is left unbound.
func (h *Hub) bindUser(c *Client, userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.id]; !ok {
		return false
	}

	c.setUserID(userID)
	conns, ok := h.byUser[userID]
	if !ok {
		conns = make(map[string]*Client)
		h.byUser[userID] = conns
	}
	conns[c.id] = c
	metrics.WebSocketAuthenticated.Set(float64(h.authenticatedCountLocked()))
	return true
}

// unindexUserLocked drops one connection from the per-user index. Caller
// must hold the write lock.
func (h *Hub) unindexUserLocked(userID, connectionID string) {
	conns, ok := h.byUser[userID]
	if !ok {
		return
	}
	delete(conns, connectionID)
	if len(conns) == 0 {
		delete(h.byUser, userID)
	}
	metrics.WebSocketAuthenticated.Set(float64(h.authenticatedCountLocked()))
}

func (h *Hub) authenticatedCountLocked() int {
	n := 0
	for _, conns := range h.byUser {
		n += len(conns)
	}
	return n
}

// SendToConnection delivers a message to one session if it is currently
// open. A closed or unknown id is a silent no-op, not an error.
func (h *Hub) SendToConnection(connectionID string, message Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if c, ok := h.clients[connectionID]; ok {
		c.trySend(message)
	}
}

// SendToUser delivers a message to every open session bound to the user,
// covering the multi-tab case. Zero matches is not an error. Returns the
// number of sessions the message was queued to.
func (h *Hub) SendToUser(userID string, message Envelope) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, c := range h.sortedLocked(h.byUser[userID]) {
		if c.trySend(message) {
			delivered++
		}
	}
	return delivered
}

// BroadcastToAll delivers a message to every open session regardless of
// authentication state.
func (h *Hub) BroadcastToAll(message Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.sortedLocked(h.clients) {
		c.trySend(message)
	}
}

// sortedLocked returns the clients ordered by registration sequence so
// fan-out order is deterministic. Caller must hold mu.
func (h *Hub) sortedLocked(m map[string]*Client) []*Client {
	clients := make([]*Client, 0, len(m))
	for _, c := range m {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].seq < clients[j].seq
	})
	return clients
}

// AuthenticatedUserIDs returns the distinct users with at least one bound
// session, sorted for deterministic fan-out order.
func (h *Hub) AuthenticatedUserIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.byUser))
	for userID := range h.byUser {
		ids = append(ids, userID)
	}
	sort.Strings(ids)
	return ids
}

// ClientCount returns the number of open sessions.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// UserConnectionCount returns the number of open sessions bound to one user.
func (h *Hub) UserConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID])
}

// shutdown closes every remaining client during graceful shutdown.
func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	clients := h.sortedLocked(h.clients)
	for _, c := range clients {
		delete(h.clients, c.id)
		if userID := c.UserID(); userID != "" {
			h.unindexUserLocked(userID, c.id)
		}
		close(c.send)
	}
	metrics.WebSocketConnections.Set(0)
	h.mu.Unlock()

	reason := "context_canceled"
	if ctx.Err() == context.DeadlineExceeded {
		reason = "context_deadline"
	}
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", reason).
		Int("clients_closed", len(clients)).
		Msg("websocket hub stopped")
}

// connectedData is the payload of the connected acknowledgement.
type connectedData struct {
	ConnectionID string `json:"connectionId"`
}
