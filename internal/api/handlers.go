// Horizon - Realtime Services for Study-Abroad Counseling
// Copyright 2026 Stellar Education
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stellaredu/horizon

// Package api provides the HTTP surface of the realtime service: the
// WebSocket upgrade endpoint, the forum/poll/invitation operations that
// trigger event broadcasts, and health/metrics endpoints.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stellaredu/horizon/internal/auth"
	"github.com/stellaredu/horizon/internal/config"
	"github.com/stellaredu/horizon/internal/logging"
	"github.com/stellaredu/horizon/internal/store"
	ws "github.com/stellaredu/horizon/internal/websocket"
)

// Handler holds the dependencies of every HTTP endpoint. Constructed
// once at startup and passed to NewRouter; no ambient module state.
type Handler struct {
	store         *store.Store
	cfg           *config.Config
	verifier      auth.Verifier
	hub           *ws.Hub
	chat          *ws.ChatEvents
	notifications *ws.NotificationEvents
	applications  *ws.ApplicationEvents
	forum         *ws.ForumEvents
	polls         *ws.PollFanout
	startTime     time.Time
}

// NewHandler wires the HTTP layer to the store, the hub, and the event
// handlers that fan domain changes out to connected clients.
func NewHandler(st *store.Store, cfg *config.Config, verifier auth.Verifier, hub *ws.Hub, polls *ws.PollFanout) *Handler {
	return &Handler{
		store:         st,
		cfg:           cfg,
		verifier:      verifier,
		hub:           hub,
		chat:          ws.NewChatEvents(hub),
		notifications: ws.NewNotificationEvents(hub),
		applications:  ws.NewApplicationEvents(hub),
		forum:         ws.NewForumEvents(hub),
		polls:         polls,
		startTime:     time.Now(),
	}
}

// Chat returns the chat event handler for callers outside the HTTP
// layer (e.g. a message-store hook).
func (h *Handler) Chat() *ws.ChatEvents {
	return h.chat
}

// Notifications returns the notification event handler.
func (h *Handler) Notifications() *ws.NotificationEvents {
	return h.notifications
}

// Applications returns the application-status event handler.
func (h *Handler) Applications() *ws.ApplicationEvents {
	return h.applications
}

// getUpgrader builds the WebSocket upgrader with origin checking bound
// to the configured allow-list.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates the Origin header against the
// configured allow-list. Non-browser clients omit Origin and are
// allowed; a present Origin must match.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.Server.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", origin).Msg("websocket connection rejected from unauthorized origin")
	return false
}

// WebSocket upgrades the request and hands the connection to the hub.
// Authentication happens in-band after the upgrade, not here.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn)
	h.hub.Register <- client
	client.Start()
}

// Healthz reports liveness plus a database round-trip.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "DATABASE_UNAVAILABLE", "database ping failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
		"connections":    h.hub.ClientCount(),
	})
}
