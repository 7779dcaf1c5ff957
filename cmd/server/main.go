// Horizon - Realtime Services for Study-Abroad Counseling
// Copyright 2026 Stellar Education
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stellaredu/horizon

// Package main is the entry point for the Horizon realtime server.
//
// Horizon backs the study-abroad counseling platform with real-time
// event distribution: chat, notifications, application-status updates,
// forum activity, and privacy-aware poll results are pushed to
// connected clients over WebSocket, while the REST surface performs the
// transactional writes (comments, likes, votes, invitation claims) that
// trigger those broadcasts.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered settings via Koanf v2 (defaults, config.yaml, env)
//  2. Database: SQLite with WAL journaling and foreign keys
//  3. WebSocket hub: connection registry, auth gate, message router
//  4. Event handlers and poll fan-out wired to the hub
//  5. HTTP server: chi router with the REST triggers and /ws upgrade
//  6. Supervision: suture tree running the hub and the HTTP server
//
// # Configuration
//
// Key environment variables:
//   - JWT_SECRET: 32+ character secret for token verification
//   - HTTP_HOST / HTTP_PORT: bind address (default 0.0.0.0:8090)
//   - DATABASE_PATH: SQLite file location (default /data/horizon.db)
//   - LOG_LEVEL / LOG_FORMAT: logging output control
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: the HTTP
// server drains in-flight requests, and the hub closes every socket
// with a close frame.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/stellaredu/horizon/internal/api"
	"github.com/stellaredu/horizon/internal/auth"
	"github.com/stellaredu/horizon/internal/config"
	"github.com/stellaredu/horizon/internal/logging"
	"github.com/stellaredu/horizon/internal/store"
	"github.com/stellaredu/horizon/internal/supervisor"
	ws "github.com/stellaredu/horizon/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("listen_addr", cfg.ListenAddr()).
		Msg("starting horizon server")

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("server exited with error")
	}
}

func run(cfg *config.Config) error {
	st, err := store.Open(&cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("failed to close store")
		}
	}()

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		return err
	}

	// Explicit object graph, no ambient singletons: the hub is both the
	// broadcaster and the directory of authenticated users.
	hub := ws.NewHub(jwtManager, cfg.WebSocket)
	polls := ws.NewPollFanout(st, hub, hub)
	handler := api.NewHandler(st, cfg, jwtManager, hub, polls)

	server := newHTTPServer(cfg, api.NewRouter(handler))

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddRealtimeService(hub)
	tree.AddAPIService(supervisor.NewHTTPService(server, 10*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("shutdown signal received")
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("service did not stop within timeout")
		}
	}

	logging.Info().Msg("horizon server stopped")
	return nil
}

// newHTTPServer applies the configured timeouts. Write deadlines for
// upgraded WebSocket connections are managed per-message by the hub,
// not by the server, since hijacked connections escape these settings.
func newHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           h,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
