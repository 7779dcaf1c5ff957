// Horizon - Realtime Services for Study-Abroad Counseling
// Copyright 2026 Stellar Education
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stellaredu/horizon

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter assembles the full route table.
//
// Rate limits are tiered: a global per-IP ceiling, with a stricter
// bucket on invitation claiming since tokens are guessable input.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(httprate.LimitByIP(h.cfg.Server.RateLimit, time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// The socket authenticates in-band after the upgrade.
	r.Get("/ws", h.WebSocket)

	// Invitation claims happen pre-login, so they sit outside the
	// authenticated subtree.
	r.With(httprate.LimitByIP(10, time.Minute)).
		Post("/api/v1/invitations/claim", h.ClaimInvitation)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.Authenticate)

		r.Post("/posts", h.CreatePost)
		r.Get("/posts/{id}", h.GetPost)
		r.Post("/posts/{id}/comments", h.CreateComment)
		r.Post("/posts/{id}/like", h.ToggleLike)
		r.Post("/posts/{id}/save", h.ToggleSave)
		r.Post("/posts/{id}/vote", h.CastVote)
		r.Delete("/comments/{id}", h.DeleteComment)

		r.With(RequireRole("admin")).Post("/invitations", h.CreateInvitation)
	})

	return r
}
