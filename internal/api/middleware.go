// Horizon - Realtime Services for Study-Abroad Counseling
// Copyright 2026 Stellar Education
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stellaredu/horizon

package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/stellaredu/horizon/internal/logging"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"
	roleKey   contextKey = "role"
)

// Authenticate requires a valid bearer token and stores the verified
// identity in the request context. REST traffic carries the token per
// request; only the socket path authenticates in-band.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			return
		}
		claims, err := h.verifier.Verify(token)
		if err != nil {
			logging.Warn().Err(err).Str("path", r.URL.Path).Msg("request authentication failed")
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		ctx = context.WithValue(ctx, roleKey, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole gates an endpoint on the verified role claim. Must be
// mounted inside Authenticate.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requestRole(r.Context()) != role {
				respondError(w, http.StatusForbidden, "FORBIDDEN", "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// requestUserID returns the authenticated user id from the context, or
// "" on an unauthenticated path.
func requestUserID(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

func requestRole(ctx context.Context) string {
	if v, ok := ctx.Value(roleKey).(string); ok {
		return v
	}
	return ""
}
