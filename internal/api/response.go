// Horizon - Realtime Services for Study-Abroad Counseling
// Copyright 2026 Stellar Education
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stellaredu/horizon

package api

import (
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/stellaredu/horizon/internal/logging"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// requestValidator returns the shared validator instance. Validator
// caches struct metadata, so one instance serves all request types.
func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// apiError is the uniform error body: a stable machine code plus a
// human-readable message.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON encodes data as JSON. Encoding errors are logged, not
// surfaced, since the status line is already gone.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]apiError{"error": {Code: code, Message: message}})
}

// decodeAndValidate decodes the request body into dst and runs struct
// validation. On failure it writes the error response and returns false.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return false
	}
	if err := requestValidator().Struct(dst); err != nil {
		logging.Debug().Err(err).Str("path", r.URL.Path).Msg("request validation failed")
		respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", "request validation failed")
		return false
	}
	return true
}
