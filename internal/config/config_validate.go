// Horizon - Realtime Services for Study-Abroad Counseling
// Copyright 2026 Stellar Education
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stellaredu/horizon

package config

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

// minJWTSecretLength is the minimum secret length accepted outside
// development. Shorter secrets are brute-forceable.
const minJWTSecretLength = 32

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// structValidator returns the shared validator instance. validator.Validate
// caches struct metadata, so a singleton avoids repeated reflection.
func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the configuration for structural and semantic errors.
// Tag-level rules run first via go-playground/validator, then the checks
// that depend on more than one field.
func (c *Config) Validate() error {
	if err := structValidator().Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			ve := verrs[0]
			return fmt.Errorf("invalid %s: failed %q constraint", ve.Namespace(), ve.Tag())
		}
		return err
	}

	return c.validateSecurity()
}

// validateSecurity enforces token-verification requirements. Development
// environments may run without a secret (auth then rejects every token),
// production may not.
func (c *Config) validateSecurity() error {
	if c.Server.Environment == "development" && c.Security.JWTSecret == "" {
		return nil
	}

	if c.Security.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in %s environment", c.Server.Environment)
	}
	if len(c.Security.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters, got %d",
			minJWTSecretLength, len(c.Security.JWTSecret))
	}
	if c.Security.SessionTimeout <= 0 {
		return fmt.Errorf("session timeout must be positive, got %s", c.Security.SessionTimeout)
	}
	return nil
}
