// Horizon - Realtime Services for Study-Abroad Counseling
// Copyright 2026 Stellar Education
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stellaredu/horizon

package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stellaredu/horizon/internal/config"
)

func testSecurityConfig() *config.SecurityConfig {
	return &config.SecurityConfig{
		JWTSecret:      strings.Repeat("k", 32),
		SessionTimeout: time.Hour,
	}
}

func TestNewJWTManagerRequiresSecret(t *testing.T) {
	_, err := NewJWTManager(&config.SecurityConfig{SessionTimeout: time.Hour})
	if err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestGenerateAndVerify(t *testing.T) {
	m, err := NewJWTManager(testSecurityConfig())
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}

	token, err := m.GenerateToken("user-42", "counselor")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != "user-42" {
		t.Errorf("UserID = %q, want user-42", claims.UserID)
	}
	if claims.Role != "counselor" {
		t.Errorf("Role = %q, want counselor", claims.Role)
	}
}

func TestVerifyRejections(t *testing.T) {
	m, err := NewJWTManager(testSecurityConfig())
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}

	otherManager, err := NewJWTManager(&config.SecurityConfig{
		JWTSecret:      strings.Repeat("x", 32),
		SessionTimeout: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	wrongSecretToken, err := otherManager.GenerateToken("user-1", "")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	expiredManager := &JWTManager{secret: []byte(testSecurityConfig().JWTSecret), timeout: -time.Hour}
	expiredToken, err := expiredManager.GenerateToken("user-1", "")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	// Signed correctly but with no user id claim.
	noUser := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	noUserToken, err := noUser.SignedString([]byte(testSecurityConfig().JWTSecret))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"empty", ""},
		{"wrong secret", wrongSecretToken},
		{"expired", expiredToken},
		{"missing user id", noUserToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Verify(tt.token); err == nil {
				t.Errorf("Verify(%s) should have failed", tt.name)
			}
		})
	}
}

func TestVerifyRejectsUnexpectedAlgorithm(t *testing.T) {
	m, err := NewJWTManager(testSecurityConfig())
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}

	// alg=none token with a valid-looking body.
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "user-1"})
	tokenString, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	if _, err := m.Verify(tokenString); err == nil {
		t.Error("Verify should reject alg=none tokens")
	}
}
