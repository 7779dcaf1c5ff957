// Horizon - Realtime Services for Study-Abroad Counseling
// Copyright 2026 Stellar Education
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stellaredu/horizon

package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate in development: %v", err)
	}
}

func TestValidateSecurity(t *testing.T) {
	longSecret := strings.Repeat("s", 32)

	tests := []struct {
		name        string
		environment string
		secret      string
		timeout     time.Duration
		wantErr     bool
	}{
		{"development without secret", "development", "", time.Hour, false},
		{"development with valid secret", "development", longSecret, time.Hour, false},
		{"production without secret", "production", "", time.Hour, true},
		{"production short secret", "production", "short", time.Hour, true},
		{"production valid secret", "production", longSecret, time.Hour, false},
		{"staging valid secret", "staging", longSecret, time.Hour, false},
		{"zero session timeout", "production", longSecret, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Server.Environment = tt.environment
			cfg.Security.JWTSecret = tt.secret
			cfg.Security.SessionTimeout = tt.timeout

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateStructTags(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"port zero", func(c *Config) { c.Server.Port = 0 }},
		{"empty host", func(c *Config) { c.Server.Host = "" }},
		{"bad environment", func(c *Config) { c.Server.Environment = "prod" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"zero send buffer", func(c *Config) { c.WebSocket.SendBufferSize = 0 }},
		{"tiny max message size", func(c *Config) { c.WebSocket.MaxMessageSize = 10 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should have failed")
			}
		})
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"HTTP_PORT", "server.port"},
		{"http_port", "server.port"},
		{"DATABASE_PATH", "database.path"},
		{"JWT_SECRET", "security.jwt_secret"},
		{"LOG_LEVEL", "logging.level"},
		{"WS_SEND_BUFFER_SIZE", "websocket.send_buffer_size"},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := envTransform(tt.input); got != tt.expected {
				t.Errorf("envTransform(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLoadWithEnvOverride(t *testing.T) {
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv(ConfigPathEnvVar, "/nonexistent/config.yaml")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
}

func TestListenAddr(t *testing.T) {
	cfg := defaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 8090
	if got := cfg.ListenAddr(); got != "127.0.0.1:8090" {
		t.Errorf("ListenAddr() = %q", got)
	}
}
