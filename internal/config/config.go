// Horizon - Realtime Services for Study-Abroad Counseling
// Copyright 2026 Stellar Education
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stellaredu/horizon

// Package config provides layered configuration for the Horizon server.
//
// Configuration is loaded via Koanf v2 with clear precedence
// (highest priority wins):
//  1. Environment variables (JWT_SECRET, HTTP_PORT, DATABASE_PATH, ...)
//  2. Config file (config.yaml)
//  3. Built-in defaults
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the Horizon server.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Security  SecurityConfig  `koanf:"security"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host" validate:"required"`
	Port        int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment" validate:"oneof=development staging production"`
	// RateLimit is the per-IP request ceiling per minute for the REST surface.
	RateLimit int `koanf:"rate_limit" validate:"min=1"`
	// AllowedOrigins lists origins permitted for CORS and the WebSocket
	// upgrade check. "*" allows any origin (development only).
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// SecurityConfig holds token verification settings.
type SecurityConfig struct {
	// JWTSecret signs and verifies session tokens. Must be at least
	// 32 characters outside development.
	JWTSecret      string        `koanf:"jwt_secret"`
	SessionTimeout time.Duration `koanf:"session_timeout"`
}

// WebSocketConfig holds socket transport tuning.
type WebSocketConfig struct {
	// SendBufferSize is the per-connection outbound queue length. A
	// connection whose queue is full has further messages dropped.
	SendBufferSize int           `koanf:"send_buffer_size" validate:"min=1"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
	PongTimeout    time.Duration `koanf:"pong_timeout"`
	MaxMessageSize int64         `koanf:"max_message_size" validate:"min=512"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// IsProduction reports whether the server runs with production checks enabled.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// ListenAddr returns the host:port pair the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8090,
			Timeout:        30 * time.Second,
			Environment:    "development",
			RateLimit:      120,
			AllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Path: "/data/horizon.db",
		},
		Security: SecurityConfig{
			JWTSecret:      "",
			SessionTimeout: 24 * time.Hour,
		},
		WebSocket: WebSocketConfig{
			SendBufferSize: 256,
			WriteTimeout:   10 * time.Second,
			PongTimeout:    60 * time.Second,
			MaxMessageSize: 64 * 1024, // 64 KB
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
