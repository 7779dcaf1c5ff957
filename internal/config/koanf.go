// Horizon - Realtime Services for Study-Abroad Counseling
// Copyright 2026 Stellar Education
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stellaredu/horizon

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/horizon/config.yaml",
	"/etc/horizon/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load loads configuration using Koanf v2 with layered sources:
// defaults, then an optional YAML config file, then environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Environment variables have the highest priority. Names map onto
	// koanf paths via envTransform (HTTP_PORT -> server.port).
	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file, env override first.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransform maps environment variable names onto koanf config paths.
// Variables without a mapping are ignored so unrelated environment noise
// cannot leak into the configuration.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - DATABASE_PATH -> database.path
//   - JWT_SECRET -> security.jwt_secret
func envTransform(key string) string {
	mappings := map[string]string{
		"http_host":           "server.host",
		"http_port":           "server.port",
		"http_timeout":        "server.timeout",
		"environment":         "server.environment",
		"http_rate_limit":     "server.rate_limit",
		"allowed_origins":     "server.allowed_origins",
		"database_path":       "database.path",
		"jwt_secret":          "security.jwt_secret",
		"session_timeout":     "security.session_timeout",
		"ws_send_buffer_size": "websocket.send_buffer_size",
		"ws_write_timeout":    "websocket.write_timeout",
		"ws_pong_timeout":     "websocket.pong_timeout",
		"ws_max_message_size": "websocket.max_message_size",
		"log_level":           "logging.level",
		"log_format":          "logging.format",
		"log_caller":          "logging.caller",
	}
	return mappings[strings.ToLower(key)]
}
