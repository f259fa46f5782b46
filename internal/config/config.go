// Copyright (c) 2025 The olladesk Authors
// SPDX-License-Identifier: MIT

// Package config provides configuration loading for olladesk.
//
// Two kinds of configuration live here. Config is the process-level
// setup (backend address, timeouts, database location) read once from
// ~/.olladesk/config.toml with environment overrides. Settings is the
// user preference record edited at runtime and persisted by the store.
package config

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// APP CONFIG
// =============================================================================

// Config represents the process-level olladesk configuration.
type Config struct {
	// OllamaURL is the base address of the Ollama server.
	OllamaURL string `toml:"ollama_url"`

	// RequestTimeoutSeconds bounds roster and probe requests. The
	// generation stream itself is never timed out.
	RequestTimeoutSeconds int `toml:"request_timeout_seconds"`

	// ProbeIntervalSeconds is how often the connectivity probe runs.
	ProbeIntervalSeconds int `toml:"probe_interval_seconds"`

	// DBPath is the chat database location. Empty means
	// ~/.olladesk/olladesk.db.
	DBPath string `toml:"db_path"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		OllamaURL:             "http://127.0.0.1:11434",
		RequestTimeoutSeconds: 5,
		ProbeIntervalSeconds:  10,
	}
}

// Load reads the config file if present, fills defaults for zero values,
// and applies environment overrides. A missing file is not an error.
func Load() (Config, error) {
	cfg := Default()

	path, err := DefaultPath()
	if err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !os.IsNotExist(err) {
			return Default(), err
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Default(), err
	}
	return cfg, nil
}

// DefaultPath returns ~/.olladesk/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".olladesk", "config.toml"), nil
}

// DefaultDBPath returns ~/.olladesk/olladesk.db.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".olladesk", "olladesk.db"), nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.OllamaURL == "" {
		c.OllamaURL = def.OllamaURL
	}
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = def.RequestTimeoutSeconds
	}
	if c.ProbeIntervalSeconds <= 0 {
		c.ProbeIntervalSeconds = def.ProbeIntervalSeconds
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OLLADESK_HOST"); v != "" {
		c.OllamaURL = v
	}
	if v := os.Getenv("OLLADESK_DB"); v != "" {
		c.DBPath = v
	}
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	u, err := url.Parse(c.OllamaURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("config: ollama_url must be a valid http(s) URL")
	}
	return nil
}

// RequestTimeout returns the bounded request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ProbeInterval returns the connectivity probe interval as a duration.
func (c *Config) ProbeInterval() time.Duration {
	return time.Duration(c.ProbeIntervalSeconds) * time.Second
}

// =============================================================================
// USER SETTINGS
// =============================================================================

// Settings is the flat user preference record. A single process-wide
// instance is loaded at startup and persisted on every change.
type Settings struct {
	// Appearance
	CompactMode       bool `json:"compactMode"`
	AnimationsEnabled bool `json:"animationsEnabled"`
	ShowTimestamps    bool `json:"showTimestamps"`

	// Chat behavior
	DefaultModel string `json:"defaultModel"`
	AutoTitle    bool   `json:"autoTitle"`
	AutoScroll   bool   `json:"autoScroll"`
	// StreamResponses is display-only: generations always use the
	// streaming protocol path. The flag is persisted for the settings
	// surface and ignored by the engine.
	StreamResponses bool `json:"streamResponses"`

	// Inference
	Temperature  float64 `json:"temperature"`
	TopP         float64 `json:"topP"`
	MaxTokens    int     `json:"maxTokens"`
	SystemPrompt string  `json:"systemPrompt"`
}

// DefaultSettings returns the settings used before the user changes
// anything.
func DefaultSettings() Settings {
	return Settings{
		CompactMode:       false,
		AnimationsEnabled: true,
		ShowTimestamps:    true,
		DefaultModel:      "",
		AutoTitle:         true,
		AutoScroll:        true,
		StreamResponses:   true,
		Temperature:       0.7,
		TopP:              0.9,
		MaxTokens:         2048,
		SystemPrompt:      "",
	}
}
