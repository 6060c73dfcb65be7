// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

// Package config centralizes Selene's runtime settings. Everything is an
// environment variable with a sensible default; a missing variable warns
// once and falls back rather than failing startup.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Cache sizing and lifetimes.
const (
	// DefaultMaxCacheSize bounds the query and retrieval cache tiers.
	DefaultMaxCacheSize = 100

	// UserContextCacheSize bounds the assembled-context tier. There is
	// one local user, so this stays tiny.
	UserContextCacheSize = 10

	// QueryCacheTTL is how long a contextualized query rewrite stays
	// valid.
	QueryCacheTTL = 300 * time.Second

	// RAGCacheTTL is how long a knowledge-base retrieval stays valid.
	RAGCacheTTL = 600 * time.Second

	// UserContextCacheTTL is how long an assembled user context stays
	// valid. Short, because fresh check-ins should show up quickly.
	UserContextCacheTTL = 180 * time.Second
)

// Retrieval tuning.
const (
	// RAGTopK is how many knowledge chunks a query retrieves.
	RAGTopK = 2

	// ChatHistoryTopK is how many past conversation turns semantic
	// recall contributes.
	ChatHistoryTopK = 1

	// ChatHistoryDistanceThreshold rejects recalled turns that are not
	// actually similar.
	ChatHistoryDistanceThreshold = 0.5
)

// Settings is the resolved runtime configuration.
type Settings struct {
	ListenAddr     string
	DataDir        string
	PulseFile      string
	ProfileFile    string
	SessionDBDir   string
	StagesFile     string
	WeaviateURL    string
	LLMBackend     string // "ollama" or "openai"
	RequestTimeout time.Duration
}

// Load resolves settings from the environment.
func Load() Settings {
	dataDir := envString("SELENE_DATA_DIR", defaultDataDir())
	return Settings{
		ListenAddr:     envString("SELENE_LISTEN_ADDR", ":8800"),
		DataDir:        dataDir,
		PulseFile:      filepath.Join(dataDir, "pulse_history.json"),
		ProfileFile:    filepath.Join(dataDir, "profile.json"),
		SessionDBDir:   filepath.Join(dataDir, "sessions"),
		StagesFile:     envString("SELENE_STAGES_FILE", filepath.Join(dataDir, "stages.yaml")),
		WeaviateURL:    envString("WEAVIATE_URL", "http://localhost:8080"),
		LLMBackend:     envString("SELENE_LLM_BACKEND", "ollama"),
		RequestTimeout: envDuration("SELENE_REQUEST_TIMEOUT_SECONDS", 60*time.Second),
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".selene"
	}
	return filepath.Join(home, ".selene")
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Warn("Environment variable not set, using default", "var", key, "default", fallback)
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds <= 0 {
		slog.Warn("Invalid duration in environment, using default",
			"var", key, "value", v, "default", fallback)
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
