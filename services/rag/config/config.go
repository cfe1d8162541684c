// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads service configuration from defaults, an optional
// YAML file, and environment overrides, in that order of precedence
// (environment wins).
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// AnthropicConfig configures the answer-generation model.
type AnthropicConfig struct {
	// APIKey authenticates against the messages API. Required.
	APIKey string `yaml:"api_key" validate:"required"`

	// Model is the generation model name.
	Model string `yaml:"model" validate:"required"`

	// BaseURL overrides the API endpoint. Empty uses the public endpoint.
	BaseURL string `yaml:"base_url"`
}

// EmbeddingConfig configures the Ollama embedding endpoint.
type EmbeddingConfig struct {
	URL   string `yaml:"url" validate:"required,url"`
	Model string `yaml:"model" validate:"required"`
}

// StoreConfig configures the embedded vector store.
type StoreConfig struct {
	// Path is the BadgerDB directory.
	Path string `yaml:"path" validate:"required"`

	// MaxResults caps similarity search results per query.
	MaxResults int `yaml:"max_results" validate:"gte=1"`
}

// IngestConfig configures transcript ingestion.
type IngestConfig struct {
	// DocsDir is scanned for transcripts at startup and watched while
	// the server runs (when Watch is set).
	DocsDir      string `yaml:"docs_dir" validate:"required"`
	ChunkSize    int    `yaml:"chunk_size" validate:"gte=1"`
	ChunkOverlap int    `yaml:"chunk_overlap" validate:"gte=0"`
	Watch        bool   `yaml:"watch"`
}

// SessionConfig configures conversation state.
type SessionConfig struct {
	// MaxHistory is the number of question-answer exchanges kept per session.
	MaxHistory int `yaml:"max_history" validate:"gte=1"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// Config is the full service configuration.
type Config struct {
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Store     StoreConfig     `yaml:"store"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Session   SessionConfig   `yaml:"session"`
	Server    ServerConfig    `yaml:"server"`
}

// Default returns the configuration used when the YAML file and
// environment specify nothing.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model: "claude-sonnet-4-20250514",
		},
		Embedding: EmbeddingConfig{
			URL:   "http://localhost:11434/api/embed",
			Model: "nomic-embed-text",
		},
		Store: StoreConfig{
			Path:       "./storage/lectern",
			MaxResults: 5,
		},
		Ingest: IngestConfig{
			DocsDir:      "./docs",
			ChunkSize:    800,
			ChunkOverlap: 100,
			Watch:        true,
		},
		Session: SessionConfig{
			MaxHistory: 2,
		},
		Server: ServerConfig{
			Addr: ":8000",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty; a missing file at an explicit path is an error), and
// environment overrides, then validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto the configuration.
func applyEnv(cfg *Config) {
	setIfPresent := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setIfPresent(&cfg.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	setIfPresent(&cfg.Anthropic.Model, "ANTHROPIC_MODEL")
	setIfPresent(&cfg.Anthropic.BaseURL, "ANTHROPIC_BASE_URL")
	setIfPresent(&cfg.Embedding.URL, "EMBEDDING_SERVICE_URL")
	setIfPresent(&cfg.Embedding.Model, "EMBEDDING_MODEL")
	setIfPresent(&cfg.Store.Path, "LECTERN_STORE_PATH")
	setIfPresent(&cfg.Ingest.DocsDir, "LECTERN_DOCS_DIR")
	setIfPresent(&cfg.Server.Addr, "LECTERN_ADDR")
}

// Validate checks field constraints and cross-field invariants.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: validate: %w", err)
	}
	if c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("config: chunk_overlap (%d) must be smaller than chunk_size (%d)",
			c.Ingest.ChunkOverlap, c.Ingest.ChunkSize)
	}
	return nil
}
