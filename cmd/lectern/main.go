// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command lectern runs the course-materials question answering service.
//
// Lectern ingests course transcript documents into an embedded vector
// store and answers questions about them with a tool-calling model:
//   - Semantic search over course content chunks (BadgerDB + Ollama embeddings)
//   - Course outline retrieval with lesson lists and links
//   - Session-scoped conversation history
//
// Usage:
//
//	lectern serve
//	lectern serve --config config.yaml
//	lectern ingest ./docs
//	lectern ask "What is covered in lesson 5 of the MCP course?"
//	lectern wipe --force
//
// Example requests against a running server:
//
//	# Health check
//	curl http://localhost:8000/health
//
//	# Ask a question
//	curl -X POST http://localhost:8000/api/query \
//	  -H "Content-Type: application/json" \
//	  -d '{"query": "What is prompt caching?"}'
//
//	# Course statistics
//	curl http://localhost:8000/api/courses | jq
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lectern-ai/lectern/services/llm"
	"github.com/lectern-ai/lectern/services/rag"
	"github.com/lectern-ai/lectern/services/rag/config"
	"github.com/lectern-ai/lectern/services/rag/ingest"
	"github.com/lectern-ai/lectern/services/rag/store"
)

// configPath holds the --config flag value, shared by all commands.
var configPath string

var rootCmd = &cobra.Command{
	Use:   "lectern",
	Short: "Course materials question answering service",
	Long: `Lectern ingests course transcripts into an embedded vector store and
answers questions about them using a tool-calling language model.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (optional)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(wipeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads and validates the effective configuration from the
// optional --config file plus environment overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// buildSystem assembles the full pipeline from config: badger store,
// embedder, Anthropic client, generator, sessions, processor.
//
// The returned close function releases the store and must be called
// before exit.
func buildSystem(cfg *config.Config) (*rag.System, func(), error) {
	client, err := llm.NewAnthropicClient(cfg.Anthropic.APIKey, cfg.Anthropic.Model)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Anthropic.BaseURL != "" {
		client = llm.NewAnthropicClientWithConfig(cfg.Anthropic.APIKey, cfg.Anthropic.Model, cfg.Anthropic.BaseURL)
	}

	dbCfg := store.DefaultConfig(cfg.Store.Path)
	db, err := store.OpenDB(dbCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store at %s: %w", cfg.Store.Path, err)
	}

	embedder := store.NewOllamaEmbedder(cfg.Embedding.URL, cfg.Embedding.Model, slog.Default())
	vs := store.NewVectorStore(db, embedder, cfg.Store.MaxResults, slog.Default())

	sys, err := rag.NewSystem(
		vs,
		rag.NewGenerator(client, slog.Default()),
		rag.NewSessionManager(cfg.Session.MaxHistory),
		ingest.NewDocumentProcessor(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap, slog.Default()),
		slog.Default(),
	)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	closeFn := func() {
		if err := db.Close(); err != nil {
			slog.Warn("Failed to close store", slog.String("error", err.Error()))
		}
	}
	return sys, closeFn, nil
}
