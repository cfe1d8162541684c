// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// embedBatchConcurrency is the number of parallel Ollama calls during batch
// embedding. 10 concurrent requests saturates Ollama without overwhelming it.
const embedBatchConcurrency = 10

// DefaultEmbeddingURL is the Ollama /api/embed endpoint used when the
// configuration does not override it.
const DefaultEmbeddingURL = "http://localhost:11434/api/embed"

// DefaultEmbeddingModel is the embedding model used when the configuration
// does not override it.
const DefaultEmbeddingModel = "nomic-embed-text"

// ollamaEmbedReq is the Ollama /api/embed request body.
type ollamaEmbedReq struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// ollamaEmbedResp is the Ollama /api/embed response body.
type ollamaEmbedResp struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embedder converts text into embedding vectors.
//
// # Description
//
// Collections embed documents at write time and queries at read time.
// Implementations must return vectors of a consistent dimensionality;
// vectors are unit-normalized by the collection before storage so cosine
// similarity reduces to a dot product.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Embedder interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// OllamaEmbedder implements Embedder against Ollama's /api/embed endpoint.
//
// # Thread Safety
//
// Safe for concurrent use.
type OllamaEmbedder struct {
	url    string
	model  string
	client *http.Client
	logger *slog.Logger
}

// NewOllamaEmbedder creates an embedder for the given endpoint and model.
// Empty url or model fall back to the package defaults.
func NewOllamaEmbedder(url, model string, logger *slog.Logger) *OllamaEmbedder {
	if url == "" {
		url = DefaultEmbeddingURL
	}
	if model == "" {
		model = DefaultEmbeddingModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OllamaEmbedder{
		url:   url,
		model: model,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// Embed calls the Ollama /api/embed endpoint and returns the embedding vector.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody, err := json.Marshal(ollamaEmbedReq{
		Model: e.model,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("store: marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("store: create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("store: embed HTTP call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("store: read embed response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("store: embed service returned %d: %s", resp.StatusCode, string(body))
	}

	var ollamaResp ollamaEmbedResp
	if err := json.Unmarshal(body, &ollamaResp); err != nil {
		return nil, fmt.Errorf("store: parse embed response: %w", err)
	}
	if len(ollamaResp.Embeddings) == 0 || len(ollamaResp.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("store: embed service returned empty vector")
	}

	return ollamaResp.Embeddings[0], nil
}

// EmbedBatch embeds every text in parallel, up to embedBatchConcurrency
// concurrent Ollama calls. Unlike warm-style caches, a single failure here
// is fatal: a document chunk without a vector would silently vanish from
// search results, so the whole batch errors instead.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)

	// Semaphore to limit concurrency.
	sem := make(chan struct{}, embedBatchConcurrency)

	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			vec, err := e.Embed(gctx, text)
			if err != nil {
				return fmt.Errorf("store: embed batch item %d: %w", i, err)
			}
			vectors[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// l2Norm computes the L2 (Euclidean) norm of a float32 vector.
func l2Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// dotProduct computes the dot product of two float32 vectors.
// Mismatched lengths use the shorter.
func dotProduct(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// unitNormalize returns a copy of v scaled to unit length. A zero vector
// is returned unchanged.
func unitNormalize(v []float32) []float32 {
	norm := l2Norm(v)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / float32(norm)
	}
	return out
}
