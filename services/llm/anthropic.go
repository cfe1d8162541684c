// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides the Anthropic messages client used by the
// generation orchestrator, including native tool-use support.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	anthropicAPIVersion = "2023-06-01"

	// DefaultBaseURL is the production messages endpoint.
	DefaultBaseURL = "https://api.anthropic.com/v1/messages"

	// defaultRequestsPerSecond bounds outgoing request rate. The limiter
	// only smooths bursts; there are no retries anywhere in this client —
	// rate-limit responses surface to the caller like any other API error.
	defaultRequestsPerSecond = 5
)

// anthropicRequest is the messages API request payload.
type anthropicRequest struct {
	Model       string        `json:"model"`
	Messages    []Message     `json:"messages"`
	System      []systemBlock `json:"system,omitempty"`
	MaxTokens   int           `json:"max_tokens"`
	Tools       []ToolSpec    `json:"tools,omitempty"`
	ToolChoice  *ToolChoice   `json:"tool_choice,omitempty"`
	Temperature *float32      `json:"temperature,omitempty"`
}

type systemBlock struct {
	Type         string        `json:"type"`
	Text         string        `json:"text"`
	CacheControl *cacheControl `json:"cache_control,omitempty"`
}

type cacheControl struct {
	Type string `json:"type"` // Must be "ephemeral"
}

// anthropicResponse is the messages API response payload.
type anthropicResponse struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Role       string          `json:"role"`
	Content    []ContentBlock  `json:"content"`
	StopReason string          `json:"stop_reason,omitempty"`
	Error      *anthropicError `json:"error,omitempty"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// MessagesAPI is the capability the orchestrator depends on.
//
// Description:
//
//	Abstracts the generative model service: one request in, one ordered
//	list of text-or-tool_use blocks plus a stop reason out. Transport
//	and API failures are returned as errors and are NOT recovered here;
//	retry policy belongs to the caller's caller.
type MessagesAPI interface {
	Messages(ctx context.Context, req *MessagesRequest) (*MessagesResponse, error)
}

// AnthropicClient talks to the Anthropic messages API over REST.
//
// Thread Safety: safe for concurrent use; the rate limiter serializes
// admission, the http.Client is concurrency-safe.
type AnthropicClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
	limiter    *rate.Limiter
}

// NewAnthropicClient creates a client against the production endpoint.
//
// Inputs:
//   - apiKey: The Anthropic API key. Must not be empty.
//   - model: The model name (e.g., "claude-sonnet-4-20250514").
//
// Outputs:
//   - *AnthropicClient: The configured client.
//   - error: Non-nil when apiKey is empty.
func NewAnthropicClient(apiKey, model string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: API key is missing")
	}
	return NewAnthropicClientWithConfig(apiKey, model, DefaultBaseURL), nil
}

// NewAnthropicClientWithConfig creates a client with an explicit base URL.
//
// Description:
//
//	Skips all validation and environment lookups. Useful for testing
//	against httptest servers or proxied deployments.
func NewAnthropicClientWithConfig(apiKey, model, baseURL string) *AnthropicClient {
	return &AnthropicClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), defaultRequestsPerSecond),
	}
}

// Model returns the configured model identifier.
func (a *AnthropicClient) Model() string {
	return a.model
}

// Messages sends one messages request and parses the structured response.
//
// Description:
//
//	Builds the wire payload (system prompt as a top-level system block,
//	ephemeral cache control for long prompts), posts it, and returns the
//	content blocks and stop reason as-is. Tool definitions and tool
//	choice are forwarded only when present, so a follow-up call without
//	tools naturally bounds the tool-use loop.
//
// Inputs:
//   - ctx: Context for cancellation and timeout.
//   - req: The request. Messages must not be empty.
//
// Outputs:
//   - *MessagesResponse: Ordered content blocks plus stop reason.
//   - error: Non-nil on transport failure, non-200 status, or API error.
//
// Thread Safety: safe for concurrent use.
func (a *AnthropicClient) Messages(ctx context.Context, req *MessagesRequest) (*MessagesResponse, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("anthropic: request has no messages")
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("anthropic: rate limiter wait: %w", err)
	}

	var systemBlocks []systemBlock
	if req.System != "" {
		block := systemBlock{Type: "text", Text: req.System}
		if len(req.System) > 1024 {
			block.CacheControl = &cacheControl{Type: "ephemeral"}
		}
		systemBlocks = append(systemBlocks, block)
	}

	payload := anthropicRequest{
		Model:       a.model,
		Messages:    req.Messages,
		System:      systemBlocks,
		MaxTokens:   req.MaxTokens,
		Tools:       req.Tools,
		ToolChoice:  req.ToolChoice,
		Temperature: req.Temperature,
	}
	if payload.MaxTokens <= 0 {
		payload.MaxTokens = 4096
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: creating HTTP request: %w", err)
	}
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)
	httpReq.Header.Set("content-type", "application/json")

	slog.Debug("Sending messages request to Anthropic",
		slog.String("model", a.model),
		slog.Int("message_count", len(req.Messages)),
		slog.Int("tool_count", len(req.Tools)),
	)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: reading response body (status %d): %w", resp.StatusCode, err)
	}

	slog.Debug("Anthropic response received",
		slog.Int("status", resp.StatusCode),
		slog.Int("body_length", len(respBody)),
		slog.String("model", a.model),
	)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("anthropic: API returned status %d: %s", resp.StatusCode, SafeLogString(string(respBody)))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("anthropic: parsing response JSON: %w", err)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("anthropic: API error: %s - %s", apiResp.Error.Type, SafeLogString(apiResp.Error.Message))
	}
	if len(apiResp.Content) == 0 {
		return nil, fmt.Errorf("anthropic: received empty content")
	}

	return &MessagesResponse{
		Content:    apiResp.Content,
		StopReason: apiResp.StopReason,
	}, nil
}
