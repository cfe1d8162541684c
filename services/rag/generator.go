// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lectern-ai/lectern/services/llm"
	"github.com/lectern-ai/lectern/services/rag/tools"
)

var generatorTracer = otel.Tracer("rag.generator")

// Default sampling parameters for answer generation. Temperature 0 keeps
// retrieval-grounded answers deterministic; 800 tokens is ample for a
// focused answer and caps cost per question.
const (
	defaultTemperature float32 = 0
	defaultMaxTokens           = 800
)

// ToolExecutor dispatches a model-requested tool invocation and returns the
// tool result text. Satisfied by tools.Registry.
type ToolExecutor interface {
	ExecuteTool(ctx context.Context, name string, params map[string]any) string
}

// Generator produces answers through the messages API, with a bounded
// tool-use round trip.
//
// # Description
//
// One question costs at most two model calls: the initial call (with tools
// offered when a registry is present), and, only when the model stops for
// tool use, one follow-up call carrying the tool results. The follow-up
// offers no tools, so the model cannot request another round; cost per
// question stays bounded no matter what the model asks for.
//
// # Thread Safety
//
// Safe for concurrent use; per-question state lives on the stack.
type Generator struct {
	client llm.MessagesAPI
	logger *slog.Logger
}

// NewGenerator creates a generator over an LLM client.
func NewGenerator(client llm.MessagesAPI, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{client: client, logger: logger}
}

// GenerateResponse answers one question, optionally with conversation
// history and tool access.
//
// # Inputs
//
//   - ctx: Context for the model calls.
//   - query: The user-facing question, already wrapped in any instruction
//     framing the caller wants.
//   - history: Formatted prior exchanges; empty means a fresh conversation.
//   - toolDefs: Tool definitions to offer the model. Empty offers none.
//   - executor: Dispatcher for tool invocations. When nil, a tool_use stop
//     is answered from whatever text the response carried.
//
// # Outputs
//
//   - string: The final answer text.
//   - error: Non-nil when a model call fails; mid-loop failures surface to
//     the caller rather than degrading into a partial answer.
func (g *Generator) GenerateResponse(ctx context.Context, query, history string, toolDefs []tools.ToolDefinition, executor ToolExecutor) (string, error) {
	ctx, span := generatorTracer.Start(ctx, "Generator.GenerateResponse",
		trace.WithAttributes(
			attribute.Int("tool_count", len(toolDefs)),
			attribute.Bool("has_history", history != ""),
		),
	)
	defer span.End()

	system := systemPrompt
	if history != "" {
		system = fmt.Sprintf("%s\n\nPrevious conversation:\n%s", systemPrompt, history)
	}

	temperature := defaultTemperature
	req := &llm.MessagesRequest{
		System:      system,
		Messages:    []llm.Message{llm.UserText(query)},
		Temperature: &temperature,
		MaxTokens:   defaultMaxTokens,
	}
	if len(toolDefs) > 0 {
		req.Tools = convertToolDefs(toolDefs)
		req.ToolChoice = llm.ToolChoiceAuto()
	}

	resp, err := g.client.Messages(ctx, req)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("rag: generate response: %w", err)
	}

	if resp.StopReason == llm.StopReasonToolUse && executor != nil {
		span.SetAttributes(attribute.Bool("tool_round", true))
		return g.handleToolExecution(ctx, req, resp, executor)
	}

	return resp.Text(), nil
}

// handleToolExecution runs the requested tools and makes the single
// follow-up call.
//
// The follow-up conversation is the original user turn, the assistant turn
// echoed back verbatim (text and tool_use blocks), and a user turn holding
// one tool_result block per invocation, in request order. Tools and
// tool_choice are omitted from the follow-up, which is what bounds the
// loop.
func (g *Generator) handleToolExecution(ctx context.Context, req *llm.MessagesRequest, resp *llm.MessagesResponse, executor ToolExecutor) (string, error) {
	messages := append([]llm.Message{}, req.Messages...)
	messages = append(messages, llm.Message{Role: "assistant", Content: resp.Content})

	var results []llm.ContentBlock
	for _, block := range resp.ToolUses() {
		params := map[string]any{}
		if len(block.Input) > 0 {
			if err := json.Unmarshal(block.Input, &params); err != nil {
				g.logger.Warn("generator: malformed tool input",
					slog.String("tool", block.Name),
					slog.String("error", err.Error()),
				)
				params = map[string]any{}
			}
		}

		g.logger.Debug("generator: executing tool",
			slog.String("tool", block.Name),
			slog.String("tool_use_id", block.ID),
		)
		result := executor.ExecuteTool(ctx, block.Name, params)
		results = append(results, llm.ToolResultBlock(block.ID, result))
	}
	messages = append(messages, llm.Message{Role: "user", Content: results})

	followUp := &llm.MessagesRequest{
		System:      req.System,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	final, err := g.client.Messages(ctx, followUp)
	if err != nil {
		return "", fmt.Errorf("rag: tool follow-up: %w", err)
	}
	return final.Text(), nil
}

// convertToolDefs shapes registry definitions into the wire form the
// messages API expects.
func convertToolDefs(defs []tools.ToolDefinition) []llm.ToolSpec {
	specs := make([]llm.ToolSpec, len(defs))
	for i, def := range defs {
		specs[i] = llm.ToolSpec{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		}
	}
	return specs
}
