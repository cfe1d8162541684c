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
	"errors"
	"strings"
	"testing"

	"github.com/lectern-ai/lectern/services/llm"
	"github.com/lectern-ai/lectern/services/rag/tools"
)

// =============================================================================
// Fakes
// =============================================================================

// scriptedLLM returns canned responses in order and records every request.
type scriptedLLM struct {
	requests  []*llm.MessagesRequest
	responses []*llm.MessagesResponse
	errs      []error
}

func (f *scriptedLLM) Messages(_ context.Context, req *llm.MessagesRequest) (*llm.MessagesResponse, error) {
	i := len(f.requests)
	f.requests = append(f.requests, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i >= len(f.responses) {
		return nil, errors.New("scriptedLLM: no response scripted for call")
	}
	return f.responses[i], nil
}

func textResponse(text string) *llm.MessagesResponse {
	return &llm.MessagesResponse{
		Content:    []llm.ContentBlock{llm.TextBlock(text)},
		StopReason: llm.StopReasonEndTurn,
	}
}

func toolUseResponse(blocks ...llm.ContentBlock) *llm.MessagesResponse {
	return &llm.MessagesResponse{
		Content:    blocks,
		StopReason: llm.StopReasonToolUse,
	}
}

func toolUseBlock(id, name, inputJSON string) llm.ContentBlock {
	return llm.ContentBlock{
		Type:  "tool_use",
		ID:    id,
		Name:  name,
		Input: json.RawMessage(inputJSON),
	}
}

// recordingExecutor records dispatched invocations and returns canned text.
type recordingExecutor struct {
	calls   []string
	inputs  []map[string]any
	results map[string]string
}

func (e *recordingExecutor) ExecuteTool(_ context.Context, name string, params map[string]any) string {
	e.calls = append(e.calls, name)
	e.inputs = append(e.inputs, params)
	if result, ok := e.results[name]; ok {
		return result
	}
	return "ok"
}

func searchToolDefs() []tools.ToolDefinition {
	return []tools.ToolDefinition{
		{
			Name:        "search_course_content",
			Description: "Search tool",
			InputSchema: tools.InputSchema{
				Type:       "object",
				Properties: map[string]tools.PropertyDef{"query": {Type: "string"}},
				Required:   []string{"query"},
			},
		},
	}
}

// =============================================================================
// Generator Tests
// =============================================================================

func TestGenerator_WithoutTools(t *testing.T) {
	client := &scriptedLLM{responses: []*llm.MessagesResponse{textResponse("This is a general response.")}}
	gen := NewGenerator(client, nil)

	answer, err := gen.GenerateResponse(context.Background(), "What is AI?", "", nil, nil)
	if err != nil {
		t.Fatalf("GenerateResponse: %v", err)
	}
	if answer != "This is a general response." {
		t.Errorf("answer = %q", answer)
	}

	req := client.requests[0]
	if len(req.Tools) != 0 || req.ToolChoice != nil {
		t.Error("no tools should be offered when none are provided")
	}
	if req.Messages[0].Content[0].Text != "What is AI?" {
		t.Errorf("user message = %+v", req.Messages[0])
	}
	if req.Temperature == nil || *req.Temperature != 0 {
		t.Errorf("temperature = %v", req.Temperature)
	}
	if req.MaxTokens != 800 {
		t.Errorf("max tokens = %d", req.MaxTokens)
	}
}

func TestGenerator_ToolsOfferedButUnused(t *testing.T) {
	client := &scriptedLLM{responses: []*llm.MessagesResponse{textResponse("Direct answer without tools.")}}
	gen := NewGenerator(client, nil)
	executor := &recordingExecutor{}

	answer, err := gen.GenerateResponse(context.Background(), "What is the capital of France?", "", searchToolDefs(), executor)
	if err != nil {
		t.Fatalf("GenerateResponse: %v", err)
	}
	if answer != "Direct answer without tools." {
		t.Errorf("answer = %q", answer)
	}

	req := client.requests[0]
	if len(req.Tools) != 1 || req.Tools[0].Name != "search_course_content" {
		t.Errorf("tools = %+v", req.Tools)
	}
	if req.ToolChoice == nil || req.ToolChoice.Type != "auto" {
		t.Errorf("tool_choice = %+v", req.ToolChoice)
	}
	if len(executor.calls) != 0 {
		t.Errorf("executor should not run: %v", executor.calls)
	}
	if len(client.requests) != 1 {
		t.Errorf("expected 1 model call, got %d", len(client.requests))
	}
}

func TestGenerator_ToolUseRound(t *testing.T) {
	client := &scriptedLLM{responses: []*llm.MessagesResponse{
		toolUseResponse(toolUseBlock("tool_123", "search_course_content", `{"query":"prompt caching"}`)),
		textResponse("Tool result processed."),
	}}
	gen := NewGenerator(client, nil)
	executor := &recordingExecutor{results: map[string]string{"search_course_content": "Search results here"}}

	answer, err := gen.GenerateResponse(context.Background(), "What is prompt caching?", "", searchToolDefs(), executor)
	if err != nil {
		t.Fatalf("GenerateResponse: %v", err)
	}
	if answer != "Tool result processed." {
		t.Errorf("answer = %q", answer)
	}
	if len(client.requests) != 2 {
		t.Fatalf("expected 2 model calls, got %d", len(client.requests))
	}
	if len(executor.calls) != 1 || executor.calls[0] != "search_course_content" {
		t.Errorf("executor calls = %v", executor.calls)
	}
	if executor.inputs[0]["query"] != "prompt caching" {
		t.Errorf("tool input = %v", executor.inputs[0])
	}

	followUp := client.requests[1]
	if len(followUp.Tools) != 0 || followUp.ToolChoice != nil {
		t.Error("follow-up call must not offer tools")
	}
	if len(followUp.Messages) != 3 {
		t.Fatalf("follow-up conversation has %d messages, want 3", len(followUp.Messages))
	}
	if followUp.Messages[1].Role != "assistant" {
		t.Errorf("second message role = %q", followUp.Messages[1].Role)
	}
	last := followUp.Messages[2]
	if last.Role != "user" || len(last.Content) != 1 {
		t.Fatalf("tool result message = %+v", last)
	}
	block := last.Content[0]
	if block.Type != "tool_result" || block.ToolUseID != "tool_123" || block.Content != "Search results here" {
		t.Errorf("tool_result block = %+v", block)
	}
}

func TestGenerator_MultipleToolCallsInOneRound(t *testing.T) {
	client := &scriptedLLM{responses: []*llm.MessagesResponse{
		toolUseResponse(
			llm.TextBlock("Let me search for that."),
			toolUseBlock("tool_1", "search_course_content", `{"query":"prompt caching"}`),
			toolUseBlock("tool_2", "get_course_outline", `{"course_name":"Building Towards Computer Use"}`),
		),
		textResponse("Combined results from both tools."),
	}}
	gen := NewGenerator(client, nil)
	executor := &recordingExecutor{results: map[string]string{
		"search_course_content": "Search result 1",
		"get_course_outline":    "Outline result",
	}}

	answer, err := gen.GenerateResponse(context.Background(), "Tell me about both", "", searchToolDefs(), executor)
	if err != nil {
		t.Fatalf("GenerateResponse: %v", err)
	}
	if answer != "Combined results from both tools." {
		t.Errorf("answer = %q", answer)
	}
	if len(executor.calls) != 2 {
		t.Fatalf("executor calls = %v", executor.calls)
	}
	if executor.calls[0] != "search_course_content" || executor.calls[1] != "get_course_outline" {
		t.Errorf("dispatch order = %v", executor.calls)
	}

	results := client.requests[1].Messages[2].Content
	if len(results) != 2 {
		t.Fatalf("expected 2 tool_result blocks, got %d", len(results))
	}
	if results[0].ToolUseID != "tool_1" || results[1].ToolUseID != "tool_2" {
		t.Errorf("tool_result order = [%s, %s]", results[0].ToolUseID, results[1].ToolUseID)
	}
}

func TestGenerator_SecondToolUseNotDispatched(t *testing.T) {
	// The follow-up response asks for tools again; the loop must not grant
	// a second round.
	client := &scriptedLLM{responses: []*llm.MessagesResponse{
		toolUseResponse(toolUseBlock("tool_1", "search_course_content", `{"query":"first"}`)),
		toolUseResponse(
			llm.TextBlock("Partial synthesis."),
			toolUseBlock("tool_2", "search_course_content", `{"query":"second"}`),
		),
	}}
	gen := NewGenerator(client, nil)
	executor := &recordingExecutor{}

	answer, err := gen.GenerateResponse(context.Background(), "question", "", searchToolDefs(), executor)
	if err != nil {
		t.Fatalf("GenerateResponse: %v", err)
	}
	if len(client.requests) != 2 {
		t.Errorf("expected exactly 2 model calls, got %d", len(client.requests))
	}
	if len(executor.calls) != 1 {
		t.Errorf("second tool request must not be dispatched: %v", executor.calls)
	}
	if answer != "Partial synthesis." {
		t.Errorf("answer should be the follow-up's text content, got %q", answer)
	}
}

func TestGenerator_HistoryInSystemPrompt(t *testing.T) {
	client := &scriptedLLM{responses: []*llm.MessagesResponse{textResponse("Response with context.")}}
	gen := NewGenerator(client, nil)

	history := "User: Previous question\nAssistant: Previous answer"
	_, err := gen.GenerateResponse(context.Background(), "Follow-up question", history, nil, nil)
	if err != nil {
		t.Fatalf("GenerateResponse: %v", err)
	}

	system := client.requests[0].System
	if !strings.Contains(system, "Previous conversation:") {
		t.Error("system prompt missing history heading")
	}
	if !strings.Contains(system, history) {
		t.Error("system prompt missing history text")
	}
}

func TestGenerator_NoHistoryNoHeading(t *testing.T) {
	client := &scriptedLLM{responses: []*llm.MessagesResponse{textResponse("ok")}}
	gen := NewGenerator(client, nil)

	if _, err := gen.GenerateResponse(context.Background(), "q", "", nil, nil); err != nil {
		t.Fatalf("GenerateResponse: %v", err)
	}
	if strings.Contains(client.requests[0].System, "Previous conversation:") {
		t.Error("history heading must be absent for a fresh conversation")
	}
}

func TestGenerator_InitialCallError(t *testing.T) {
	client := &scriptedLLM{errs: []error{errors.New("API Error")}}
	gen := NewGenerator(client, nil)

	_, err := gen.GenerateResponse(context.Background(), "q", "", nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "API Error") {
		t.Errorf("cause lost: %v", err)
	}
}

func TestGenerator_FollowUpCallError(t *testing.T) {
	client := &scriptedLLM{
		responses: []*llm.MessagesResponse{
			toolUseResponse(toolUseBlock("tool_1", "search_course_content", `{"query":"x"}`)),
		},
		errs: []error{nil, errors.New("overloaded")},
	}
	gen := NewGenerator(client, nil)
	executor := &recordingExecutor{}

	_, err := gen.GenerateResponse(context.Background(), "q", "", searchToolDefs(), executor)
	if err == nil {
		t.Fatal("expected follow-up error to propagate")
	}
	if !strings.Contains(err.Error(), "overloaded") {
		t.Errorf("cause lost: %v", err)
	}
}

func TestGenerator_ToolUseWithoutExecutor(t *testing.T) {
	client := &scriptedLLM{responses: []*llm.MessagesResponse{
		toolUseResponse(
			llm.TextBlock("I would need to search."),
			toolUseBlock("tool_1", "search_course_content", `{"query":"x"}`),
		),
	}}
	gen := NewGenerator(client, nil)

	answer, err := gen.GenerateResponse(context.Background(), "q", "", searchToolDefs(), nil)
	if err != nil {
		t.Fatalf("GenerateResponse: %v", err)
	}
	if answer != "I would need to search." {
		t.Errorf("answer = %q", answer)
	}
	if len(client.requests) != 1 {
		t.Errorf("no follow-up call without an executor, got %d calls", len(client.requests))
	}
}
