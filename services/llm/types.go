// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"encoding/json"
	"strings"
)

// Stop reasons returned by the messages API.
const (
	// StopReasonEndTurn means the model finished a normal text answer.
	StopReasonEndTurn = "end_turn"

	// StopReasonToolUse means the response contains tool_use blocks the
	// caller is expected to execute and feed back.
	StopReasonToolUse = "tool_use"
)

// ToolSpec is one tool definition in the messages wire format.
//
// Description:
//
//	InputSchema is kept as an opaque value so callers can pass their own
//	schema types; it must marshal to a JSON Schema object of the form
//	{type: "object", properties: {...}, required: [...]}. The struct
//	round-trips exactly to the API's `tools` entry.
//
// Thread Safety: ToolSpec is immutable and safe for concurrent read access.
type ToolSpec struct {
	// Name is the tool name the model will call.
	Name string `json:"name"`

	// Description explains what the tool does and when to use it.
	Description string `json:"description"`

	// InputSchema is the JSON Schema for the tool's arguments.
	InputSchema any `json:"input_schema"`
}

// ToolChoice controls how the model selects tools.
type ToolChoice struct {
	// Type is the selection policy. "auto" lets the model decide.
	Type string `json:"type"`
}

// ToolChoiceAuto returns the automatic tool-selection policy.
func ToolChoiceAuto() *ToolChoice {
	return &ToolChoice{Type: "auto"}
}

// ContentBlock is a single block in a message's content list.
//
// Description:
//
//	One struct covers all three wire shapes, distinguished by Type:
//	  - "text":        Text
//	  - "tool_use":    ID, Name, Input (model → caller)
//	  - "tool_result": ToolUseID, Content (caller → model)
//	Unused fields are omitted from the JSON encoding, so a response's
//	assistant content can be appended back into a request verbatim.
//
// Thread Safety: ContentBlock is safe for concurrent read access.
type ContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

// TextBlock builds a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: "text", Text: text}
}

// ToolResultBlock builds a tool_result content block correlated to a
// tool_use block by its call ID.
func ToolResultBlock(toolUseID, content string) ContentBlock {
	return ContentBlock{Type: "tool_result", ToolUseID: toolUseID, Content: content}
}

// Message is one conversation turn with structured content blocks.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// UserText builds a user message with a single text block.
func UserText(text string) Message {
	return Message{Role: "user", Content: []ContentBlock{TextBlock(text)}}
}

// MessagesRequest is the provider-agnostic input to Messages.
//
// The system prompt travels separately from the message list, matching
// the messages API's top-level `system` field.
type MessagesRequest struct {
	System      string
	Messages    []Message
	Temperature *float32
	MaxTokens   int
	Tools       []ToolSpec
	ToolChoice  *ToolChoice
}

// MessagesResponse is the parsed result of one Messages call.
type MessagesResponse struct {
	// Content is the ordered list of text and tool_use blocks as returned.
	Content []ContentBlock

	// StopReason is the API's stop_reason: StopReasonEndTurn,
	// StopReasonToolUse, or another provider value (e.g. "max_tokens").
	StopReason string
}

// Text concatenates all text blocks in response order.
func (r *MessagesResponse) Text() string {
	var sb strings.Builder
	for _, block := range r.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

// ToolUses returns the tool_use blocks in response order.
func (r *MessagesResponse) ToolUses() []ContentBlock {
	var uses []ContentBlock
	for _, block := range r.Content {
		if block.Type == "tool_use" {
			uses = append(uses, block)
		}
	}
	return uses
}
