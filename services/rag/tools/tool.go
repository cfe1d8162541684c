// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"

	"github.com/lectern-ai/lectern/services/rag/datatypes"
)

// PropertyDef describes one parameter in a tool's input schema. The shape
// follows the JSON Schema subset the Anthropic messages API accepts.
type PropertyDef struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// InputSchema is the JSON Schema object describing a tool's parameters.
type InputSchema struct {
	Type       string                 `json:"type"`
	Properties map[string]PropertyDef `json:"properties"`
	Required   []string               `json:"required"`
}

// ToolDefinition is the model-facing description of a tool.
type ToolDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// Tool is a capability the model can invoke by name during generation.
//
// # Description
//
// Execute always returns a model-readable string: retrieval failures,
// empty-result notices, and formatted matches all flow back as tool result
// text, never as a Go error. The model can recover from a failure message;
// a broken tool round trip it cannot.
//
// A tool records the attribution entries for its most recent Execute.
// Each Execute replaces the previous entries wholesale.
//
// # Thread Safety
//
// Tools are NOT safe for concurrent use. The source lifecycle assumes one
// question flows through execute-collect-reset at a time; callers that
// share tools across concurrent questions must serialize access.
type Tool interface {
	// Definition returns the model-facing schema for this tool.
	Definition() ToolDefinition

	// Execute runs the tool with the model-supplied arguments and returns
	// the tool result text.
	Execute(ctx context.Context, params map[string]any) string

	// LastSources returns the attribution entries from the most recent
	// Execute. Empty until the first Execute, and after ResetSources.
	LastSources() []datatypes.Source

	// ResetSources clears the recorded attribution entries.
	ResetSources()
}

// stringParam reads a string argument. Model-supplied arguments arrive as
// decoded JSON, so a missing key and a non-string value both report false.
func stringParam(params map[string]any, key string) (string, bool) {
	v, ok := params[key].(string)
	return v, ok
}

// intParam reads an optional integer argument. JSON decoding delivers
// numbers as float64; a missing key or non-numeric value returns nil.
func intParam(params map[string]any, key string) *int {
	switch v := params[key].(type) {
	case int:
		return &v
	case float64:
		n := int(v)
		return &n
	default:
		return nil
	}
}

// metaInt reads an integer from record metadata, which passes through a
// JSON round trip in storage and so may hold float64.
func metaInt(metadata map[string]any, key string) (int, bool) {
	switch v := metadata[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// metaString reads a string from record metadata; absent returns fallback.
func metaString(metadata map[string]any, key, fallback string) string {
	if v, ok := metadata[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
