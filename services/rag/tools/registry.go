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
	"fmt"
	"log/slog"

	"github.com/lectern-ai/lectern/services/rag/datatypes"
)

// Registry dispatches tool invocations by name and aggregates source
// attribution across its tools.
//
// # Description
//
// The registry is the single point the generation loop talks to: it hands
// the model every registered definition, routes each tool_use block to the
// owning tool, and collects the sources the tools recorded so the caller
// can surface attribution after the answer is produced.
//
// Registration order is preserved. Definitions, dispatch precedence for
// duplicate names (last registration wins), and source aggregation all
// follow it.
//
// # Thread Safety
//
// NOT safe for concurrent use. Register all tools at startup; one question
// flows through execute-collect-reset at a time.
type Registry struct {
	tools  map[string]Tool
	order  []string
	logger *slog.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]Tool),
		logger: logger,
	}
}

// Register adds a tool under its definition name. Re-registering a name
// replaces the previous tool without disturbing its position in the order.
func (r *Registry) Register(tool Tool) error {
	name := tool.Definition().Name
	if name == "" {
		return fmt.Errorf("tools: register: definition has no name")
	}
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
	r.logger.Debug("registry: tool registered", slog.String("tool", name))
	return nil
}

// Definitions returns every registered tool definition in registration
// order, for the model's tools array.
func (r *Registry) Definitions() []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// ExecuteTool dispatches an invocation to the named tool. An unknown name
// returns "Tool '<name>' not found" as tool result text; the model reads
// the failure and can rephrase instead of the round trip aborting.
func (r *Registry) ExecuteTool(ctx context.Context, name string, params map[string]any) string {
	tool, ok := r.tools[name]
	if !ok {
		r.logger.Warn("registry: unknown tool requested", slog.String("tool", name))
		return fmt.Sprintf("Tool '%s' not found", name)
	}
	return tool.Execute(ctx, params)
}

// LastSources concatenates the recorded sources of every tool in
// registration order.
func (r *Registry) LastSources() []datatypes.Source {
	var sources []datatypes.Source
	for _, name := range r.order {
		sources = append(sources, r.tools[name].LastSources()...)
	}
	return sources
}

// ResetSources clears the recorded sources of every tool.
func (r *Registry) ResetSources() {
	for _, name := range r.order {
		r.tools[name].ResetSources()
	}
}
