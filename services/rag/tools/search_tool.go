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
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lectern-ai/lectern/services/rag/datatypes"
)

var searchToolTracer = otel.Tracer("tools.search_course_content")

// SearchStore is the slice of the vector store the retrieval tools need.
type SearchStore interface {
	// Search runs a similarity query, optionally scoped by course and lesson.
	Search(ctx context.Context, query, courseName string, lessonNumber *int, limit int) datatypes.SearchResults

	// GetCourseInfo resolves a fuzzy course reference to outline data.
	// Returns (nil, nil) when nothing resolves.
	GetCourseInfo(ctx context.Context, courseName string) (*datatypes.CourseInfo, error)

	// GetLessonLink returns the link for one lesson of an exact course
	// title, or "" when absent.
	GetLessonLink(ctx context.Context, courseTitle string, lessonNumber int) (string, error)
}

// CourseSearchTool searches course content with semantic matching and
// optional course and lesson scoping.
//
// # Thread Safety
//
// NOT safe for concurrent use; see Tool.
type CourseSearchTool struct {
	store       SearchStore
	logger      *slog.Logger
	lastSources []datatypes.Source
}

// NewCourseSearchTool creates the search_course_content tool.
func NewCourseSearchTool(store SearchStore, logger *slog.Logger) *CourseSearchTool {
	if logger == nil {
		logger = slog.Default()
	}
	return &CourseSearchTool{store: store, logger: logger}
}

func (t *CourseSearchTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "search_course_content",
		Description: "Search course materials with smart course name matching and lesson filtering",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]PropertyDef{
				"query": {
					Type:        "string",
					Description: "What to search for in the course content",
				},
				"course_name": {
					Type:        "string",
					Description: "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
				},
				"lesson_number": {
					Type:        "integer",
					Description: "Specific lesson number to search within (e.g. 1, 2, 3)",
				},
			},
			Required: []string{"query"},
		},
	}
}

// Execute runs the content search and replaces the recorded sources.
func (t *CourseSearchTool) Execute(ctx context.Context, params map[string]any) string {
	query, ok := stringParam(params, "query")
	if !ok || query == "" {
		return "Error: 'query' parameter is required"
	}
	courseName, _ := stringParam(params, "course_name")
	lessonNumber := intParam(params, "lesson_number")

	ctx, span := searchToolTracer.Start(ctx, "CourseSearchTool.Execute",
		trace.WithAttributes(
			attribute.String("tool", "search_course_content"),
			attribute.String("course_name", courseName),
			attribute.Bool("lesson_scoped", lessonNumber != nil),
		),
	)
	defer span.End()

	results := t.store.Search(ctx, query, courseName, lessonNumber, 0)
	if results.Error != "" {
		t.lastSources = nil
		return results.Error
	}
	if results.IsEmpty() {
		t.lastSources = nil
		return emptyResultMessage(courseName, lessonNumber)
	}

	return t.formatResults(ctx, results)
}

// LastSources returns the attribution entries from the most recent Execute.
func (t *CourseSearchTool) LastSources() []datatypes.Source {
	return t.lastSources
}

// ResetSources clears the recorded attribution entries.
func (t *CourseSearchTool) ResetSources() {
	t.lastSources = nil
}

// emptyResultMessage names the active scope so the model can tell "nothing
// in this lesson" apart from "nothing anywhere".
func emptyResultMessage(courseName string, lessonNumber *int) string {
	var b strings.Builder
	b.WriteString("No relevant content found")
	if courseName != "" {
		fmt.Fprintf(&b, " in course '%s'", courseName)
	}
	if lessonNumber != nil {
		fmt.Fprintf(&b, " in lesson %d", *lessonNumber)
	}
	b.WriteString(".")
	return b.String()
}

// formatResults renders matches as bracketed context headers over chunk
// text and records one attribution entry per match.
func (t *CourseSearchTool) formatResults(ctx context.Context, results datatypes.SearchResults) string {
	formatted := make([]string, 0, len(results.Documents))
	sources := make([]datatypes.Source, 0, len(results.Documents))

	for i, doc := range results.Documents {
		var metadata map[string]any
		if i < len(results.Metadata) {
			metadata = results.Metadata[i]
		}
		courseTitle := metaString(metadata, "course_title", "unknown")

		header := fmt.Sprintf("[%s]", courseTitle)
		sourceText := courseTitle
		link := ""
		if lesson, ok := metaInt(metadata, "lesson_number"); ok {
			header = fmt.Sprintf("[%s - Lesson %d]", courseTitle, lesson)
			sourceText = fmt.Sprintf("%s - Lesson %d", courseTitle, lesson)
			var err error
			link, err = t.store.GetLessonLink(ctx, courseTitle, lesson)
			if err != nil {
				t.logger.Warn("search tool: lesson link lookup failed",
					slog.String("course_title", courseTitle),
					slog.Int("lesson_number", lesson),
					slog.String("error", err.Error()),
				)
				link = ""
			}
		}

		sources = append(sources, datatypes.Source{Text: sourceText, Link: link})
		formatted = append(formatted, header+"\n"+doc)
	}

	t.lastSources = sources
	return strings.Join(formatted, "\n\n")
}
