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
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lectern-ai/lectern/services/rag/datatypes"
)

var outlineToolTracer = otel.Tracer("tools.get_course_outline")

// CourseOutlineTool returns a course's full outline: title, link,
// instructor, and the numbered lesson list.
//
// # Thread Safety
//
// NOT safe for concurrent use; see Tool.
type CourseOutlineTool struct {
	store       SearchStore
	logger      *slog.Logger
	lastSources []datatypes.Source
}

// NewCourseOutlineTool creates the get_course_outline tool.
func NewCourseOutlineTool(store SearchStore, logger *slog.Logger) *CourseOutlineTool {
	if logger == nil {
		logger = slog.Default()
	}
	return &CourseOutlineTool{store: store, logger: logger}
}

func (t *CourseOutlineTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "get_course_outline",
		Description: "Get the complete outline of a course including title, course link, and all lessons with their numbers and titles",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]PropertyDef{
				"course_name": {
					Type:        "string",
					Description: "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
				},
			},
			Required: []string{"course_name"},
		},
	}
}

// Execute looks up the outline and replaces the recorded sources.
func (t *CourseOutlineTool) Execute(ctx context.Context, params map[string]any) string {
	courseName, ok := stringParam(params, "course_name")
	if !ok || courseName == "" {
		return "Error: 'course_name' parameter is required"
	}

	ctx, span := outlineToolTracer.Start(ctx, "CourseOutlineTool.Execute",
		trace.WithAttributes(
			attribute.String("tool", "get_course_outline"),
			attribute.String("course_name", courseName),
		),
	)
	defer span.End()

	info, err := t.store.GetCourseInfo(ctx, courseName)
	if err != nil {
		t.logger.Warn("outline tool: course info lookup failed",
			slog.String("course_name", courseName),
			slog.String("error", err.Error()),
		)
		info = nil
	}
	if info == nil {
		t.lastSources = nil
		return fmt.Sprintf("No course found matching '%s'", courseName)
	}

	lines := []string{fmt.Sprintf("Course Title: %s", info.Title)}
	if info.Instructor != "" {
		lines = append(lines, fmt.Sprintf("Course Instructor: %s", info.Instructor))
	}
	if info.Link != "" {
		lines = append(lines, fmt.Sprintf("Course Link: %s", info.Link))
	}

	lessons := make([]datatypes.LessonInfo, len(info.Lessons))
	copy(lessons, info.Lessons)
	sort.Slice(lessons, func(i, j int) bool {
		return lessons[i].Number < lessons[j].Number
	})
	for _, lesson := range lessons {
		lines = append(lines, fmt.Sprintf("Lesson %d: %s", lesson.Number, lesson.Title))
	}

	t.lastSources = []datatypes.Source{{
		Text: fmt.Sprintf("%s - Course Outline", info.Title),
		Link: info.Link,
	}}
	return strings.Join(lines, "\n")
}

// LastSources returns the attribution entries from the most recent Execute.
func (t *CourseOutlineTool) LastSources() []datatypes.Source {
	return t.lastSources
}

// ResetSources clears the recorded attribution entries.
func (t *CourseOutlineTool) ResetSources() {
	t.lastSources = nil
}
