// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleTranscript = `Course Title: Building Towards Computer Use with Anthropic
Course Link: https://example.com/course
Course Instructor: Colt Steele

Lesson 0: Introduction
Lesson Link: https://example.com/lesson0
Welcome to the course. This lesson introduces the overall structure and
explains what you will build across the remaining lessons.

Lesson 1: Getting Started
Lesson Link: https://example.com/lesson1
In this lesson you will set up your environment and make your first API
call. We cover authentication, request structure, and response handling
in enough depth to get you productive quickly.
`

// writeTranscript writes content to a temp .txt file and returns its path.
func writeTranscript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "course1_script.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writeTranscript: %v", err)
	}
	return path
}

func TestProcessCourseDocument_Metadata(t *testing.T) {
	p := NewDocumentProcessor(800, 100, nil)
	course, _, err := p.ProcessCourseDocument(writeTranscript(t, sampleTranscript))
	if err != nil {
		t.Fatalf("ProcessCourseDocument: %v", err)
	}

	if course.Title != "Building Towards Computer Use with Anthropic" {
		t.Errorf("title = %q", course.Title)
	}
	if course.CourseLink != "https://example.com/course" {
		t.Errorf("link = %q", course.CourseLink)
	}
	if course.Instructor != "Colt Steele" {
		t.Errorf("instructor = %q", course.Instructor)
	}
	if len(course.Lessons) != 2 {
		t.Fatalf("expected 2 lessons, got %d", len(course.Lessons))
	}
	if course.Lessons[0].LessonNumber != 0 || course.Lessons[0].Title != "Introduction" {
		t.Errorf("lesson 0 = %+v", course.Lessons[0])
	}
	if course.Lessons[0].LessonLink != "https://example.com/lesson0" {
		t.Errorf("lesson 0 link = %q", course.Lessons[0].LessonLink)
	}
	if course.Lessons[1].LessonNumber != 1 || course.Lessons[1].Title != "Getting Started" {
		t.Errorf("lesson 1 = %+v", course.Lessons[1])
	}
}

func TestProcessCourseDocument_Chunks(t *testing.T) {
	// Small geometry to force several chunks per lesson.
	p := NewDocumentProcessor(120, 20, nil)
	course, chunks, err := p.ProcessCourseDocument(writeTranscript(t, sampleTranscript))
	if err != nil {
		t.Fatalf("ProcessCourseDocument: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	// Only the first chunk of each lesson carries the context prefix;
	// continuation chunks stay verbatim.
	wantPrefix := "Course " + course.Title + " Lesson "
	seenLessons := map[int]bool{}
	for i, chunk := range chunks {
		if chunk.ChunkIndex != i {
			t.Errorf("chunk %d has index %d; indices must be monotonic", i, chunk.ChunkIndex)
		}
		if chunk.CourseTitle != course.Title {
			t.Errorf("chunk %d course title = %q", i, chunk.CourseTitle)
		}
		if chunk.LessonNumber == nil {
			t.Errorf("chunk %d has no lesson number", i)
			continue
		}
		first := !seenLessons[*chunk.LessonNumber]
		seenLessons[*chunk.LessonNumber] = true
		if first != strings.HasPrefix(chunk.Content, wantPrefix) {
			t.Errorf("chunk %d (lesson %d, first=%v) prefix mismatch: %q",
				i, *chunk.LessonNumber, first, chunk.Content)
		}
	}
	if len(seenLessons) != 2 {
		t.Errorf("expected chunks from 2 lessons, got %d", len(seenLessons))
	}

	// Lesson 1 content must be attributed to lesson 1.
	found := false
	for _, chunk := range chunks {
		if chunk.LessonNumber != nil && *chunk.LessonNumber == 1 &&
			strings.Contains(chunk.Content, "authentication") {
			found = true
		}
	}
	if !found {
		t.Error("lesson 1 content not attributed to lesson 1")
	}
}

func TestProcessCourseDocument_ContentBeforeFirstLesson(t *testing.T) {
	transcript := `Course Title: Orphan Content Course

This paragraph sits before any lesson header and still belongs to the course.

Lesson 1: Actual Lesson
Lesson body text here.
`
	p := NewDocumentProcessor(800, 100, nil)
	_, chunks, err := p.ProcessCourseDocument(writeTranscript(t, transcript))
	if err != nil {
		t.Fatalf("ProcessCourseDocument: %v", err)
	}

	var orphan, lesson bool
	for _, chunk := range chunks {
		if chunk.LessonNumber == nil {
			orphan = true
			if !strings.HasPrefix(chunk.Content, "Course Orphan Content Course content: ") {
				t.Errorf("orphan chunk prefix wrong: %q", chunk.Content)
			}
		} else if *chunk.LessonNumber == 1 {
			lesson = true
		}
	}
	if !orphan {
		t.Error("expected a chunk with no lesson number for pre-lesson content")
	}
	if !lesson {
		t.Error("expected a lesson 1 chunk")
	}
}

func TestProcessCourseDocument_MissingTitle(t *testing.T) {
	p := NewDocumentProcessor(800, 100, nil)
	_, _, err := p.ProcessCourseDocument(writeTranscript(t, "just some text\nwith no header\n"))
	if err == nil {
		t.Fatal("expected error for transcript without Course Title header")
	}
}

func TestProcessCourseDocument_MissingFile(t *testing.T) {
	p := NewDocumentProcessor(800, 100, nil)
	_, _, err := p.ProcessCourseDocument(filepath.Join(t.TempDir(), "absent.txt"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestProcessCourseDocument_LessonWithoutLink(t *testing.T) {
	transcript := `Course Title: Linkless Course

Lesson 1: No Link Here
Body of the lesson follows immediately without a link line.
`
	p := NewDocumentProcessor(800, 100, nil)
	course, chunks, err := p.ProcessCourseDocument(writeTranscript(t, transcript))
	if err != nil {
		t.Fatalf("ProcessCourseDocument: %v", err)
	}
	if course.Lessons[0].LessonLink != "" {
		t.Errorf("lesson link should be empty, got %q", course.Lessons[0].LessonLink)
	}
	if len(chunks) == 0 || !strings.Contains(chunks[0].Content, "Body of the lesson") {
		t.Errorf("lesson body lost: %+v", chunks)
	}
}

func TestIsSupportedFile(t *testing.T) {
	cases := map[string]bool{
		"course1_script.txt": true,
		"slides.PDF":         true,
		"notes.docx":         true,
		"image.png":          false,
		"README":             false,
	}
	for path, want := range cases {
		if got := IsSupportedFile(path); got != want {
			t.Errorf("IsSupportedFile(%q) = %v, want %v", path, got, want)
		}
	}
}
