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
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/lectern-ai/lectern/services/rag/datatypes"
)

// lessonHeaderRe matches lesson section headers like "Lesson 0: Introduction".
var lessonHeaderRe = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.*)$`)

// SupportedExtensions lists the transcript file types the processor reads.
var SupportedExtensions = []string{".txt", ".pdf", ".docx"}

// IsSupportedFile reports whether path has a supported transcript extension.
func IsSupportedFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, supported := range SupportedExtensions {
		if ext == supported {
			return true
		}
	}
	return false
}

// DocumentProcessor parses course transcript files and splits lesson text
// into overlapping chunks ready for embedding.
//
// # Description
//
// Transcripts open with a metadata header:
//
//	Course Title: Building Towards Computer Use with Anthropic
//	Course Link: https://example.com/course
//	Course Instructor: Colt Steele
//
// followed by lesson sections introduced by "Lesson N: Title" lines, each
// optionally followed by a "Lesson Link:" line, then the lesson transcript.
// Text before the first lesson header is treated as untitled course content
// with no lesson number.
//
// Each chunk is prefixed with its course and lesson so a chunk retrieved in
// isolation still tells the model where it came from. Chunk indices are
// monotonic across the whole document.
//
// # Thread Safety
//
// Safe for concurrent use; processing state is per-call.
type DocumentProcessor struct {
	chunkSize    int
	chunkOverlap int
	logger       *slog.Logger
}

// NewDocumentProcessor creates a processor with the given chunk geometry.
// Non-positive values fall back to 800/100.
func NewDocumentProcessor(chunkSize, chunkOverlap int, logger *slog.Logger) *DocumentProcessor {
	if chunkSize < 1 {
		chunkSize = 800
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentProcessor{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		logger:       logger,
	}
}

// section is one lesson's worth of raw transcript text.
type section struct {
	lessonNumber *int
	content      string
}

// ProcessCourseDocument parses one transcript file into course metadata and
// embedding-ready chunks.
func (p *DocumentProcessor) ProcessCourseDocument(path string) (*datatypes.Course, []datatypes.CourseChunk, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("ingest: open %q: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	course := &datatypes.Course{}
	var sections []section

	var current *section
	var buf strings.Builder
	flush := func() {
		if current != nil {
			current.content = strings.TrimSpace(buf.String())
			if current.content != "" || current.lessonNumber != nil {
				sections = append(sections, *current)
			}
		}
		buf.Reset()
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	inHeader := true
	expectLessonLink := false

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if inHeader {
			switch {
			case strings.HasPrefix(trimmed, "Course Title:"):
				course.Title = strings.TrimSpace(strings.TrimPrefix(trimmed, "Course Title:"))
				continue
			case strings.HasPrefix(trimmed, "Course Link:"):
				course.CourseLink = strings.TrimSpace(strings.TrimPrefix(trimmed, "Course Link:"))
				continue
			case strings.HasPrefix(trimmed, "Course Instructor:"):
				course.Instructor = strings.TrimSpace(strings.TrimPrefix(trimmed, "Course Instructor:"))
				continue
			case trimmed == "":
				continue
			}
			// First non-header line ends the header.
			inHeader = false
			current = &section{}
		}

		if m := lessonHeaderRe.FindStringSubmatch(trimmed); m != nil {
			flush()
			number, convErr := strconv.Atoi(m[1])
			if convErr != nil {
				return nil, nil, fmt.Errorf("ingest: parse lesson number in %q: %w", path, convErr)
			}
			course.Lessons = append(course.Lessons, datatypes.Lesson{
				LessonNumber: number,
				Title:        strings.TrimSpace(m[2]),
			})
			current = &section{lessonNumber: &number}
			expectLessonLink = true
			continue
		}

		if expectLessonLink {
			expectLessonLink = false
			if strings.HasPrefix(trimmed, "Lesson Link:") {
				link := strings.TrimSpace(strings.TrimPrefix(trimmed, "Lesson Link:"))
				course.Lessons[len(course.Lessons)-1].LessonLink = link
				continue
			}
		}

		if current == nil {
			current = &section{}
		}
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("ingest: read %q: %w", path, err)
	}
	if course.Title == "" {
		return nil, nil, fmt.Errorf("ingest: %q has no Course Title header", path)
	}

	chunks, err := p.chunkSections(course.Title, sections)
	if err != nil {
		return nil, nil, err
	}

	p.logger.Info("ingest: document processed",
		slog.String("path", path),
		slog.String("course_title", course.Title),
		slog.Int("lessons", len(course.Lessons)),
		slog.Int("chunks", len(chunks)),
	)
	return course, chunks, nil
}

// chunkSections splits each section's text. The first chunk of each
// section carries a course and lesson context prefix; later chunks stay
// verbatim, since overlap already ties them to their neighbors.
func (p *DocumentProcessor) chunkSections(courseTitle string, sections []section) ([]datatypes.CourseChunk, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(p.chunkSize),
		textsplitter.WithChunkOverlap(p.chunkOverlap),
	)

	var chunks []datatypes.CourseChunk
	index := 0
	for _, sec := range sections {
		if sec.content == "" {
			continue
		}
		pieces, err := splitter.SplitText(sec.content)
		if err != nil {
			return nil, fmt.Errorf("ingest: split %q: %w", courseTitle, err)
		}
		for i, piece := range pieces {
			content := piece
			if i == 0 {
				if sec.lessonNumber != nil {
					content = fmt.Sprintf("Course %s Lesson %d content: %s", courseTitle, *sec.lessonNumber, piece)
				} else {
					content = fmt.Sprintf("Course %s content: %s", courseTitle, piece)
				}
			}
			chunks = append(chunks, datatypes.CourseChunk{
				Content:      content,
				CourseTitle:  courseTitle,
				LessonNumber: sec.lessonNumber,
				ChunkIndex:   index,
			})
			index++
		}
	}
	return chunks, nil
}
