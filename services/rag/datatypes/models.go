// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the shared data model for the course RAG pipeline.
//
// These types cross package boundaries (ingestion → store → tools → handlers)
// and carry no behavior beyond small accessors. They are created at ingestion
// time and treated as immutable afterwards.
package datatypes

// Lesson is one lesson within a course.
//
// LessonNumber is unique within its course and ordering-significant.
// LessonLink is empty when the source document carries no link.
type Lesson struct {
	LessonNumber int    `json:"lesson_number"`
	Title        string `json:"title"`
	LessonLink   string `json:"lesson_link,omitempty"`
}

// Course is the identity record for one ingested course.
//
// Title is the primary key across both catalog and content indices —
// unique and case-sensitive. CourseLink and Instructor are empty when
// the source document omits them.
type Course struct {
	Title      string   `json:"title"`
	CourseLink string   `json:"course_link,omitempty"`
	Instructor string   `json:"instructor,omitempty"`
	Lessons    []Lesson `json:"lessons"`
}

// CourseChunk is one embeddable span of course text.
//
// ChunkIndex is zero-based, unique per course, and monotonically assigned
// at ingestion; together with CourseTitle it forms the stable chunk ID in
// the content index. LessonNumber is nil for text outside any lesson.
type CourseChunk struct {
	Content      string `json:"content"`
	CourseTitle  string `json:"course_title"`
	LessonNumber *int   `json:"lesson_number,omitempty"`
	ChunkIndex   int    `json:"chunk_index"`
}

// Source is a citation record surfaced alongside a generated answer.
//
// Text mirrors the result header shown to the model (without brackets);
// Link is empty when no lesson or course link could be resolved.
type Source struct {
	Text string `json:"text"`
	Link string `json:"link,omitempty"`
}

// Exchange is one question/answer pair in a session's history.
type Exchange struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// LessonInfo is the deserialized per-lesson view returned by course
// outline lookups.
type LessonInfo struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Link   string `json:"link,omitempty"`
}

// CourseInfo is the deserialized catalog entry for one course.
type CourseInfo struct {
	Title      string       `json:"title"`
	Link       string       `json:"link,omitempty"`
	Instructor string       `json:"instructor,omitempty"`
	Lessons    []LessonInfo `json:"lessons"`
}
