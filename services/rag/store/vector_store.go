// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lectern-ai/lectern/services/rag/datatypes"
)

// Collection names. The catalog holds one entry per course with the course
// title as the embedded document, so a fuzzy course reference resolves by
// nearest-title search. The content collection holds one entry per chunk.
const (
	catalogCollection = "course_catalog"
	contentCollection = "course_content"
)

// VectorStore is the semantic index over course material.
//
// # Description
//
// Maintains two collections over one embedded BadgerDB: course_catalog for
// resolving fuzzy course references to exact titles, and course_content for
// retrieving transcript chunks. Search composes the two: resolve the course
// reference first (if any), then run a filtered similarity query over
// content.
//
// # Thread Safety
//
// Safe for concurrent use.
type VectorStore struct {
	catalog    *Collection
	content    *Collection
	maxResults int
	logger     *slog.Logger
}

// NewVectorStore creates the store over an opened DB and embedder.
// maxResults is the default result cap for Search; values < 1 fall back to 5.
func NewVectorStore(db *DB, embedder Embedder, maxResults int, logger *slog.Logger) *VectorStore {
	if maxResults < 1 {
		maxResults = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VectorStore{
		catalog:    NewCollection(db, embedder, catalogCollection, logger),
		content:    NewCollection(db, embedder, contentCollection, logger),
		maxResults: maxResults,
		logger:     logger,
	}
}

// Search runs a similarity query over course content, optionally scoped to
// one course and one lesson.
//
// # Description
//
// All failure modes are reported in the result's Error field rather than a
// Go error, so tool callers can hand the message straight back to the model
// as a tool result:
//
//   - courseName given but nothing resolves: "No course found matching '<name>'".
//   - the underlying query fails: "Search error: <detail>".
//
// # Inputs
//
//   - ctx: Context for embedding and storage calls.
//   - query: The text to search for.
//   - courseName: Optional fuzzy course reference. Empty means all courses.
//   - lessonNumber: Optional lesson scope. Nil means all lessons.
//   - limit: Result cap. Values < 1 use the store default.
//
// # Outputs
//
//   - datatypes.SearchResults: Ranked matches, or an empty result carrying
//     an Error message.
func (s *VectorStore) Search(ctx context.Context, query, courseName string, lessonNumber *int, limit int) datatypes.SearchResults {
	courseTitle := ""
	if courseName != "" {
		resolved, err := s.ResolveCourseName(ctx, courseName)
		if err != nil {
			s.logger.Warn("store: course resolution failed",
				slog.String("course_name", courseName),
				slog.String("error", err.Error()),
			)
		}
		if resolved == "" {
			return datatypes.EmptyResults(fmt.Sprintf("No course found matching '%s'", courseName))
		}
		courseTitle = resolved
	}

	if limit < 1 {
		limit = s.maxResults
	}

	documents, metadatas, distances, err := s.content.Query(ctx, query, limit, buildFilter(courseTitle, lessonNumber))
	if err != nil {
		return datatypes.EmptyResults(fmt.Sprintf("Search error: %s", err))
	}

	return datatypes.SearchResults{
		Documents: documents,
		Metadata:  metadatas,
		Distances: distances,
	}
}

// ResolveCourseName resolves a fuzzy course reference to an exact catalog
// title by nearest-title similarity.
//
// The single nearest neighbor wins regardless of distance, so "MCP" or a
// misspelled title still resolves to the closest real course. With no
// distance cutoff, an unrelated reference resolves to some course too; the
// content query after it simply returns weak matches. Returns "" when the
// catalog is empty.
func (s *VectorStore) ResolveCourseName(ctx context.Context, courseName string) (string, error) {
	_, metadatas, _, err := s.catalog.Query(ctx, courseName, 1, nil)
	if err != nil {
		return "", fmt.Errorf("store: resolve course %q: %w", courseName, err)
	}
	if len(metadatas) == 0 {
		return "", nil
	}
	return metaString(metadatas[0], "title"), nil
}

// buildFilter constructs the metadata predicate for a content query.
// Both scopes present means both must match.
func buildFilter(courseTitle string, lessonNumber *int) Filter {
	if courseTitle == "" && lessonNumber == nil {
		return nil
	}
	return func(md map[string]any) bool {
		if courseTitle != "" && metaString(md, "course_title") != courseTitle {
			return false
		}
		if lessonNumber != nil {
			n, ok := metaInt(md, "lesson_number")
			if !ok || n != *lessonNumber {
				return false
			}
		}
		return true
	}
}

// lessonMeta is the serialized form of one lesson inside the catalog's
// lessons_json metadata field.
type lessonMeta struct {
	LessonNumber int    `json:"lesson_number"`
	LessonTitle  string `json:"lesson_title"`
	LessonLink   string `json:"lesson_link,omitempty"`
}

// AddCourseMetadata writes one catalog entry for the course. The course
// title is both the record id and the embedded document. Lesson details are
// carried as a JSON string in metadata so a later lookup can rebuild the
// outline without touching the content collection.
func (s *VectorStore) AddCourseMetadata(ctx context.Context, course *datatypes.Course) error {
	lessons := make([]lessonMeta, len(course.Lessons))
	for i, l := range course.Lessons {
		lessons[i] = lessonMeta{
			LessonNumber: l.LessonNumber,
			LessonTitle:  l.Title,
			LessonLink:   l.LessonLink,
		}
	}
	lessonsJSON, err := json.Marshal(lessons)
	if err != nil {
		return fmt.Errorf("store: encode lessons for %q: %w", course.Title, err)
	}

	metadata := map[string]any{
		"title":        course.Title,
		"instructor":   course.Instructor,
		"course_link":  course.CourseLink,
		"lessons_json": string(lessonsJSON),
		"lesson_count": len(course.Lessons),
	}

	return s.catalog.Add(ctx,
		[]string{course.Title},
		[]string{course.Title},
		[]map[string]any{metadata},
	)
}

// AddCourseContent writes one content record per chunk. Record ids are the
// course title with spaces replaced by underscores, suffixed with the chunk
// index, so re-ingesting a course overwrites its chunks in place.
func (s *VectorStore) AddCourseContent(ctx context.Context, chunks []datatypes.CourseChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	ids := make([]string, len(chunks))
	documents := make([]string, len(chunks))
	metadatas := make([]map[string]any, len(chunks))
	for i, chunk := range chunks {
		ids[i] = fmt.Sprintf("%s_%d", strings.ReplaceAll(chunk.CourseTitle, " ", "_"), chunk.ChunkIndex)
		documents[i] = chunk.Content
		md := map[string]any{
			"course_title": chunk.CourseTitle,
			"chunk_index":  chunk.ChunkIndex,
		}
		if chunk.LessonNumber != nil {
			md["lesson_number"] = *chunk.LessonNumber
		}
		metadatas[i] = md
	}

	return s.content.Add(ctx, ids, documents, metadatas)
}

// GetCourseInfo resolves a fuzzy course reference and returns the course's
// outline data from the catalog. Returns (nil, nil) when nothing resolves.
func (s *VectorStore) GetCourseInfo(ctx context.Context, courseName string) (*datatypes.CourseInfo, error) {
	title, err := s.ResolveCourseName(ctx, courseName)
	if err != nil {
		return nil, err
	}
	if title == "" {
		return nil, nil
	}

	_, metadata, found, err := s.catalog.Get(ctx, title)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return courseInfoFromMetadata(metadata)
}

// GetLessonLink returns the link for one lesson of an exact catalog title,
// or "" when the course or lesson is absent.
func (s *VectorStore) GetLessonLink(ctx context.Context, courseTitle string, lessonNumber int) (string, error) {
	_, metadata, found, err := s.catalog.Get(ctx, courseTitle)
	if err != nil || !found {
		return "", err
	}
	lessons, err := lessonsFromMetadata(metadata)
	if err != nil {
		return "", err
	}
	for _, l := range lessons {
		if l.LessonNumber == lessonNumber {
			return l.LessonLink, nil
		}
	}
	return "", nil
}

// ExistingCourseTitles returns the exact titles of every catalog entry.
func (s *VectorStore) ExistingCourseTitles(ctx context.Context) ([]string, error) {
	metadatas, err := s.catalog.All(ctx)
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(metadatas))
	for _, md := range metadatas {
		if title := metaString(md, "title"); title != "" {
			titles = append(titles, title)
		}
	}
	return titles, nil
}

// AllCoursesInfo returns outline data for every catalog entry, for course
// listings.
func (s *VectorStore) AllCoursesInfo(ctx context.Context) ([]datatypes.CourseInfo, error) {
	metadatas, err := s.catalog.All(ctx)
	if err != nil {
		return nil, err
	}
	infos := make([]datatypes.CourseInfo, 0, len(metadatas))
	for _, md := range metadatas {
		info, err := courseInfoFromMetadata(md)
		if err != nil {
			return nil, err
		}
		infos = append(infos, *info)
	}
	return infos, nil
}

// CourseCount returns the number of catalog entries.
func (s *VectorStore) CourseCount(ctx context.Context) (int, error) {
	return s.catalog.Count(ctx)
}

// ChunkCount returns the number of content records.
func (s *VectorStore) ChunkCount(ctx context.Context) (int, error) {
	return s.content.Count(ctx)
}

// ClearAllData removes every record from both collections.
func (s *VectorStore) ClearAllData(ctx context.Context) error {
	if err := s.catalog.Clear(ctx); err != nil {
		return err
	}
	return s.content.Clear(ctx)
}

// courseInfoFromMetadata rebuilds a CourseInfo from a catalog record's
// metadata.
func courseInfoFromMetadata(metadata map[string]any) (*datatypes.CourseInfo, error) {
	lessons, err := lessonsFromMetadata(metadata)
	if err != nil {
		return nil, err
	}
	info := &datatypes.CourseInfo{
		Title:      metaString(metadata, "title"),
		Link:       metaString(metadata, "course_link"),
		Instructor: metaString(metadata, "instructor"),
		Lessons:    make([]datatypes.LessonInfo, len(lessons)),
	}
	for i, l := range lessons {
		info.Lessons[i] = datatypes.LessonInfo{
			Number: l.LessonNumber,
			Title:  l.LessonTitle,
			Link:   l.LessonLink,
		}
	}
	return info, nil
}

// lessonsFromMetadata decodes the lessons_json metadata field.
func lessonsFromMetadata(metadata map[string]any) ([]lessonMeta, error) {
	raw := metaString(metadata, "lessons_json")
	if raw == "" {
		return nil, nil
	}
	var lessons []lessonMeta
	if err := json.Unmarshal([]byte(raw), &lessons); err != nil {
		return nil, fmt.Errorf("store: decode lessons_json: %w", err)
	}
	return lessons, nil
}

// metaString reads a string metadata value; absent or non-string returns "".
func metaString(metadata map[string]any, key string) string {
	if v, ok := metadata[key].(string); ok {
		return v
	}
	return ""
}

// metaInt reads an integer metadata value. Accepts int and float64; the
// JSON round trip through storage turns ints into float64.
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
