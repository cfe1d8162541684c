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
	"errors"
	"strings"
	"testing"

	"github.com/lectern-ai/lectern/services/rag/datatypes"
)

// =============================================================================
// Helpers
// =============================================================================

// openTestDB opens an in-memory BadgerDB for testing.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(InMemoryConfig())
	if err != nil {
		t.Fatalf("openTestDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// wordEmbedder is a deterministic bag-of-words embedder over a fixed
// vocabulary. Texts sharing vocabulary words produce nearby vectors, so
// similarity ordering in tests reflects genuine cosine behavior without
// a live embedding service.
type wordEmbedder struct {
	vocab []string
}

func newWordEmbedder() *wordEmbedder {
	return &wordEmbedder{
		vocab: []string{
			"mcp", "model", "context", "protocol",
			"chroma", "vector", "embedding",
			"python", "computer", "retrieval", "anthropic",
			"lesson", "introduction", "advanced",
		},
	}
}

func (e *wordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	tokens := strings.Fields(strings.ToLower(text))
	vec := make([]float32, len(e.vocab)+1)
	vec[len(e.vocab)] = 0.1 // bias dim so no vector is zero
	for _, tok := range tokens {
		tok = strings.Trim(tok, ".,:;!?'\"()")
		for i, word := range e.vocab {
			if tok == word {
				vec[i]++
			}
		}
	}
	return vec, nil
}

func (e *wordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// failEmbedder always errors, for exercising failure paths.
type failEmbedder struct{}

func (failEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding service unavailable")
}

func (failEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding service unavailable")
}

func intPtr(n int) *int { return &n }

// =============================================================================
// Collection Tests
// =============================================================================

func TestCollection_QueryOrdersBySimilarity(t *testing.T) {
	db := openTestDB(t)
	col := NewCollection(db, newWordEmbedder(), "test", nil)
	ctx := context.Background()

	err := col.Add(ctx,
		[]string{"a", "b", "c"},
		[]string{
			"mcp model context protocol",
			"python computer vision",
			"chroma vector embedding",
		},
		[]map[string]any{nil, nil, nil},
	)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	docs, _, dists, err := col.Query(ctx, "mcp protocol", 3, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 results, got %d", len(docs))
	}
	if !strings.Contains(docs[0], "mcp") {
		t.Errorf("nearest document should mention mcp, got %q", docs[0])
	}
	for i := 1; i < len(dists); i++ {
		if dists[i] < dists[i-1] {
			t.Errorf("distances not ascending: %v", dists)
		}
	}
}

func TestCollection_QueryRespectsTopK(t *testing.T) {
	db := openTestDB(t)
	col := NewCollection(db, newWordEmbedder(), "test", nil)
	ctx := context.Background()

	err := col.Add(ctx,
		[]string{"a", "b", "c"},
		[]string{"mcp lesson", "python lesson", "chroma lesson"},
		[]map[string]any{nil, nil, nil},
	)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	docs, _, _, err := col.Query(ctx, "lesson", 2, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("expected 2 results with topK=2, got %d", len(docs))
	}
}

func TestCollection_QueryFilter(t *testing.T) {
	db := openTestDB(t)
	col := NewCollection(db, newWordEmbedder(), "test", nil)
	ctx := context.Background()

	err := col.Add(ctx,
		[]string{"a", "b"},
		[]string{"mcp lesson one", "mcp lesson two"},
		[]map[string]any{
			{"course_title": "Course A"},
			{"course_title": "Course B"},
		},
	)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	docs, metas, _, err := col.Query(ctx, "mcp", 5, func(md map[string]any) bool {
		return md["course_title"] == "Course B"
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 filtered result, got %d", len(docs))
	}
	if metas[0]["course_title"] != "Course B" {
		t.Errorf("filter leaked wrong course: %v", metas[0])
	}
}

func TestCollection_AddLengthMismatch(t *testing.T) {
	db := openTestDB(t)
	col := NewCollection(db, newWordEmbedder(), "test", nil)

	err := col.Add(context.Background(), []string{"a"}, []string{"x", "y"}, []map[string]any{nil})
	if err == nil {
		t.Fatal("expected error on mismatched slice lengths")
	}
}

func TestCollection_AddOverwritesExistingID(t *testing.T) {
	db := openTestDB(t)
	col := NewCollection(db, newWordEmbedder(), "test", nil)
	ctx := context.Background()

	if err := col.Add(ctx, []string{"a"}, []string{"first version"}, []map[string]any{nil}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := col.Add(ctx, []string{"a"}, []string{"second version"}, []map[string]any{nil}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	count, err := col.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 record after overwrite, got %d", count)
	}

	doc, _, found, err := col.Get(ctx, "a")
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if doc != "second version" {
		t.Errorf("expected overwritten document, got %q", doc)
	}
}

func TestCollection_GetMissing(t *testing.T) {
	db := openTestDB(t)
	col := NewCollection(db, newWordEmbedder(), "test", nil)

	_, _, found, err := col.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Error("expected found=false for missing id")
	}
}

func TestCollection_ClearIsScopedToCollection(t *testing.T) {
	db := openTestDB(t)
	embedder := newWordEmbedder()
	colA := NewCollection(db, embedder, "aaa", nil)
	colB := NewCollection(db, embedder, "bbb", nil)
	ctx := context.Background()

	if err := colA.Add(ctx, []string{"1"}, []string{"mcp"}, []map[string]any{nil}); err != nil {
		t.Fatalf("Add A: %v", err)
	}
	if err := colB.Add(ctx, []string{"1"}, []string{"python"}, []map[string]any{nil}); err != nil {
		t.Fatalf("Add B: %v", err)
	}

	if err := colA.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	countA, _ := colA.Count(ctx)
	countB, _ := colB.Count(ctx)
	if countA != 0 {
		t.Errorf("collection aaa should be empty, has %d", countA)
	}
	if countB != 1 {
		t.Errorf("collection bbb should be untouched, has %d", countB)
	}
}

// =============================================================================
// VectorStore Tests
// =============================================================================

// courseFixture builds a two-lesson course for store tests.
func courseFixture(title, link, instructor string) *datatypes.Course {
	return &datatypes.Course{
		Title:      title,
		CourseLink: link,
		Instructor: instructor,
		Lessons: []datatypes.Lesson{
			{LessonNumber: 1, Title: "Getting Started", LessonLink: link + "/lesson1"},
			{LessonNumber: 2, Title: "Going Deeper", LessonLink: link + "/lesson2"},
		},
	}
}

// seedStore loads two courses with catalog entries and content chunks.
func seedStore(t *testing.T) *VectorStore {
	t.Helper()
	db := openTestDB(t)
	vs := NewVectorStore(db, newWordEmbedder(), 5, nil)
	ctx := context.Background()

	courseA := courseFixture("Introduction to MCP", "https://example.com/mcp", "Jane Doe")
	courseB := courseFixture("Advanced Python Computer Vision", "https://example.com/cv", "John Roe")

	if err := vs.AddCourseMetadata(ctx, courseA); err != nil {
		t.Fatalf("AddCourseMetadata A: %v", err)
	}
	if err := vs.AddCourseMetadata(ctx, courseB); err != nil {
		t.Fatalf("AddCourseMetadata B: %v", err)
	}

	chunks := []datatypes.CourseChunk{
		{Content: "mcp model context protocol basics", CourseTitle: courseA.Title, LessonNumber: intPtr(1), ChunkIndex: 0},
		{Content: "mcp advanced protocol patterns", CourseTitle: courseA.Title, LessonNumber: intPtr(2), ChunkIndex: 1},
		{Content: "python computer vision introduction", CourseTitle: courseB.Title, LessonNumber: intPtr(1), ChunkIndex: 0},
	}
	if err := vs.AddCourseContent(ctx, chunks); err != nil {
		t.Fatalf("AddCourseContent: %v", err)
	}
	return vs
}

func TestVectorStore_SearchWithoutFilters(t *testing.T) {
	vs := seedStore(t)

	results := vs.Search(context.Background(), "mcp protocol", "", nil, 0)
	if results.Error != "" {
		t.Fatalf("unexpected error: %s", results.Error)
	}
	if results.IsEmpty() {
		t.Fatal("expected results")
	}
	if !strings.Contains(results.Documents[0], "mcp") {
		t.Errorf("nearest document should mention mcp, got %q", results.Documents[0])
	}
}

func TestVectorStore_SearchResolvesFuzzyCourseName(t *testing.T) {
	vs := seedStore(t)

	// "MCP" is a partial reference; the catalog entry is "Introduction to MCP".
	results := vs.Search(context.Background(), "protocol", "MCP", nil, 0)
	if results.Error != "" {
		t.Fatalf("unexpected error: %s", results.Error)
	}
	for _, md := range results.Metadata {
		if md["course_title"] != "Introduction to MCP" {
			t.Errorf("result from wrong course: %v", md["course_title"])
		}
	}
	if results.IsEmpty() {
		t.Error("expected results scoped to the resolved course")
	}
}

func TestVectorStore_SearchLessonFilter(t *testing.T) {
	vs := seedStore(t)

	results := vs.Search(context.Background(), "mcp", "MCP", intPtr(2), 0)
	if results.Error != "" {
		t.Fatalf("unexpected error: %s", results.Error)
	}
	if len(results.Documents) != 1 {
		t.Fatalf("expected 1 result for lesson 2, got %d", len(results.Documents))
	}
	if n, ok := metaInt(results.Metadata[0], "lesson_number"); !ok || n != 2 {
		t.Errorf("expected lesson_number 2, got %v", results.Metadata[0]["lesson_number"])
	}
}

func TestVectorStore_SearchNoCourseMatchOnEmptyCatalog(t *testing.T) {
	db := openTestDB(t)
	vs := NewVectorStore(db, newWordEmbedder(), 5, nil)

	results := vs.Search(context.Background(), "anything", "Nonexistent Course", nil, 0)
	if results.Error != "No course found matching 'Nonexistent Course'" {
		t.Errorf("unexpected error message: %q", results.Error)
	}
	if !results.IsEmpty() {
		t.Error("expected empty results")
	}
}

func TestVectorStore_SearchErrorOnEmbedFailure(t *testing.T) {
	db := openTestDB(t)
	vs := NewVectorStore(db, failEmbedder{}, 5, nil)

	results := vs.Search(context.Background(), "anything", "", nil, 0)
	if !strings.HasPrefix(results.Error, "Search error: ") {
		t.Errorf("expected Search error prefix, got %q", results.Error)
	}
}

func TestVectorStore_ResolveCourseName(t *testing.T) {
	vs := seedStore(t)
	ctx := context.Background()

	title, err := vs.ResolveCourseName(ctx, "python computer vision")
	if err != nil {
		t.Fatalf("ResolveCourseName: %v", err)
	}
	if title != "Advanced Python Computer Vision" {
		t.Errorf("resolved to %q", title)
	}

	title, err = vs.ResolveCourseName(ctx, "MCP")
	if err != nil {
		t.Fatalf("ResolveCourseName: %v", err)
	}
	if title != "Introduction to MCP" {
		t.Errorf("resolved to %q", title)
	}
}

func TestVectorStore_GetCourseInfo(t *testing.T) {
	vs := seedStore(t)

	info, err := vs.GetCourseInfo(context.Background(), "MCP")
	if err != nil {
		t.Fatalf("GetCourseInfo: %v", err)
	}
	if info == nil {
		t.Fatal("expected course info")
	}
	if info.Title != "Introduction to MCP" {
		t.Errorf("title = %q", info.Title)
	}
	if info.Instructor != "Jane Doe" {
		t.Errorf("instructor = %q", info.Instructor)
	}
	if len(info.Lessons) != 2 {
		t.Fatalf("expected 2 lessons, got %d", len(info.Lessons))
	}
	if info.Lessons[0].Number != 1 || info.Lessons[0].Title != "Getting Started" {
		t.Errorf("lesson 0 = %+v", info.Lessons[0])
	}
}

func TestVectorStore_GetCourseInfoEmptyCatalog(t *testing.T) {
	db := openTestDB(t)
	vs := NewVectorStore(db, newWordEmbedder(), 5, nil)

	info, err := vs.GetCourseInfo(context.Background(), "anything")
	if err != nil {
		t.Fatalf("GetCourseInfo: %v", err)
	}
	if info != nil {
		t.Errorf("expected nil info, got %+v", info)
	}
}

func TestVectorStore_GetLessonLink(t *testing.T) {
	vs := seedStore(t)
	ctx := context.Background()

	link, err := vs.GetLessonLink(ctx, "Introduction to MCP", 1)
	if err != nil {
		t.Fatalf("GetLessonLink: %v", err)
	}
	if link != "https://example.com/mcp/lesson1" {
		t.Errorf("link = %q", link)
	}

	link, err = vs.GetLessonLink(ctx, "Introduction to MCP", 99)
	if err != nil {
		t.Fatalf("GetLessonLink: %v", err)
	}
	if link != "" {
		t.Errorf("expected empty link for unknown lesson, got %q", link)
	}
}

func TestVectorStore_ExistingCourseTitlesAndCounts(t *testing.T) {
	vs := seedStore(t)
	ctx := context.Background()

	titles, err := vs.ExistingCourseTitles(ctx)
	if err != nil {
		t.Fatalf("ExistingCourseTitles: %v", err)
	}
	if len(titles) != 2 {
		t.Errorf("expected 2 titles, got %v", titles)
	}

	courses, err := vs.CourseCount(ctx)
	if err != nil || courses != 2 {
		t.Errorf("CourseCount = %d, %v", courses, err)
	}
	chunks, err := vs.ChunkCount(ctx)
	if err != nil || chunks != 3 {
		t.Errorf("ChunkCount = %d, %v", chunks, err)
	}
}

func TestVectorStore_ReingestOverwritesChunks(t *testing.T) {
	vs := seedStore(t)
	ctx := context.Background()

	// Re-adding the same chunks must not create duplicates.
	chunks := []datatypes.CourseChunk{
		{Content: "mcp model context protocol basics", CourseTitle: "Introduction to MCP", LessonNumber: intPtr(1), ChunkIndex: 0},
		{Content: "mcp advanced protocol patterns", CourseTitle: "Introduction to MCP", LessonNumber: intPtr(2), ChunkIndex: 1},
	}
	if err := vs.AddCourseContent(ctx, chunks); err != nil {
		t.Fatalf("AddCourseContent: %v", err)
	}

	count, err := vs.ChunkCount(ctx)
	if err != nil {
		t.Fatalf("ChunkCount: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 chunks after re-ingest, got %d", count)
	}
}

func TestVectorStore_ClearAllData(t *testing.T) {
	vs := seedStore(t)
	ctx := context.Background()

	if err := vs.ClearAllData(ctx); err != nil {
		t.Fatalf("ClearAllData: %v", err)
	}

	courses, _ := vs.CourseCount(ctx)
	chunks, _ := vs.ChunkCount(ctx)
	if courses != 0 || chunks != 0 {
		t.Errorf("expected empty store, got courses=%d chunks=%d", courses, chunks)
	}
}
