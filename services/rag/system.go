// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rag

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/lectern-ai/lectern/services/rag/datatypes"
	"github.com/lectern-ai/lectern/services/rag/ingest"
	"github.com/lectern-ai/lectern/services/rag/store"
	"github.com/lectern-ai/lectern/services/rag/tools"
)

var systemTracer = otel.Tracer("rag.system")

// System is the top-level question-answering pipeline: vector store,
// retrieval tools, generation, and session state wired together.
//
// # Thread Safety
//
// Query is NOT safe for concurrent use: the tool source lifecycle assumes
// one question flows through execute-collect-reset at a time. The HTTP
// surface serializes queries; see the handler.
type System struct {
	store     *store.VectorStore
	generator *Generator
	registry  *tools.Registry
	sessions  *SessionManager
	processor *ingest.DocumentProcessor
	logger    *slog.Logger
}

// NewSystem wires the pipeline. The retrieval tools are registered here,
// search before outline, which fixes definition and attribution order.
func NewSystem(vs *store.VectorStore, generator *Generator, sessions *SessionManager, processor *ingest.DocumentProcessor, logger *slog.Logger) (*System, error) {
	if logger == nil {
		logger = slog.Default()
	}
	registry := tools.NewRegistry(logger)
	if err := registry.Register(tools.NewCourseSearchTool(vs, logger)); err != nil {
		return nil, fmt.Errorf("rag: register search tool: %w", err)
	}
	if err := registry.Register(tools.NewCourseOutlineTool(vs, logger)); err != nil {
		return nil, fmt.Errorf("rag: register outline tool: %w", err)
	}
	return &System{
		store:     vs,
		generator: generator,
		registry:  registry,
		sessions:  sessions,
		processor: processor,
		logger:    logger,
	}, nil
}

// Sessions exposes the session manager for the HTTP and CLI surfaces.
func (s *System) Sessions() *SessionManager {
	return s.sessions
}

// Query answers one question and returns the answer with its attribution
// sources. Sources are collected before reset, so each question's
// attribution reflects only its own retrievals.
func (s *System) Query(ctx context.Context, question, sessionID string) (string, []datatypes.Source, error) {
	ctx, span := systemTracer.Start(ctx, "System.Query")
	defer span.End()

	start := time.Now()
	history := ""
	if sessionID != "" {
		history = s.sessions.History(sessionID)
	}

	prompt := fmt.Sprintf("Answer this question about course materials: %s", question)
	answer, err := s.generator.GenerateResponse(ctx, prompt, history, s.registry.Definitions(), s.registry)

	sources := s.registry.LastSources()
	s.registry.ResetSources()
	observeQuery(time.Since(start), err == nil, len(sources))

	if err != nil {
		span.RecordError(err)
		return "", nil, err
	}

	if sessionID != "" {
		s.sessions.AddExchange(sessionID, question, answer)
	}
	s.logger.Info("rag: query answered",
		slog.String("session_id", sessionID),
		slog.Int("sources", len(sources)),
		slog.Duration("duration", time.Since(start)),
	)
	return answer, sources, nil
}

// AddCourseDocument ingests one transcript file: parse, catalog entry,
// content chunks. Returns the parsed course and its chunk count.
func (s *System) AddCourseDocument(ctx context.Context, path string) (*datatypes.Course, int, error) {
	course, chunks, err := s.processor.ProcessCourseDocument(path)
	if err != nil {
		return nil, 0, err
	}
	if err := s.store.AddCourseMetadata(ctx, course); err != nil {
		return nil, 0, err
	}
	if err := s.store.AddCourseContent(ctx, chunks); err != nil {
		return nil, 0, err
	}
	coursesIngested.Inc()
	chunksIngested.Add(float64(len(chunks)))
	return course, len(chunks), nil
}

// AddCourseFolder ingests every supported transcript in dir, skipping
// courses whose exact title is already cataloged. clearExisting wipes both
// collections first. Returns courses and chunks added.
func (s *System) AddCourseFolder(ctx context.Context, dir string, clearExisting bool) (int, int, error) {
	if clearExisting {
		s.logger.Info("rag: clearing existing data for rebuild")
		if err := s.store.ClearAllData(ctx); err != nil {
			return 0, 0, err
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("rag: read docs folder %q: %w", dir, err)
	}

	existingTitles, err := s.store.ExistingCourseTitles(ctx)
	if err != nil {
		return 0, 0, err
	}
	existing := make(map[string]bool, len(existingTitles))
	for _, title := range existingTitles {
		existing[title] = true
	}

	coursesAdded, chunksAdded := 0, 0
	for _, entry := range entries {
		if entry.IsDir() || !ingest.IsSupportedFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		course, chunks, err := s.processor.ProcessCourseDocument(path)
		if err != nil {
			s.logger.Warn("rag: skipping unreadable document",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		if existing[course.Title] {
			s.logger.Debug("rag: course already ingested",
				slog.String("course_title", course.Title),
			)
			continue
		}

		if err := s.store.AddCourseMetadata(ctx, course); err != nil {
			return coursesAdded, chunksAdded, err
		}
		if err := s.store.AddCourseContent(ctx, chunks); err != nil {
			return coursesAdded, chunksAdded, err
		}
		existing[course.Title] = true
		coursesAdded++
		chunksAdded += len(chunks)
		coursesIngested.Inc()
		chunksIngested.Add(float64(len(chunks)))
	}

	s.logger.Info("rag: folder ingested",
		slog.String("dir", dir),
		slog.Int("courses_added", coursesAdded),
		slog.Int("chunks_added", chunksAdded),
	)
	return coursesAdded, chunksAdded, nil
}

// Analytics summarizes the loaded corpus for the courses endpoint.
type Analytics struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

// CourseAnalytics returns the corpus summary.
func (s *System) CourseAnalytics(ctx context.Context) (*Analytics, error) {
	titles, err := s.store.ExistingCourseTitles(ctx)
	if err != nil {
		return nil, err
	}
	return &Analytics{
		TotalCourses: len(titles),
		CourseTitles: titles,
	}, nil
}

// ClearAllData wipes the vector store. Destructive; used by the wipe
// command and rebuild flows.
func (s *System) ClearAllData(ctx context.Context) error {
	return s.store.ClearAllData(ctx)
}
