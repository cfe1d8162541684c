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
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lectern-ai/lectern/services/rag/datatypes"
)

// ErrorResponse is the JSON error envelope returned by all handlers.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// QueryRequest is the body for POST /api/query.
//
// SessionID is optional; when empty a new session is created and its ID
// returned so the client can thread follow-up questions.
type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// QueryResponse is the response for POST /api/query.
type QueryResponse struct {
	Answer    string             `json:"answer"`
	Sources   []datatypes.Source `json:"sources"`
	SessionID string             `json:"session_id"`
}

// ClearSessionRequest is the body for POST /api/session/clear.
type ClearSessionRequest struct {
	SessionID string `json:"session_id"`
}

// Handlers holds the HTTP handlers for the question-answering service.
//
// queryMu serializes calls to System.Query: the tool registry accumulates
// attribution sources between the model round trip and the reset, so
// concurrent queries would cross-contaminate each other's citations.
type Handlers struct {
	system  *System
	queryMu sync.Mutex
	logger  *slog.Logger
}

// NewHandlers creates the handler set for a wired System.
func NewHandlers(system *System, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{system: system, logger: logger}
}

// HandleQuery handles POST /api/query.
//
// Description:
//
//	Answers one question against the loaded course corpus. When the
//	request carries no session_id a fresh session is created, and the
//	exchange is recorded into it so follow-ups see the history.
//
// Request Body:
//
//	QueryRequest (query required, session_id optional)
//
// Response:
//
//	200 OK: QueryResponse
//	400 Bad Request: Missing or empty query
//	500 Internal Server Error: Model service failure
//
// Thread Safety: This method is safe for concurrent use. Queries are
// serialized internally.
func (h *Handlers) HandleQuery(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleQuery")

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}
	if req.Query == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "query is required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = h.system.Sessions().NewSession()
	}

	h.queryMu.Lock()
	answer, sources, err := h.system.Query(c.Request.Context(), req.Query, sessionID)
	h.queryMu.Unlock()
	if err != nil {
		logger.Error("query failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "query failed: " + err.Error(),
			Code:  "QUERY_FAILED",
		})
		return
	}

	if sources == nil {
		sources = []datatypes.Source{}
	}

	logger.Info("query answered",
		slog.String("session_id", sessionID),
		slog.Int("sources", len(sources)),
	)

	c.JSON(http.StatusOK, QueryResponse{
		Answer:    answer,
		Sources:   sources,
		SessionID: sessionID,
	})
}

// HandleCourses handles GET /api/courses.
//
// Description:
//
//	Returns corpus statistics: the number of loaded courses and their
//	titles.
//
// Response:
//
//	200 OK: Analytics
//	500 Internal Server Error: Store read failure
//
// Thread Safety: This method is safe for concurrent use. Read-only
// access to the store.
func (h *Handlers) HandleCourses(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleCourses")

	analytics, err := h.system.CourseAnalytics(c.Request.Context())
	if err != nil {
		logger.Error("analytics failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to read course analytics: " + err.Error(),
			Code:  "ANALYTICS_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, analytics)
}

// HandleClearSession handles POST /api/session/clear.
//
// Description:
//
//	Drops the conversation history for a session. The session ID stays
//	usable; the next exchange starts a fresh history.
//
// Request Body:
//
//	ClearSessionRequest (session_id required)
//
// Response:
//
//	200 OK: {"cleared": true}
//	400 Bad Request: Missing session_id
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleClearSession(c *gin.Context) {
	var req ClearSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "session_id is required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}

	h.system.Sessions().ClearSession(req.SessionID)
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// getOrCreateRequestID returns the inbound X-Request-ID header, minting a
// new one when the client sent none. The ID is echoed on the response so
// callers can correlate logs.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
