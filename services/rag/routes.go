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
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes registers all question-answering routes with the router.
//
// Description:
//
//	Registers the /api/* endpoints plus health and metrics on the given
//	Gin engine. The engine should already have any required middleware
//	applied.
//
// Inputs:
//
//	router - Gin engine
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /api/query - Answer a question about course materials
//	GET  /api/courses - Course corpus statistics
//	POST /api/session/clear - Drop a session's conversation history
//	GET  /health - Health check
//	GET  /metrics - Prometheus metrics
//
// Example:
//
//	system, _ := rag.NewSystem(store, generator, sessions, processor, logger)
//	handlers := rag.NewHandlers(system, logger)
//
//	router := gin.New()
//	rag.RegisterRoutes(router, handlers)
func RegisterRoutes(router *gin.Engine, handlers *Handlers) {
	api := router.Group("/api")
	{
		// Question answering
		api.POST("/query", handlers.HandleQuery)

		// Corpus statistics
		api.GET("/courses", handlers.HandleCourses)

		// Session management
		api.POST("/session/clear", handlers.HandleClearSession)
	}

	// Health and observability
	router.GET("/health", handlers.HandleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
