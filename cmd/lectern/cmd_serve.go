// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/lectern-ai/lectern/services/rag"
	"github.com/lectern-ai/lectern/services/rag/ingest"
)

// serveDebug holds the --debug flag value for the serve command.
var serveDebug bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the question answering server",
	Long: `Starts the HTTP server. Course documents found in the configured docs
folder are ingested on startup (already-known course titles are skipped),
and the folder is watched for new documents while serving.`,
	RunE: runServeCommand,
}

func init() {
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug mode")
}

func runServeCommand(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if serveDebug {
		gin.SetMode(gin.DebugMode)
		slog.SetLogLoggerLevel(slog.LevelDebug)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	sys, closeStore, err := buildSystem(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load whatever is already in the docs folder. A missing folder is
	// not fatal; the server still answers from previously ingested data.
	if _, statErr := os.Stat(cfg.Ingest.DocsDir); statErr == nil {
		courses, chunks, ingestErr := sys.AddCourseFolder(ctx, cfg.Ingest.DocsDir, false)
		if ingestErr != nil {
			closeStore()
			return fmt.Errorf("startup ingestion: %w", ingestErr)
		}
		slog.Info("Startup ingestion complete",
			slog.String("dir", cfg.Ingest.DocsDir),
			slog.Int("courses_added", courses),
			slog.Int("chunks_added", chunks),
		)
	} else {
		slog.Warn("Docs folder not found, skipping startup ingestion",
			slog.String("dir", cfg.Ingest.DocsDir),
		)
	}

	if cfg.Ingest.Watch {
		watcher := ingest.NewWatcher(cfg.Ingest.DocsDir, func(ctx context.Context, path string) error {
			course, chunks, err := sys.AddCourseDocument(ctx, path)
			if err != nil {
				return err
			}
			slog.Info("Ingested new course document",
				slog.String("path", path),
				slog.String("course", course.Title),
				slog.Int("chunks", chunks),
			)
			return nil
		}, slog.Default())
		go func() {
			if err := watcher.Run(ctx); err != nil {
				slog.Warn("Docs folder watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}

	handlers := rag.NewHandlers(sys, slog.Default())

	router := gin.New()
	router.Use(gin.Recovery())
	if serveDebug {
		router.Use(gin.Logger())
	}
	rag.RegisterRoutes(router, handlers)

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("Shutting down lectern server")
		cancel()
		closeStore()
		os.Exit(0)
	}()

	slog.Info("Starting lectern server", slog.String("address", cfg.Server.Addr))
	if err := router.Run(cfg.Server.Addr); err != nil {
		closeStore()
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
