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
	"os"

	"github.com/spf13/cobra"
)

// ingestClear holds the --clear flag value for the ingest command.
var ingestClear bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Ingest course transcripts from a file or folder",
	Long: `Parses course transcript documents and loads them into the vector
store. With a folder argument, every supported file (.txt, .pdf, .docx) is
processed and courses whose titles are already in the store are skipped.
Defaults to the configured docs folder when no path is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngestCommand,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestClear, "clear", false, "Wipe existing data before ingesting")
}

func runIngestCommand(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path := cfg.Ingest.DocsDir
	if len(args) == 1 {
		path = args[0]
	}

	sys, closeStore, err := buildSystem(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := context.Background()

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	if info.IsDir() {
		courses, chunks, err := sys.AddCourseFolder(ctx, path, ingestClear)
		if err != nil {
			return fmt.Errorf("ingesting folder %s: %w", path, err)
		}
		fmt.Printf("Ingested %d course(s), %d chunk(s) from %s\n", courses, chunks, path)
		return nil
	}

	if ingestClear {
		if err := sys.ClearAllData(ctx); err != nil {
			return fmt.Errorf("clearing existing data: %w", err)
		}
	}
	course, chunks, err := sys.AddCourseDocument(ctx, path)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", path, err)
	}
	fmt.Printf("Ingested course %q with %d chunk(s)\n", course.Title, chunks)
	return nil
}
