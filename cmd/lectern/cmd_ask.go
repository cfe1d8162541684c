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
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a one-shot question about the ingested courses",
	Long: `Answers a single question in-process against the local vector store,
without starting the HTTP server. The question gets no session history.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAskCommand,
}

func runAskCommand(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sys, closeStore, err := buildSystem(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	question := strings.Join(args, " ")
	fmt.Printf("Asking: %s\n", question)
	fmt.Println("---")

	answer, sources, err := sys.Query(context.Background(), question, "")
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	fmt.Printf("\nAnswer:\n%s\n", answer)
	if len(sources) > 0 {
		fmt.Println("\nSources Used:")
		for i, source := range sources {
			if source.Link != "" {
				fmt.Printf("%d. %s (%s)\n", i+1, source.Text, source.Link)
			} else {
				fmt.Printf("%d. %s\n", i+1, source.Text)
			}
		}
	} else {
		fmt.Println("\n(No course sources were used for this answer)")
	}
	fmt.Println("\n---")
	return nil
}
