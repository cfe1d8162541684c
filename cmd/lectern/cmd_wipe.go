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

	"github.com/spf13/cobra"
)

// wipeForce holds the --force flag value for the wipe command.
var wipeForce bool

var wipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Delete all ingested course data",
	Long: `Removes every course catalog entry and content chunk from the vector
store. Requires --force; there is no undo.`,
	RunE: runWipeCommand,
}

func init() {
	wipeCmd.Flags().BoolVar(&wipeForce, "force", false, "Confirm deletion of all data")
}

func runWipeCommand(_ *cobra.Command, _ []string) error {
	if !wipeForce {
		return fmt.Errorf("refusing to wipe without --force")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sys, closeStore, err := buildSystem(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := sys.ClearAllData(context.Background()); err != nil {
		return fmt.Errorf("wiping store: %w", err)
	}
	fmt.Println("All course data deleted.")
	return nil
}
