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
	"fmt"

	dgbadger "github.com/dgraph-io/badger/v4"
)

// DBConfig holds the options needed to open the embedded BadgerDB instance
// that backs all collections.
type DBConfig struct {
	// Path is the on-disk directory for the database. Ignored when InMemory
	// is true.
	Path string

	// InMemory opens a purely in-memory database. Used by tests and by
	// deployments that do not want persistence.
	InMemory bool
}

// DefaultConfig returns an on-disk configuration rooted at path.
func DefaultConfig(path string) DBConfig {
	return DBConfig{Path: path}
}

// InMemoryConfig returns a configuration for a non-persistent database.
func InMemoryConfig() DBConfig {
	return DBConfig{InMemory: true}
}

// DB is a thin wrapper around a BadgerDB instance that adds context checks
// around transactions. The DB is expected to be a process-global singleton
// opened at startup and closed on shutdown.
//
// Thread Safety: Safe for concurrent use. BadgerDB transactions are
// per-goroutine.
type DB struct {
	inner *dgbadger.DB
}

// OpenDB opens the BadgerDB instance described by cfg.
//
// BadgerDB's internal logger is suppressed; diagnostics belong to the
// caller's slog logger, not Badger's printf-style output.
func OpenDB(cfg DBConfig) (*DB, error) {
	var opts dgbadger.Options
	if cfg.InMemory {
		opts = dgbadger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = dgbadger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLogger(nil)

	inner, err := dgbadger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger at %q: %w", cfg.Path, err)
	}
	return &DB{inner: inner}, nil
}

// Close releases the underlying BadgerDB instance.
func (d *DB) Close() error {
	return d.inner.Close()
}

// WithTxn runs fn inside a read-write transaction. The context is checked
// before the transaction starts; BadgerDB itself does not observe contexts.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.inner.Update(fn)
}

// WithReadTxn runs fn inside a read-only transaction.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.inner.View(fn)
}

// DropPrefix deletes every key under the given prefix. Used by collection
// Clear; the operation is atomic from the reader's perspective.
func (d *DB) DropPrefix(ctx context.Context, prefix []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.inner.DropPrefix(prefix)
}
