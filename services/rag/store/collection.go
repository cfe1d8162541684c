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
	"sort"

	dgbadger "github.com/dgraph-io/badger/v4"
)

// collectionKeyPrefix is prepended to collection names to form BadgerDB keys.
// Versioned (v1) to allow future record format changes without collision.
//
// Storage layout:
//
//	col/v1/{collection}/{id}  →  JSON-encoded record
const collectionKeyPrefix = "col/v1/"

// record is the stored form of one document in a collection.
//
// JSON encoding is deliberate: records carry map[string]any metadata, which
// gob cannot round-trip without per-type registration. The cost is that
// numeric metadata comes back as float64; callers read numbers through
// helpers that accept both int and float64.
type record struct {
	ID       string         `json:"id"`
	Document string         `json:"document"`
	Metadata map[string]any `json:"metadata"`
	Vector   []float32      `json:"vector"`
}

// Filter restricts which records a Query considers. A nil Filter matches
// everything. Metadata values come from a JSON round trip, so numbers are
// float64.
type Filter func(metadata map[string]any) bool

// Collection is a named set of documents with embedding vectors, persisted
// in BadgerDB and searched by brute-force cosine scan.
//
// # Description
//
// An ANN index (HNSW, external vector DB) earns its complexity at millions
// of documents. A course corpus is thousands of chunks; a linear scan over
// unit-normalized vectors answers a query in well under a millisecond and
// keeps the store embedded, with no network dependency.
//
// Vectors are unit-normalized at write time, so similarity at query time is
// a single dot product. Reported distances are cosine distances (1 - cosine
// similarity), ascending, nearest first.
//
// # Thread Safety
//
// Safe for concurrent use. BadgerDB transactions are per-goroutine.
type Collection struct {
	name     string
	db       *DB
	embedder Embedder
	logger   *slog.Logger
}

// NewCollection creates a handle on the named collection. Collections are
// implicit; a name that was never written to is an empty collection.
func NewCollection(db *DB, embedder Embedder, name string, logger *slog.Logger) *Collection {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collection{
		name:     name,
		db:       db,
		embedder: embedder,
		logger:   logger,
	}
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Add embeds and stores documents. ids, documents, and metadatas must be
// the same length; an existing id is overwritten.
//
// # Inputs
//
//   - ctx: Context for the embedding calls and the write transaction.
//   - ids: Stable identifiers, unique within the collection.
//   - documents: The text to embed and store.
//   - metadatas: Per-document metadata. Entries may be nil.
//
// # Outputs
//
//   - error: Non-nil on length mismatch, embedding failure, or write failure.
func (c *Collection) Add(ctx context.Context, ids []string, documents []string, metadatas []map[string]any) error {
	if len(ids) != len(documents) || len(ids) != len(metadatas) {
		return fmt.Errorf("store: add to %q: ids=%d documents=%d metadatas=%d must match",
			c.name, len(ids), len(documents), len(metadatas))
	}
	if len(ids) == 0 {
		return nil
	}

	vectors, err := c.embedder.EmbedBatch(ctx, documents)
	if err != nil {
		return fmt.Errorf("store: add to %q: %w", c.name, err)
	}

	err = c.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		for i, id := range ids {
			rec := record{
				ID:       id,
				Document: documents[i],
				Metadata: metadatas[i],
				Vector:   unitNormalize(vectors[i]),
			}
			raw, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode record %q: %w", id, err)
			}
			if err := txn.Set(c.key(id), raw); err != nil {
				return fmt.Errorf("set record %q: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: add to %q: %w", c.name, err)
	}

	c.logger.Debug("collection: documents added",
		slog.String("collection", c.name),
		slog.Int("count", len(ids)),
	)
	return nil
}

// queryHit pairs a scanned record with its cosine distance.
type queryHit struct {
	rec  record
	dist float64
}

// Query embeds the query text and returns the topK nearest documents that
// pass the filter, ordered by ascending cosine distance.
//
// # Inputs
//
//   - ctx: Context for the embedding call and the read transaction.
//   - query: The text to search for.
//   - topK: Maximum number of results. Values < 1 return no results.
//   - filter: Optional metadata predicate. Nil matches all records.
//
// # Outputs
//
//   - documents, metadatas, distances: Parallel slices, nearest first.
//     All empty (not nil error) when nothing matches.
//   - error: Non-nil on embedding or storage failure.
func (c *Collection) Query(ctx context.Context, query string, topK int, filter Filter) ([]string, []map[string]any, []float64, error) {
	if topK < 1 {
		return nil, nil, nil, nil
	}

	queryVec, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("store: query %q: %w", c.name, err)
	}
	queryUnit := unitNormalize(queryVec)

	var hits []queryHit
	err = c.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := c.prefix()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("copy value: %w", err)
			}
			var rec record
			if err := json.Unmarshal(raw, &rec); err != nil {
				return fmt.Errorf("decode record: %w", err)
			}
			if filter != nil && !filter(rec.Metadata) {
				continue
			}
			// Dot of two unit vectors is the cosine similarity.
			sim := float64(dotProduct(queryUnit, rec.Vector))
			hits = append(hits, queryHit{rec: rec, dist: 1 - sim})
		}
		return nil
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("store: query %q: %w", c.name, err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].dist < hits[j].dist
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}

	documents := make([]string, len(hits))
	metadatas := make([]map[string]any, len(hits))
	distances := make([]float64, len(hits))
	for i, h := range hits {
		documents[i] = h.rec.Document
		metadatas[i] = h.rec.Metadata
		distances[i] = h.dist
	}
	return documents, metadatas, distances, nil
}

// Get returns one record's document and metadata by id. The boolean reports
// whether the id exists.
func (c *Collection) Get(ctx context.Context, id string) (string, map[string]any, bool, error) {
	var rec record
	found := false
	err := c.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get(c.key(id))
		if err == dgbadger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get record %q: %w", id, err)
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("copy value: %w", err)
		}
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("decode record %q: %w", id, err)
		}
		found = true
		return nil
	})
	if err != nil {
		return "", nil, false, fmt.Errorf("store: get from %q: %w", c.name, err)
	}
	return rec.Document, rec.Metadata, found, nil
}

// All returns every record's metadata, in key order. Used for catalog
// listings where the caller wants course metadata without a query vector.
func (c *Collection) All(ctx context.Context) ([]map[string]any, error) {
	var metadatas []map[string]any
	err := c.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := c.prefix()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("copy value: %w", err)
			}
			var rec record
			if err := json.Unmarshal(raw, &rec); err != nil {
				return fmt.Errorf("decode record: %w", err)
			}
			metadatas = append(metadatas, rec.Metadata)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: list %q: %w", c.name, err)
	}
	return metadatas, nil
}

// Count returns the number of records in the collection.
func (c *Collection) Count(ctx context.Context) (int, error) {
	count := 0
	err := c.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.PrefetchValues = false // keys only
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := c.prefix()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store: count %q: %w", c.name, err)
	}
	return count, nil
}

// Clear deletes every record in the collection.
func (c *Collection) Clear(ctx context.Context) error {
	if err := c.db.DropPrefix(ctx, c.prefix()); err != nil {
		return fmt.Errorf("store: clear %q: %w", c.name, err)
	}
	c.logger.Info("collection: cleared", slog.String("collection", c.name))
	return nil
}

func (c *Collection) prefix() []byte {
	return []byte(collectionKeyPrefix + c.name + "/")
}

func (c *Collection) key(id string) []byte {
	return append(c.prefix(), []byte(id)...)
}
