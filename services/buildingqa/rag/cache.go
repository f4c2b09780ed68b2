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

// cache.go persists retrieval results in BadgerDB between service restarts.
//
// The building-knowledge corpus changes rarely (rooms and sensors are not
// re-wired daily), while vector search is a network round-trip per question.
// Caching the ranked chunks per normalized question keeps repeated and
// escalation-refreshed retrievals cheap.
//
// Design choices:
//
//	1. BadgerDB (not Weaviate): cached chunks are service infrastructure,
//	   not user data. An embedded KV lookup is ~100µs with no availability
//	   dependency on the vector store.
//
//	2. Question hash as cache key: SHA256(class name + limit + question).
//	   A corpus re-index is handled by TTL expiry, not explicit invalidation;
//	   deleting the cache directory is the manual escape hatch.
//
//	3. Badger native TTL: expiry is enforced by Badger's GC. Expired keys
//	   return ErrKeyNotFound, which the cache treats as a miss.

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// chunkCacheDefaultTTL is the default lifetime of a cached retrieval entry.
// 7 days survives weekends and short deployments without accumulating
// stale corpus data indefinitely.
const chunkCacheDefaultTTL = 7 * 24 * time.Hour

// chunkCacheKeyPrefix is prepended to the question hash to form the Badger
// key. Versioned (v1) to allow future format changes without collision.
const chunkCacheKeyPrefix = "rag/chunks/v1/"

// ChunkCache persists ranked retrieval results across service restarts.
//
// # Description
//
// Both methods are nil-safe at the caller: CachedRetriever checks for a nil
// ChunkCache and skips persistence, operating in network-only mode. That is
// the correct behavior for tests and for deployments without a cache
// directory.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type ChunkCache interface {
	// LoadChunks retrieves cached chunks for the given key.
	//
	// Returns (nil, false, nil) on cache miss (key absent or TTL expired).
	// Returns (nil, false, error) on storage failure.
	LoadChunks(ctx context.Context, key string) ([]Chunk, bool, error)

	// SaveChunks persists chunks for the given key with the store's TTL.
	SaveChunks(ctx context.Context, key string, chunks []Chunk) error
}

// BadgerChunkCache implements ChunkCache over an open Badger database.
//
// Thread Safety: Safe for concurrent use (Badger transactions).
type BadgerChunkCache struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger
}

// NewBadgerChunkCache creates a chunk cache over db.
//
// Inputs:
//
//	db     - Open Badger database. Must not be nil.
//	ttl    - Entry lifetime. Zero uses chunkCacheDefaultTTL.
//	logger - Logger instance. Nil uses slog.Default().
func NewBadgerChunkCache(db *badger.DB, ttl time.Duration, logger *slog.Logger) *BadgerChunkCache {
	if ttl <= 0 {
		ttl = chunkCacheDefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerChunkCache{db: db, ttl: ttl, logger: logger}
}

// LoadChunks retrieves cached chunks for the given key.
func (c *BadgerChunkCache) LoadChunks(ctx context.Context, key string) ([]Chunk, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(chunkCacheKeyPrefix + key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("rag: chunk cache read: %w", err)
	}

	var chunks []Chunk
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&chunks); err != nil {
		// A corrupt entry is a miss, not an outage; it will be overwritten.
		c.logger.Warn("chunk cache entry undecodable, treating as miss",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil, false, nil
	}
	return chunks, true, nil
}

// SaveChunks persists chunks for the given key with the store's TTL.
func (c *BadgerChunkCache) SaveChunks(ctx context.Context, key string, chunks []Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(chunks); err != nil {
		return fmt.Errorf("rag: chunk cache encode: %w", err)
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(chunkCacheKeyPrefix+key), buf.Bytes()).WithTTL(c.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("rag: chunk cache write: %w", err)
	}
	return nil
}

// CachedRetriever fronts a Retriever with a ChunkCache.
//
// Description:
//
//	Cache reads and writes are best-effort: any cache failure falls through
//	to the wrapped retriever and is logged at Warn, never surfaced. A nil
//	cache makes the wrapper a passthrough.
//
// Thread Safety: Safe for concurrent use.
type CachedRetriever struct {
	inner     Retriever
	cache     ChunkCache
	className string
	logger    *slog.Logger
}

// NewCachedRetriever wraps inner with cache. cache may be nil.
func NewCachedRetriever(inner Retriever, cache ChunkCache, className string, logger *slog.Logger) *CachedRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedRetriever{inner: inner, cache: cache, className: className, logger: logger}
}

// Search returns cached chunks when available, otherwise delegates and
// stores the result.
func (r *CachedRetriever) Search(ctx context.Context, question string, k int) ([]Chunk, error) {
	key := chunkCacheKey(r.className, k, question)

	if r.cache != nil {
		chunks, hit, err := r.cache.LoadChunks(ctx, key)
		if err != nil {
			r.logger.Warn("chunk cache load failed, falling back to retriever",
				slog.String("error", err.Error()))
		} else if hit {
			return chunks, nil
		}
	}

	chunks, err := r.inner.Search(ctx, question, k)
	if err != nil {
		return nil, err
	}

	if r.cache != nil && len(chunks) > 0 {
		if err := r.cache.SaveChunks(ctx, key, chunks); err != nil {
			r.logger.Warn("chunk cache save failed",
				slog.String("error", err.Error()))
		}
	}
	return chunks, nil
}

// chunkCacheKey derives the cache key for one search.
func chunkCacheKey(className string, k int, question string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", className, k, question)))
	return hex.EncodeToString(h[:])
}
