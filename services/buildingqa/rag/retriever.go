// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rag retrieves building-knowledge snippets relevant to a question
// and assembles them into the context block the query generators consume.
// Retrieval is best-effort everywhere it is used: a missing or unreachable
// vector store degrades to an empty context, never a failed request.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
)

// Chunk is one retrieved knowledge snippet with its relevance score.
type Chunk struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Retriever finds knowledge snippets relevant to a question.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Retriever interface {
	// Search returns up to k chunks ranked by relevance. May return an
	// empty slice; that is a valid "nothing relevant" result, not an error.
	Search(ctx context.Context, question string, k int) ([]Chunk, error)
}

// WeaviateConfig configures the vector-store retriever.
type WeaviateConfig struct {
	// Scheme is "http" or "https".
	Scheme string

	// Host is the Weaviate endpoint, host:port.
	Host string

	// ClassName is the collection holding building-knowledge chunks.
	ClassName string

	// Limit is the default number of chunks per search.
	Limit int

	// Timeout bounds one search round-trip.
	Timeout time.Duration
}

// DefaultWeaviateConfig returns sensible defaults for a local deployment.
func DefaultWeaviateConfig() WeaviateConfig {
	return WeaviateConfig{
		Scheme:    "http",
		Host:      "localhost:8081",
		ClassName: "BuildingChunk",
		Limit:     5,
		Timeout:   5 * time.Second,
	}
}

// WeaviateRetriever implements Retriever over a Weaviate nearText search.
//
// Description:
//
//	Queries the configured class for the question's concepts and maps each
//	object's text plus the _additional certainty into a Chunk. The optional
//	ContextCache fronts the network call; cache failures are invisible to
//	callers (treated as misses).
//
// Thread Safety: Safe for concurrent use.
type WeaviateRetriever struct {
	client *weaviate.Client
	cfg    WeaviateConfig
	logger *slog.Logger
}

// NewWeaviateRetriever creates a retriever over the given Weaviate endpoint.
//
// Inputs:
//
//	cfg    - Endpoint and class configuration.
//	logger - Logger instance. Nil uses slog.Default().
//
// Outputs:
//
//	*WeaviateRetriever - The constructed retriever.
//	error              - Non-nil if the client cannot be constructed.
func NewWeaviateRetriever(cfg WeaviateConfig, logger *slog.Logger) (*WeaviateRetriever, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	client, err := weaviate.NewClient(weaviate.Config{Scheme: cfg.Scheme, Host: cfg.Host})
	if err != nil {
		return nil, fmt.Errorf("rag: weaviate client: %w", err)
	}
	return &WeaviateRetriever{client: client, cfg: cfg, logger: logger}, nil
}

// Search returns up to k chunks ranked by relevance.
//
// Thread Safety: Safe for concurrent use.
func (r *WeaviateRetriever) Search(ctx context.Context, question string, k int) ([]Chunk, error) {
	if k <= 0 {
		k = r.cfg.Limit
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	nearText := r.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{question})

	fields := []graphql.Field{
		{Name: "text"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	start := time.Now()
	resp, err := r.client.GraphQL().Get().
		WithClassName(r.cfg.ClassName).
		WithFields(fields...).
		WithNearText(nearText).
		WithLimit(k).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("rag: weaviate search: %w", err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("rag: weaviate search: %s", resp.Errors[0].Message)
	}

	chunks := decodeChunks(resp.Data["Get"], r.cfg.ClassName)
	r.logger.Debug("retrieval completed",
		slog.Int("chunks", len(chunks)),
		slog.Duration("duration", time.Since(start)),
	)
	return chunks, nil
}

// decodeChunks walks the GraphQL Get response shape down to Chunk values.
// Anything malformed is skipped rather than failing the whole search.
func decodeChunks(getRaw interface{}, className string) []Chunk {
	get, ok := getRaw.(map[string]interface{})
	if !ok {
		return nil
	}
	objects, ok := get[className].([]interface{})
	if !ok {
		return nil
	}

	chunks := make([]Chunk, 0, len(objects))
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}
		text, _ := m["text"].(string)
		if text == "" {
			continue
		}
		var score float64
		if add, ok := m["_additional"].(map[string]interface{}); ok {
			if c, ok := add["certainty"].(float64); ok {
				score = c
			}
		}
		chunks = append(chunks, Chunk{Text: text, Score: score})
	}
	return chunks
}
