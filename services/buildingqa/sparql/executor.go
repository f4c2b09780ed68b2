// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sparql

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Row is one result binding set, variable name → lexical value.
type Row map[string]string

// Executor runs a SPARQL query and returns its rows.
//
// Description:
//
//	Executors fail closed: any syntax or execution error yields an empty
//	row slice and a nil error. The workflow cannot distinguish "no match"
//	from "query broke" (both route into the escalation policy), so the
//	executor never surfaces a hard failure.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Executor interface {
	// Execute runs the query. The returned slice is never nil.
	Execute(ctx context.Context, query string) []Row
}

// HTTPExecutorConfig configures the SPARQL-protocol HTTP executor.
type HTTPExecutorConfig struct {
	// Endpoint is the SPARQL query endpoint URL.
	Endpoint string

	// Timeout bounds one query round-trip.
	Timeout time.Duration
}

// HTTPExecutor implements Executor over the SPARQL 1.1 protocol.
//
// Description:
//
//	POSTs the query as application/sparql-query and decodes the
//	application/sparql-results+json response into rows. Values are
//	flattened to their lexical form; a ts_id binding is normalized to
//	tsid so downstream consumers see one field name.
//
// Thread Safety: Safe for concurrent use.
type HTTPExecutor struct {
	cfg    HTTPExecutorConfig
	client *http.Client
	logger *slog.Logger
}

// NewHTTPExecutor creates an executor against the given endpoint.
//
// Inputs:
//
//	cfg    - Endpoint configuration. Endpoint must not be empty.
//	logger - Logger instance. Nil uses slog.Default().
func NewHTTPExecutor(cfg HTTPExecutorConfig, logger *slog.Logger) (*HTTPExecutor, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("sparql: endpoint must not be empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPExecutor{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

// resultsEnvelope mirrors the SPARQL JSON results format.
type resultsEnvelope struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []map[string]struct {
			Value string `json:"value"`
		} `json:"bindings"`
	} `json:"results"`
}

// Execute runs the query, failing closed on every error path.
//
// Thread Safety: Safe for concurrent use.
func (e *HTTPExecutor) Execute(ctx context.Context, query string) []Row {
	if !BasicSyntaxCheck(query) {
		e.logger.Warn("query rejected by syntax precheck", slog.Int("query_len", len(query)))
		return []Row{}
	}

	start := time.Now()
	rows, err := e.run(ctx, query)
	elapsed := time.Since(start)
	if err != nil {
		e.logger.Warn("query execution failed, returning zero rows",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", elapsed),
		)
		return []Row{}
	}

	e.logger.Debug("query executed",
		slog.Int("rows", len(rows)),
		slog.Duration("elapsed", elapsed),
	)
	return rows
}

// run performs the HTTP round-trip and decode. Split out so Execute owns
// the single fail-closed boundary.
func (e *HTTPExecutor) run(ctx context.Context, query string) ([]Row, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, strings.NewReader(query))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/sparql-query")
	req.Header.Set("Accept", "application/sparql-results+json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("endpoint round-trip: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var envelope resultsEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}

	rows := make([]Row, 0, len(envelope.Results.Bindings))
	for _, binding := range envelope.Results.Bindings {
		row := make(Row, len(binding))
		for name, v := range binding {
			row[name] = v.Value
		}
		normalizeRow(row)
		rows = append(rows, row)
	}
	return rows, nil
}

// normalizeRow unifies the timeseries id field name: endpoints that bind
// ?ts_id are folded onto tsid.
func normalizeRow(row Row) {
	if _, ok := row["tsid"]; ok {
		return
	}
	if v, ok := row["ts_id"]; ok {
		row["tsid"] = v
	}
}
