// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package buildingqa exposes the question-answering pipeline over HTTP.
//
// The package is a thin shell: all semantics live in the workflow package
// and its collaborators. Handlers validate input, enforce the per-request
// timeout, and translate the final pipeline state into a response body.
package buildingqa

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/brickqa/services/buildingqa/workflow"
)

// Runner is the part of the pipeline the service layer depends on.
// *workflow.Pipeline satisfies it; tests substitute a scripted runner.
type Runner interface {
	Run(ctx context.Context, question string) *workflow.State
}

// Service answers building questions with a bounded per-request deadline.
//
// Thread Safety: Safe for concurrent use. The underlying pipeline keeps no
// per-request state outside the State record it returns.
type Service struct {
	pipeline Runner
	timeout  time.Duration
	logger   *slog.Logger
}

// NewService creates a Service around a pipeline.
//
// Inputs:
//
//	pipeline - The workflow pipeline (required)
//	timeout - Per-request deadline; defaults to 120s when non-positive
//	logger - Structured logger; defaults to slog.Default() when nil
func NewService(pipeline Runner, timeout time.Duration, logger *slog.Logger) (*Service, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("buildingqa: pipeline must not be nil")
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{pipeline: pipeline, timeout: timeout, logger: logger}, nil
}

// Ask runs the pipeline for one question under the service deadline.
//
// Description:
//
//	The pipeline itself never returns an error: every step degrades in
//	place and the final state always carries an answer. The deadline is
//	the only way a request ends early, and even then the pipeline's
//	fail-closed steps surface the timeout as an apologetic answer rather
//	than a transport error.
func (s *Service) Ask(ctx context.Context, question string) *workflow.State {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.pipeline.Run(ctx, question)
}
