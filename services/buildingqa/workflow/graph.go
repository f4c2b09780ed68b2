// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/brickqa/services/buildingqa/analysis"
	"github.com/AleutianAI/brickqa/services/buildingqa/answer"
	"github.com/AleutianAI/brickqa/services/buildingqa/intent"
	"github.com/AleutianAI/brickqa/services/buildingqa/rag"
	"github.com/AleutianAI/brickqa/services/buildingqa/sparql"
)

var errEscalationExhausted = errors.New("escalation attempts exhausted")

// Deps are the collaborators one Pipeline orchestrates. All collaborator
// fields are required; Clock, Location, TopK, and Logger have defaults.
type Deps struct {
	Understander intent.Understander
	Retriever    rag.Retriever

	// Generator builds the initial query; LevelOne and LevelTwo are the
	// escalation generators (pure-model and context-augmented).
	Generator sparql.Generator
	LevelOne  sparql.Generator
	LevelTwo  sparql.Generator

	Executor sparql.Executor
	Stats    analysis.Engine
	Composer answer.Composer

	// Clock anchors time-window resolution; Location is the building's
	// local zone.
	Clock    clockwork.Clock
	Location *time.Location

	// TopK is the retrieval depth.
	TopK int

	Logger *slog.Logger
}

// Pipeline runs the fixed question-answering graph.
//
// Description:
//
//	One Pipeline serves many concurrent requests; per-request state is
//	created inside Run and never shared. The collaborators are constructed
//	once at startup and read-only thereafter.
//
// Thread Safety: Safe for concurrent use when all collaborators are.
type Pipeline struct {
	deps   Deps
	logger *slog.Logger
}

// NewPipeline validates the dependency set and builds the pipeline.
func NewPipeline(deps Deps) (*Pipeline, error) {
	switch {
	case deps.Understander == nil:
		return nil, fmt.Errorf("workflow: Understander must not be nil")
	case deps.Retriever == nil:
		return nil, fmt.Errorf("workflow: Retriever must not be nil")
	case deps.Generator == nil:
		return nil, fmt.Errorf("workflow: Generator must not be nil")
	case deps.LevelOne == nil:
		return nil, fmt.Errorf("workflow: LevelOne generator must not be nil")
	case deps.LevelTwo == nil:
		return nil, fmt.Errorf("workflow: LevelTwo generator must not be nil")
	case deps.Executor == nil:
		return nil, fmt.Errorf("workflow: Executor must not be nil")
	case deps.Stats == nil:
		return nil, fmt.Errorf("workflow: Stats engine must not be nil")
	case deps.Composer == nil:
		return nil, fmt.Errorf("workflow: Composer must not be nil")
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.TopK <= 0 {
		deps.TopK = 5
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Pipeline{deps: deps, logger: deps.Logger}, nil
}

// Run answers one question, always returning a terminal state whose last
// trace entry is the answer step. Run never returns an error: every
// collaborator failure is absorbed by its step, and the worst case is the
// apology answer.
//
// Thread Safety: Safe for concurrent use.
func (p *Pipeline) Run(ctx context.Context, question string) *State {
	tracer := otel.Tracer("brickqa/workflow")
	ctx, span := tracer.Start(ctx, "workflow.Run",
		oteltrace.WithAttributes(attribute.Int("question_len", len(question))))
	defer span.End()

	s := NewState(question)

	p.stepIntent(ctx, s)
	p.stepRetrieve(ctx, s)
	p.stepNormalizeTime(ctx, s)

	attempts := 0
	for {
		p.stepGenerate(ctx, s)
		p.stepExecute(ctx, s)
		attempts++

		r := routeAfterExecute(s)
		if r != routeZero {
			switch r {
			case routeAnalyze:
				p.stepAnalyze(ctx, s)
			case routeAnalyzePointInTime:
				p.stepAnalyzePointInTime(ctx, s)
			}
			break
		}

		if routeRetryOrEnd(s) == decisionGiveup {
			emptyAnswersTotal.Inc()
			break
		}
		p.stepEscalate(ctx, s)
	}

	p.stepAnswer(ctx, s)

	executeAttempts.Observe(float64(attempts))
	span.SetAttributes(
		attribute.String("question_type", string(s.Hints.QuestionType)),
		attribute.Int("rows", len(s.Rows)),
		attribute.Int("retries", s.Retries),
		attribute.Int("execute_attempts", attempts),
		attribute.String("fallback_strategy", string(s.FallbackStrategy)),
	)
	p.logger.Info("question answered",
		slog.String("question_type", string(s.Hints.QuestionType)),
		slog.Int("rows", len(s.Rows)),
		slog.Int("retries", s.Retries),
		slog.String("fallback_strategy", string(s.FallbackStrategy)),
		slog.Int("trace_len", len(s.Trace)),
	)
	return s
}

// observe records one step's wall time.
func (p *Pipeline) observe(step string, start time.Time) {
	stepDuration.WithLabelValues(step).Observe(time.Since(start).Seconds())
}
