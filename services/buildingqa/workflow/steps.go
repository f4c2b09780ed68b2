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
	"log/slog"
	"time"

	"github.com/AleutianAI/brickqa/services/buildingqa/analysis"
	"github.com/AleutianAI/brickqa/services/buildingqa/answer"
	"github.com/AleutianAI/brickqa/services/buildingqa/intent"
	"github.com/AleutianAI/brickqa/services/buildingqa/rag"
	"github.com/AleutianAI/brickqa/services/buildingqa/sparql"
)

// =============================================================================
// Step Handlers
// =============================================================================
//
// Each handler wraps exactly one collaborator call, appends its own name to
// the trace first, and converts any collaborator failure into its owned
// safe default. No handler returns an error.

// stepIntent extracts hints, degrading to the neutral record on failure.
func (p *Pipeline) stepIntent(ctx context.Context, s *State) {
	s.appendTrace(StepIntent)
	defer p.observe(StepIntent, time.Now())

	hints, err := p.deps.Understander.Understand(ctx, s.Question)
	if err != nil {
		p.logger.Warn("intent extraction failed, continuing with neutral hints",
			slog.String("error", err.Error()),
		)
		hints = intent.Neutral()
	}
	s.Hints = hints
	s.NeedStats = hints.NeedStats
	s.Retries = 0

	// Set for historical reasons and consulted by nothing; the router's
	// escalation bound is a separate constant.
	s.MaxRetries = 1

	questionsTotal.WithLabelValues(string(hints.QuestionType)).Inc()
}

// stepRetrieve builds the retrieval context block, "" on failure.
func (p *Pipeline) stepRetrieve(ctx context.Context, s *State) {
	s.appendTrace(StepRAG)
	defer p.observe(StepRAG, time.Now())

	s.Context = p.retrieveContext(ctx, s.Question)
}

// retrieveContext is shared with level-2 escalation, which refreshes the
// context before regenerating.
func (p *Pipeline) retrieveContext(ctx context.Context, question string) string {
	chunks, err := p.deps.Retriever.Search(ctx, question, p.deps.TopK)
	if err != nil {
		p.logger.Warn("retrieval failed, continuing with empty context",
			slog.String("error", err.Error()),
		)
		return ""
	}
	return rag.BuildContext(chunks)
}

// stepNormalizeTime resolves the time window. The pure function never
// raises; a parse failure travels as OK=false.
func (p *Pipeline) stepNormalizeTime(_ context.Context, s *State) {
	s.appendTrace(StepNormalizeTime)
	defer p.observe(StepNormalizeTime, time.Now())

	s.TimeWindow = NormalizeTime(s.Hints.TimeRange, p.deps.Clock.Now(), p.deps.Location)
	if !s.TimeWindow.OK {
		p.logger.Warn("time normalization failed",
			slog.String("error", s.TimeWindow.Error),
		)
	}
}

// stepGenerate builds the initial query. Idempotent skip: when escalation
// already set a query, this invocation leaves state untouched beyond the
// trace entry, which is what lets the retry loop re-enter here.
func (p *Pipeline) stepGenerate(ctx context.Context, s *State) {
	s.appendTrace(StepGenerateSPARQL)
	defer p.observe(StepGenerateSPARQL, time.Now())

	if s.SPARQL != "" {
		return
	}

	query, err := p.deps.Generator.Generate(ctx, s.Question, s.Context, s.Hints)
	if err != nil {
		p.logger.Warn("query generation failed",
			slog.String("error", err.Error()),
		)
		s.SPARQL = ""
		return
	}
	s.SPARQL = query
	s.SPARQLHistory = append(s.SPARQLHistory, QueryAttempt{Strategy: InitialStrategy, Query: query})
}

// stepExecute runs the current query, failing closed to empty rows. For
// topology questions it additionally fetches the full room universe so the
// synthesizer can reason about complements.
func (p *Pipeline) stepExecute(ctx context.Context, s *State) {
	s.appendTrace(StepExecuteSPARQL)
	defer p.observe(StepExecuteSPARQL, time.Now())

	rows := p.deps.Executor.Execute(ctx, s.SPARQL)
	if rows == nil {
		rows = []sparql.Row{}
	}
	s.Rows = rows
	s.HaveRows = len(rows) > 0

	if s.Hints.QuestionType == intent.QuestionTopology && s.TopologyAllRooms == nil {
		s.TopologyAllRooms = p.deps.Executor.Execute(ctx, sparql.ListRooms())
		if s.TopologyAllRooms == nil {
			s.TopologyAllRooms = []sparql.Row{}
		}
	}
}

// stepEscalate regenerates the query after an empty result.
//
// Description:
//
//	Strategy by attempt: the first escalation regenerates with the
//	pure-model generator, ignoring any retrieved context; the second
//	refreshes retrieval and uses the context-augmented generator, falling
//	back to the level-1 behavior (tagged level_1_fallback) when that
//	fails. If the selected strategy itself fails, the query becomes a
//	placeholder guaranteed to bind nothing, so the pipeline still
//	terminates deterministically.
func (p *Pipeline) stepEscalate(ctx context.Context, s *State) {
	s.appendTrace(StepRouteZeroRows)
	defer p.observe(StepRouteZeroRows, time.Now())

	s.Retries++

	var (
		query    string
		err      error
		strategy FallbackStrategy
	)
	switch s.Retries {
	case 1:
		strategy = FallbackLevel1
		query, err = p.deps.LevelOne.Generate(ctx, s.Question, "", s.Hints)

	case 2:
		strategy = FallbackLevel2
		s.Context = p.retrieveContext(ctx, s.Question)
		query, err = p.deps.LevelTwo.Generate(ctx, s.Question, s.Context, s.Hints)
		if err != nil {
			p.logger.Warn("augmented regeneration failed, degrading to pure-model fallback",
				slog.String("error", err.Error()),
			)
			strategy = FallbackLevel1Fallback
			query, err = p.deps.LevelOne.Generate(ctx, s.Question, "", s.Hints)
		}

	default:
		// Unreachable under the router's bound; treated as a failure.
		err = errEscalationExhausted
	}

	if err != nil {
		p.logger.Error("escalation failed, substituting the empty placeholder query",
			slog.Int("retries", s.Retries),
			slog.String("error", err.Error()),
		)
		s.SPARQL = sparql.PlaceholderNoRows()
		s.FallbackStrategy = FallbackError
		escalationsTotal.WithLabelValues(string(FallbackError)).Inc()
		return
	}

	s.SPARQL = query
	s.FallbackStrategy = strategy
	s.SPARQLHistory = append(s.SPARQLHistory, QueryAttempt{Strategy: string(strategy), Query: query})
	escalationsTotal.WithLabelValues(string(strategy)).Inc()
}

// stepAnalyze computes the requested statistics over the matched series.
func (p *Pipeline) stepAnalyze(ctx context.Context, s *State) {
	s.appendTrace(StepAnalyze)
	defer p.observe(StepAnalyze, time.Now())

	need := s.Hints.Need
	if len(need) == 0 {
		need = analysis.DefaultNeed()
	}
	s.Analysis = p.deps.Stats.Analyze(ctx, seriesIDs(s.Rows), s.TimeWindow.Start, s.TimeWindow.End, s.TimeWindow.Label, need)
	if s.Analysis == nil {
		s.Analysis = []analysis.SeriesReport{}
	}
	s.AnalysisError = ""
}

// stepAnalyzePointInTime resolves the matched series at the requested
// instant.
func (p *Pipeline) stepAnalyzePointInTime(ctx context.Context, s *State) {
	s.appendTrace(StepAnalyzePointInTime)
	defer p.observe(StepAnalyzePointInTime, time.Now())

	s.Analysis = p.deps.Stats.AnalyzePointInTime(ctx, seriesIDs(s.Rows), s.TimeWindow.Start)
	if s.Analysis == nil {
		s.Analysis = []analysis.SeriesReport{}
	}
	s.AnalysisError = ""
}

// stepAnswer synthesizes the final text. The only terminal step; on
// failure the answer is the fixed apology.
func (p *Pipeline) stepAnswer(ctx context.Context, s *State) {
	s.appendTrace(StepAnswer)
	defer p.observe(StepAnswer, time.Now())

	text, err := p.deps.Composer.Compose(ctx, answer.Request{
		Question: s.Question,
		Hints:    s.Hints,
		Rows:     s.Rows,
		Analysis: s.Analysis,
		TimeWindow: answer.TimeWindow{
			StartLocal: s.TimeWindow.StartLocalISO(),
			EndLocal:   s.TimeWindow.EndLocalISO(),
			Label:      s.TimeWindow.Label,
			OK:         s.TimeWindow.OK,
		},
		AllRooms: s.TopologyAllRooms,
	})
	if err != nil {
		p.logger.Error("answer synthesis failed, returning the apology",
			slog.String("error", err.Error()),
		)
		text = answer.Apology
	}
	s.Answer = text
}

// seriesIDs collects the timeseries ids present in the result rows.
func seriesIDs(rows []sparql.Row) []string {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		if id := r["tsid"]; id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
