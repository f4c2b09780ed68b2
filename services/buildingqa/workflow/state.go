// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package workflow is the question-answering orchestrator: a fixed directed
// graph of nine steps threading one mutable State from intent extraction
// through retrieval, time normalization, query generation and execution,
// result-dependent routing, a two-level escalation policy on empty results,
// optional statistics, and answer synthesis. Every step is failure-isolated:
// a broken collaborator degrades its own output and the pipeline continues
// to a terminal answer regardless.
package workflow

import (
	"time"

	"github.com/AleutianAI/brickqa/services/buildingqa/analysis"
	"github.com/AleutianAI/brickqa/services/buildingqa/intent"
	"github.com/AleutianAI/brickqa/services/buildingqa/sparql"
)

// Step names as they appear in the trace.
const (
	StepIntent             = "intent"
	StepRAG                = "rag"
	StepNormalizeTime      = "normalize_time"
	StepGenerateSPARQL     = "generate_sparql"
	StepExecuteSPARQL      = "execute_sparql"
	StepRouteZeroRows      = "route_zero_rows"
	StepAnalyze            = "analyze"
	StepAnalyzePointInTime = "analyze_point_in_time"
	StepAnswer             = "answer"
)

// FallbackStrategy tags the escalation attempt that produced the current
// query.
type FallbackStrategy string

const (
	// FallbackNone means the query came from the initial generator.
	FallbackNone FallbackStrategy = "none"

	// FallbackLevel1 is the pure-model regeneration, ignoring retrieval.
	FallbackLevel1 FallbackStrategy = "level_1"

	// FallbackLevel2 is the refreshed-retrieval augmented regeneration.
	FallbackLevel2 FallbackStrategy = "level_2"

	// FallbackLevel1Fallback tags a level-2 attempt that degraded to the
	// level-1 behavior after the augmented generator failed.
	FallbackLevel1Fallback FallbackStrategy = "level_1_fallback"

	// FallbackError means escalation itself failed and the query was
	// replaced with a placeholder guaranteed to return nothing.
	FallbackError FallbackStrategy = "error"
)

// QueryAttempt is one (strategy, query) pair in the attempt history.
type QueryAttempt struct {
	Strategy string `json:"strategy"`
	Query    string `json:"query"`
}

// InitialStrategy tags the first, non-escalated query attempt.
const InitialStrategy = "initial"

// TimeWindow is the resolved local-time window. Start and End are both set
// or both nil; nil with OK=true means the question carried no time
// constraint. The window is inclusive-start, exclusive-end.
type TimeWindow struct {
	Start *time.Time `json:"-"`
	End   *time.Time `json:"-"`
	Label string     `json:"label"`
	OK    bool       `json:"ok"`
	Error string     `json:"error,omitempty"`
}

// StartLocalISO renders the window start in local ISO form, "" when absent.
func (w TimeWindow) StartLocalISO() string {
	if w.Start == nil {
		return ""
	}
	return w.Start.Format("2006-01-02T15:04:05-07:00")
}

// EndLocalISO renders the window end in local ISO form, "" when absent.
func (w TimeWindow) EndLocalISO() string {
	if w.End == nil {
		return ""
	}
	return w.End.Format("2006-01-02T15:04:05-07:00")
}

// State is the per-request record threaded through every step.
//
// Description:
//
//	Created with only Question set, mutated additively: each step owns its
//	fields and never touches fields owned by earlier steps, except that
//	escalation overwrites SPARQL and FallbackStrategy. Never shared across
//	requests.
type State struct {
	Question string `json:"question"`

	// Owned by the intent step.
	Hints      intent.Hints `json:"hints"`
	NeedStats  bool         `json:"need_stats"`
	MaxRetries int          `json:"max_retries"`

	// Owned by the retrieval step.
	Context string `json:"context"`

	// Owned by the time-normalization step.
	TimeWindow TimeWindow `json:"time_window"`

	// Owned by query generation and escalation.
	SPARQL           string           `json:"sparql"`
	SPARQLHistory    []QueryAttempt   `json:"sparql_history"`
	FallbackStrategy FallbackStrategy `json:"fallback_strategy"`
	Retries          int              `json:"retries"`

	// Owned by query execution.
	Rows             []sparql.Row `json:"rows"`
	HaveRows         bool         `json:"have_rows"`
	TopologyAllRooms []sparql.Row `json:"topology_all_rooms,omitempty"`

	// Owned by the statistics steps.
	Analysis      []analysis.SeriesReport `json:"analysis"`
	AnalysisError string                  `json:"analysis_error,omitempty"`

	// Owned by the terminal step.
	Answer string `json:"answer"`

	// Trace records step names in execution order, append-only.
	Trace []string `json:"trace"`
}

// NewState creates the request state for one question.
func NewState(question string) *State {
	return &State{
		Question:         question,
		FallbackStrategy: FallbackNone,
		Rows:             []sparql.Row{},
		Analysis:         []analysis.SeriesReport{},
	}
}

// appendTrace records a step name. Every step calls this exactly once, as
// its first action.
func (s *State) appendTrace(step string) {
	s.Trace = append(s.Trace, step)
}
