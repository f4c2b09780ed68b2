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

import "github.com/AleutianAI/brickqa/services/buildingqa/intent"

// Routes out of the execute step.
type route string

const (
	routeZero               route = "zero"
	routeAnswer             route = "answer"
	routeAnalyze            route = "analyze"
	routeAnalyzePointInTime route = "analyze_point_in_time"
)

// Retry decisions after an empty result.
type retryDecision string

const (
	decisionRetry  retryDecision = "retry"
	decisionGiveup retryDecision = "giveup"
)

// escalationBound is the fixed retry bound. State.MaxRetries, set by the
// intent step, is deliberately never consulted here: the effective
// contract is this constant.
const escalationBound = 2

// routeAfterExecute picks the step that follows query execution. Pure
// function of committed state; evaluation order is significant:
//
//  1. empty rows always escalate, whatever the question type;
//  2. topology questions never enter statistics, their row set is the
//     answer-worthy signal;
//  3. a point-in-time range takes priority over requested statistics;
//  4. requested statistics (the flag or a non-empty need list);
//  5. otherwise synthesize directly.
func routeAfterExecute(s *State) route {
	if !s.HaveRows {
		return routeZero
	}
	if s.Hints.QuestionType == intent.QuestionTopology {
		return routeAnswer
	}
	if s.Hints.TimeRange != nil && s.Hints.TimeRange.Kind == intent.RangePointInTime {
		return routeAnalyzePointInTime
	}
	if s.NeedStats || len(s.Hints.Need) > 0 {
		return routeAnalyze
	}
	return routeAnswer
}

// routeRetryOrEnd decides whether another escalation attempt is allowed.
// Evaluated before escalation increments the counter, so the pipeline
// performs at most escalationBound escalations and escalationBound+1
// query executions.
func routeRetryOrEnd(s *State) retryDecision {
	if s.Retries < escalationBound {
		return decisionRetry
	}
	return decisionGiveup
}
