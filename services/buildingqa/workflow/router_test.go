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
	"testing"

	"github.com/AleutianAI/brickqa/services/buildingqa/intent"
)

func TestRouteAfterExecute_DecisionTable(t *testing.T) {
	pit := &intent.TimeRange{Kind: intent.RangePointInTime, At: "2024-05-01T09:00"}

	cases := []struct {
		name      string
		haveRows  bool
		qtype     intent.QuestionType
		timeRange *intent.TimeRange
		needStats bool
		need      []string
		want      route
	}{
		{"empty rows always escalate", false, intent.QuestionTimeseries, nil, true, []string{"avg"}, routeZero},
		{"empty rows escalate even for topology", false, intent.QuestionTopology, nil, false, nil, routeZero},
		{"topology with rows answers directly", true, intent.QuestionTopology, nil, false, nil, routeAnswer},
		{"topology ignores requested stats", true, intent.QuestionTopology, nil, true, []string{"avg"}, routeAnswer},
		{"point in time beats requested stats", true, intent.QuestionTimeseries, pit, true, []string{"avg", "max"}, routeAnalyzePointInTime},
		{"need_stats flag routes to analyze", true, intent.QuestionTimeseries, nil, true, nil, routeAnalyze},
		{"non-empty need routes to analyze", true, intent.QuestionTimeseries, nil, false, []string{"trend"}, routeAnalyze},
		{"plain rows answer directly", true, intent.QuestionTimeseries, nil, false, nil, routeAnswer},
		{"other question type with rows answers", true, intent.QuestionOther, nil, false, nil, routeAnswer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &State{
				HaveRows:  tc.haveRows,
				NeedStats: tc.needStats,
				Hints: intent.Hints{
					QuestionType: tc.qtype,
					TimeRange:    tc.timeRange,
					Need:         tc.need,
				},
			}
			if got := routeAfterExecute(s); got != tc.want {
				t.Errorf("routeAfterExecute = %q, want %q", got, tc.want)
			}
			// Pure and deterministic: same state, same decision.
			if got := routeAfterExecute(s); got != tc.want {
				t.Errorf("second evaluation diverged: %q", got)
			}
		})
	}
}

func TestRouteRetryOrEnd_BoundIsHardcoded(t *testing.T) {
	// MaxRetries on the state is set by the intent step but deliberately
	// never consulted; only the fixed bound of 2 governs.
	cases := []struct {
		retries int
		want    retryDecision
	}{
		{0, decisionRetry},
		{1, decisionRetry},
		{2, decisionGiveup},
		{3, decisionGiveup},
	}
	for _, tc := range cases {
		s := &State{Retries: tc.retries, MaxRetries: 1}
		if got := routeRetryOrEnd(s); got != tc.want {
			t.Errorf("retries=%d: got %q, want %q", tc.retries, got, tc.want)
		}
	}
}
