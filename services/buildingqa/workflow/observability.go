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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	questionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brickqa_questions_total",
		Help: "Questions processed, by extracted question type.",
	}, []string{"question_type"})

	stepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "brickqa_step_duration_seconds",
		Help:    "Wall time per pipeline step.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"step"})

	escalationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brickqa_escalations_total",
		Help: "Escalation attempts after an empty result, by strategy.",
	}, []string{"strategy"})

	executeAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "brickqa_execute_attempts",
		Help:    "Query executions needed per question.",
		Buckets: []float64{1, 2, 3},
	})

	emptyAnswersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brickqa_empty_answers_total",
		Help: "Questions answered after escalation was exhausted with no rows.",
	})
)
