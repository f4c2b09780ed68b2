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
	"log/slog"
	"regexp"
	"strings"

	"github.com/AleutianAI/brickqa/services/buildingqa/intent"
)

// Generator produces a SPARQL query for a question.
//
// Description:
//
//	All three generation strategies (template, LLM fallback, context-
//	augmented LLM) satisfy this; the workflow picks which one to call.
//	There is no contract on query correctness; the executor either
//	returns rows or fails closed.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Generator interface {
	// Generate builds a query from the question, the retrieved context
	// block (may be empty), and the extracted hints.
	Generate(ctx context.Context, question, ragContext string, hints intent.Hints) (string, error)
}

// TemplateGenerator is the deterministic default generator: it routes the
// hints onto the Brick query templates with no model involvement.
//
// Thread Safety: Safe for concurrent use (stateless).
type TemplateGenerator struct {
	logger *slog.Logger
}

// NewTemplateGenerator creates the template-based generator.
func NewTemplateGenerator(logger *slog.Logger) *TemplateGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &TemplateGenerator{logger: logger}
}

// Generate builds a query from templates. Never fails: there is a template
// for every hint combination, down to the catch-all point listing.
func (g *TemplateGenerator) Generate(_ context.Context, question, _ string, hints intent.Hints) (string, error) {
	var query string
	if hints.QuestionType == intent.QuestionTopology {
		query = g.topologyQuery(hints)
	} else {
		query = g.timeseriesQuery(question, hints)
	}
	g.logger.Debug("template query generated",
		slog.String("question_type", string(hints.QuestionType)),
		slog.Int("query_len", len(query)),
	)
	return query, nil
}

// timeseriesQuery picks the room-scoped template when a room is known and
// the catch-all otherwise. Room and metric fall back to plain-text sniffing
// when the understander left them empty.
func (g *TemplateGenerator) timeseriesQuery(question string, hints intent.Hints) string {
	room := hints.Room
	if room == "" {
		room = extractRoomFromText(question)
	}
	metric := hints.Metric
	if metric == "" {
		metric = inferMetricFromText(question)
	}

	if room != "" {
		return RoomPointsTSID(room, metric)
	}
	return ListPointsAny(20)
}

// topologyQuery maps the topology intent onto its template, defaulting to
// the room listing.
func (g *TemplateGenerator) topologyQuery(hints intent.Hints) string {
	switch hints.TopologyIntent {
	case intent.TopologyCountRooms:
		return CountRooms()
	case intent.TopologySensorExistence:
		return SensorExistence(hints.Room, hints.Metric)
	default:
		return ListRooms()
	}
}

// textRoomRe matches a standalone 1-4 digit run in question text.
var textRoomRe = regexp.MustCompile(`(^|\D)(\d{1,4})($|\D)`)

// extractRoomFromText pulls a bare room number out of question text.
func extractRoomFromText(text string) string {
	m := textRoomRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[2]
}

// keywordToMetric maps question keywords to metric keys. Checked in a fixed
// order so overlapping vocabularies stay deterministic.
var keywordToMetric = []struct {
	metric   string
	keywords []string
}{
	{"co2", []string{"co2", "co₂", "carbon dioxide"}},
	{"pm25", []string{"pm2.5", "pm25", "pm 2.5", "particulate", "dust"}},
	{"temp", []string{"temperature", "temp", "warm", "cold"}},
	{"rh", []string{"humidity", "rh", "humid"}},
	{"lux", []string{"illuminance", "lux", "light level", "brightness"}},
}

// inferMetricFromText sniffs a metric key from question text, "" when none.
func inferMetricFromText(text string) string {
	lower := strings.ToLower(text)
	for _, entry := range keywordToMetric {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.metric
			}
		}
	}
	return ""
}
