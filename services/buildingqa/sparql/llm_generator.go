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
	"log/slog"

	"github.com/AleutianAI/brickqa/services/buildingqa/intent"
	"github.com/AleutianAI/brickqa/services/buildingqa/llmclient"
)

// schemaDescription is the Brick schema card shared by both LLM prompts.
const schemaDescription = `Prefixes:
PREFIX brick: <https://brickschema.org/schema/Brick#>
PREFIX ref:   <https://brickschema.org/schema/Brick/ref#>
PREFIX bldg:  <urn:demo-building#>

Core graph shape:
?room a brick:Room .                    # a room
?pt a ?ptType ;                         # a sensor point
    brick:isPointOf ?room ;             # mounted in a room
    ref:hasTimeseriesReference [        # with a timeseries reference
        ref:hasTimeseriesId ?tsid       # carrying the series id
    ] .

Sensor classes:
- temperature: brick:Air_Temperature_Sensor
- humidity:    brick:Relative_Humidity_Sensor
- illuminance: brick:Illuminance_Sensor
- CO2:         brick:CO2_Level_Sensor
- PM2.5:       brick:PM2.5_Sensor`

// LLMGenerator is the first escalation level: it asks the model for a query
// from the question and hints alone, bypassing templates and any previously
// retrieved context.
//
// Thread Safety: Safe for concurrent use.
type LLMGenerator struct {
	chat   llmclient.ChatClient
	logger *slog.Logger
}

// NewLLMGenerator creates the LLM fallback generator.
//
// Inputs:
//
//	chat   - ChatClient for generation. Must not be nil.
//	logger - Logger instance. Nil uses slog.Default().
func NewLLMGenerator(chat llmclient.ChatClient, logger *slog.Logger) (*LLMGenerator, error) {
	if chat == nil {
		return nil, fmt.Errorf("sparql: chat client must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMGenerator{chat: chat, logger: logger}, nil
}

// Generate asks the model for a query. The ragContext argument is ignored
// on purpose: level-1 escalation regenerates from the question alone.
func (g *LLMGenerator) Generate(ctx context.Context, question, _ string, hints intent.Hints) (string, error) {
	prompt := buildFallbackPrompt(question, hints)

	reply, err := g.chat.Chat(ctx, []llmclient.Message{
		{Role: "user", Content: prompt},
	}, llmclient.ChatOptions{Temperature: 0, MaxTokens: 1024})
	if err != nil {
		return "", fmt.Errorf("sparql: llm generation: %w", err)
	}

	query := CleanResponse(reply)
	g.logger.Debug("llm fallback query generated", slog.Int("query_len", len(query)))
	return query, nil
}

// AugmentedGenerator is the second escalation level: it feeds freshly
// retrieved building knowledge into the prompt alongside the question.
//
// Thread Safety: Safe for concurrent use.
type AugmentedGenerator struct {
	chat   llmclient.ChatClient
	logger *slog.Logger
}

// NewAugmentedGenerator creates the context-augmented fallback generator.
func NewAugmentedGenerator(chat llmclient.ChatClient, logger *slog.Logger) (*AugmentedGenerator, error) {
	if chat == nil {
		return nil, fmt.Errorf("sparql: chat client must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AugmentedGenerator{chat: chat, logger: logger}, nil
}

// Generate asks the model for a query grounded on the retrieved context.
func (g *AugmentedGenerator) Generate(ctx context.Context, question, ragContext string, hints intent.Hints) (string, error) {
	prompt := fmt.Sprintf(`You are a SPARQL expert for building knowledge graphs (Brick schema).
Generate one precise SPARQL query from the information below.

%s

Retrieved building knowledge:
%s

%s

Considerations:
1. For topology questions (count_rooms / list_rooms / sensor_existence),
   generate the matching count or listing query.
2. For timeseries questions, the query must bind ?tsid for downstream analysis.
3. With a room number, filter via FILTER(STRENDS(STR(?room), "_<room>")).
4. With a metric, constrain ?ptType via a VALUES block.

Output only the SPARQL query, nothing else.`,
		schemaDescription, ragContext, hintSummary(question, hints))

	reply, err := g.chat.Chat(ctx, []llmclient.Message{
		{Role: "user", Content: prompt},
	}, llmclient.ChatOptions{Temperature: 0, MaxTokens: 1024})
	if err != nil {
		return "", fmt.Errorf("sparql: augmented generation: %w", err)
	}

	query := CleanResponse(reply)
	g.logger.Debug("augmented fallback query generated", slog.Int("query_len", len(query)))
	return query, nil
}

// buildFallbackPrompt renders the level-1 prompt from question and hints.
func buildFallbackPrompt(question string, hints intent.Hints) string {
	return fmt.Sprintf(`You are a SPARQL expert for building information models and
building automation knowledge graphs.

%s

%s

Generate one precise SPARQL query for the question.
Output only the SPARQL query, nothing else.`,
		schemaDescription, hintSummary(question, hints))
}

// hintSummary renders the extracted hints for the prompts.
func hintSummary(question string, hints intent.Hints) string {
	timeRange := "none"
	if hints.TimeRange != nil {
		if raw, err := json.Marshal(hints.TimeRange); err == nil {
			timeRange = string(raw)
		}
	}
	orUnspecified := func(s string) string {
		if s == "" {
			return "unspecified"
		}
		return s
	}
	return fmt.Sprintf(`Question: %s

Extracted hints:
- question type: %s
- topology intent: %s
- room: %s
- metric: %s
- time range: %s
- requested statistics: %v`,
		question,
		hints.QuestionType,
		orUnspecified(string(hints.TopologyIntent)),
		orUnspecified(hints.Room),
		orUnspecified(hints.Metric),
		timeRange,
		hints.Need,
	)
}
