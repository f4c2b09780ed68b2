// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package intent

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/AleutianAI/brickqa/services/buildingqa/llmclient"
)

//go:embed prompt_intent.md
var intentPromptText string

// Understander extracts structured hints from a question.
//
// Description:
//
//	The single entry point the workflow's intent step depends on. May fail;
//	the step degrades to Neutral() hints and the pipeline continues.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Understander interface {
	// Understand parses one question into validated Hints.
	//
	// Outputs:
	//   - Hints: Validated hint record.
	//   - error: Non-nil if the model call or JSON extraction fails.
	Understand(ctx context.Context, question string) (Hints, error)
}

// LLMUnderstander implements Understander over a ChatClient with the
// embedded extraction prompt.
//
// Thread Safety: Safe for concurrent use.
type LLMUnderstander struct {
	chat   llmclient.ChatClient
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewLLMUnderstander creates an LLM-backed understander.
//
// Inputs:
//
//	chat   - ChatClient for the extraction call. Must not be nil.
//	clock  - Clock used to stamp the prompt with the current date so the
//	         model resolves relative phrases. Nil uses the real clock.
//	logger - Logger instance. Nil uses slog.Default().
//
// Outputs:
//
//	*LLMUnderstander - The constructed understander.
//	error            - Non-nil if chat is nil.
func NewLLMUnderstander(chat llmclient.ChatClient, clock clockwork.Clock, logger *slog.Logger) (*LLMUnderstander, error) {
	if chat == nil {
		return nil, fmt.Errorf("intent: chat client must not be nil")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMUnderstander{chat: chat, clock: clock, logger: logger}, nil
}

// rawHints mirrors the JSON the model emits before boundary validation.
// Loose types on purpose: the model occasionally returns a bare string
// where the schema says list, and the cleanup below tolerates that.
type rawHints struct {
	QuestionType   string          `json:"question_type"`
	TopologyIntent string          `json:"topology_intent"`
	NeedStats      bool            `json:"need_stats"`
	Need           json.RawMessage `json:"need"`
	Room           string          `json:"room"`
	Metric         string          `json:"metric"`
	TimeRange      *TimeRange      `json:"time_range"`
	Uncertain      bool            `json:"uncertain"`
	Ambiguities    json.RawMessage `json:"ambiguities"`
}

// Understand parses one question into validated Hints.
//
// Description:
//
//	Sends the embedded extraction prompt (stamped with the current date)
//	plus the question, pulls the first JSON object out of the reply, and
//	normalizes every field through the boundary validators in types.go.
//
// Thread Safety: Safe for concurrent use.
func (u *LLMUnderstander) Understand(ctx context.Context, question string) (Hints, error) {
	system := fmt.Sprintf("The current date is %s.\n\n%s",
		u.clock.Now().Format("2006-01-02"), intentPromptText)

	reply, err := u.chat.Chat(ctx, []llmclient.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: "Question: " + question},
	}, llmclient.ChatOptions{Temperature: 0, MaxTokens: 512})
	if err != nil {
		return Hints{}, fmt.Errorf("intent: extraction chat failed: %w", err)
	}

	jsonText, ok := firstJSONObject(reply)
	if !ok {
		return Hints{}, fmt.Errorf("intent: no JSON object in model reply (%d bytes)", len(reply))
	}

	var raw rawHints
	if err := json.Unmarshal([]byte(jsonText), &raw); err != nil {
		return Hints{}, fmt.Errorf("intent: decode hints: %w", err)
	}

	need := NormalizeNeed(decodeStringList(raw.Need))
	h := Hints{
		QuestionType:   NormalizeQuestionType(raw.QuestionType),
		TopologyIntent: NormalizeTopologyIntent(raw.TopologyIntent),
		Need:           need,
		NeedStats:      raw.NeedStats || len(need) > 0,
		Room:           NormalizeRoom(raw.Room),
		Metric:         NormalizeMetric(raw.Metric),
		TimeRange:      NormalizeTimeRange(raw.TimeRange),
		Uncertain:      raw.Uncertain,
		Ambiguities:    decodeStringList(raw.Ambiguities),
	}

	u.logger.Debug("hints extracted",
		slog.String("question_type", string(h.QuestionType)),
		slog.String("room", h.Room),
		slog.String("metric", h.Metric),
		slog.Bool("need_stats", h.NeedStats),
		slog.Bool("uncertain", h.Uncertain),
	)
	return h, nil
}

// firstJSONObject extracts the first balanced {...} block from text.
// Models wrap JSON in prose or code fences often enough that a plain
// json.Unmarshal of the whole reply is not reliable.
func firstJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// decodeStringList tolerates both a JSON array of strings and a bare string.
func decodeStringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil && one != "" {
		return []string{one}
	}
	return nil
}
