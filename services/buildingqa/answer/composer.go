// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package answer synthesizes the final text answer from everything the
// pipeline accumulated: rows, statistics, hints, and the time window.
// Synthesis is a model call over a compacted JSON context; the caller
// substitutes a fixed apology when synthesis fails.
package answer

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/AleutianAI/brickqa/services/buildingqa/analysis"
	"github.com/AleutianAI/brickqa/services/buildingqa/intent"
	"github.com/AleutianAI/brickqa/services/buildingqa/llmclient"
	"github.com/AleutianAI/brickqa/services/buildingqa/sparql"
)

//go:embed prompt_answer.md
var promptAnswerMD string

// Apology is the fixed text used when synthesis itself fails. It is the
// worst-case user-visible outcome of the whole pipeline.
const Apology = "抱歉，暂时无法生成答案。"

// TimeWindow is the resolved local-time window view the synthesizer
// receives. Empty Start/End with OK=true means "no time constraint".
type TimeWindow struct {
	StartLocal string `json:"start_local"`
	EndLocal   string `json:"end_local"`
	Label      string `json:"label"`
	OK         bool   `json:"ok"`
}

// Request carries everything the synthesizer may draw on.
type Request struct {
	Question   string
	Hints      intent.Hints
	Rows       []sparql.Row
	Analysis   []analysis.SeriesReport
	TimeWindow TimeWindow

	// AllRooms is the full room universe, populated for topology
	// questions so the model can reason about complements.
	AllRooms []sparql.Row
}

// Composer renders the final answer text.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Composer interface {
	Compose(ctx context.Context, req Request) (string, error)
}

// LLMComposer synthesizes answers through a chat model.
//
// Description:
//
//	The system prompt is selected by question language (Chinese when the
//	question contains Han characters, English otherwise) and patched with
//	either timeseries or topology rules. The user message is one compact
//	JSON document; the model never sees raw IRIs or unbounded row sets.
//
// Thread Safety: Safe for concurrent use.
type LLMComposer struct {
	chat   llmclient.ChatClient
	logger *slog.Logger
}

// NewLLMComposer creates the composer.
func NewLLMComposer(chat llmclient.ChatClient, logger *slog.Logger) (*LLMComposer, error) {
	if chat == nil {
		return nil, fmt.Errorf("answer: chat client must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMComposer{chat: chat, logger: logger}, nil
}

// Compose renders the answer, returning an error when the model call or
// context assembly fails.
//
// Thread Safety: Safe for concurrent use.
func (c *LLMComposer) Compose(ctx context.Context, req Request) (string, error) {
	zh := isChinese(req.Question)
	topology := req.Hints.QuestionType == intent.QuestionTopology

	system := augmentPrompt(extractLang(promptAnswerMD, zh), zh, topology)

	payload, err := buildModelContext(req, topology)
	if err != nil {
		return "", fmt.Errorf("assemble answer context: %w", err)
	}

	reply, err := c.chat.Chat(ctx, []llmclient.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: payload},
	}, llmclient.ChatOptions{Temperature: 0.2, MaxTokens: 1024})
	if err != nil {
		return "", fmt.Errorf("answer synthesis: %w", err)
	}

	text := stripFence(reply)
	if text == "" {
		return "", fmt.Errorf("answer synthesis: model returned empty text")
	}
	c.logger.Debug("answer synthesized",
		slog.Bool("zh", zh),
		slog.Bool("topology", topology),
		slog.Int("answer_len", len(text)),
	)
	return text, nil
}

// modelContext is the JSON document given to the model as the user turn.
type modelContext struct {
	Question  string              `json:"question"`
	Hints     map[string]any      `json:"hints"`
	QueryType string              `json:"query_type"`
	Rows      []map[string]string `json:"rows"`
	AllRooms  []string            `json:"topology_all_rooms"`
	Analysis  []analysisView      `json:"analysis"`
	TimeWin   timeWindowContext   `json:"time_window"`
	HasData   bool                `json:"has_data"`
}

type timeWindowContext struct {
	Raw        TimeWindow        `json:"raw"`
	CleanDates map[string]string `json:"clean_dates"`
}

func buildModelContext(req Request, topology bool) (string, error) {
	rowsClean := cleanRows(req.Rows, topology)
	analysisClean := cleanAnalysis(req.Analysis)

	queryType := string(req.Hints.QuestionType)
	if queryType == "" {
		queryType = string(intent.QuestionTimeseries)
	}

	mc := modelContext{
		Question: req.Question,
		Hints: map[string]any{
			"room":            req.Hints.Room,
			"metric":          req.Hints.Metric,
			"need":            req.Hints.Need,
			"question_type":   string(req.Hints.QuestionType),
			"topology_intent": string(req.Hints.TopologyIntent),
		},
		QueryType: queryType,
		Rows:      rowsClean,
		AllRooms:  roomUniverse(req.AllRooms),
		Analysis:  analysisClean,
		TimeWin: timeWindowContext{
			Raw: req.TimeWindow,
			CleanDates: map[string]string{
				"label":            req.TimeWindow.Label,
				"start_local_date": justDate(req.TimeWindow.StartLocal),
				"end_local_date":   justDate(req.TimeWindow.EndLocal),
			},
		},
		HasData: hasData(rowsClean, analysisClean, topology),
	}

	raw, err := json.MarshalIndent(mc, "", "  ")
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// hasData decides whether the context carries answer-worthy data. For
// topology questions the row set itself is the signal; for everything
// else at least one series must have samples.
func hasData(rows []map[string]string, reports []analysisView, topology bool) bool {
	if topology {
		return len(rows) > 0
	}
	for _, rep := range reports {
		if rep.N > 0 {
			return true
		}
	}
	return false
}

// isChinese reports whether the text contains Han characters.
func isChinese(text string) bool {
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// extractLang picks the "## zh" or "## en" section out of the prompt
// document, falling back to the whole document.
func extractLang(md string, zh bool) string {
	target := "en"
	if zh {
		target = "zh"
	}
	parts := strings.Split(strings.TrimSpace(md), "\n## ")
	for _, part := range parts[1:] {
		head, body, found := strings.Cut(part, "\n")
		if !found {
			continue
		}
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(head)), target) {
			return strings.TrimSpace(body)
		}
	}
	return strings.TrimSpace(md)
}

// Language- and task-specific prompt patches appended after the base
// prompt section.
const (
	patchTimeseriesZH = `【补充要求】：
1. 若 analysis 中存在 n>0 的条目，说明确实有数据，请引用这些数值回答；不要说"无数据"。
2. 若要提及具体日期，使用 time_window.clean_dates 中给出的日期。
3. 仅当所有 n==0 时可以说"该时间段没有有效数据"。`

	patchTopologyZH = `【拓扑类问题特别说明】：
1. 你在回答楼宇结构问题（房间、传感器的有无与数量）。
2. 若 rows 是列表，请用"查询结果显示…"这类中性表述。
3. 除非我同时给出了 topology_all_rooms 全集，否则避免"只有"、"全部"、"没有其他"这类绝对化措辞。
4. 若 rows 是计数结果，可以直接说"共有 X 个房间"。
5. 若同时提供了全集（topology_all_rooms）和子集（rows），可以做集合推理，例如指出哪些房间缺少该类传感器。`

	patchTimeseriesEN = `[Additional rules for timeseries]:
1. If any analysis entry has n>0, real data exists: quote those numbers, do not claim there is no data.
2. When mentioning calendar dates, use the dates in time_window.clean_dates. Do not invent dates.
3. Only when every n==0 may you say "no valid data in this period".`

	patchTopologyEN = `[Special rules for topology questions]:
1. You are answering a structural question about rooms and sensors.
2. If rows is a listing, describe it neutrally ("the query returned ...").
3. Avoid absolute terms like "only", "all", "none" unless topology_all_rooms gives you the full universe.
4. If rows carries an aggregate count, you may state "there are X rooms in total".
5. Given both topology_all_rooms (universe) and rows (subset), you may reason about the complement, e.g. rooms lacking that sensor.`
)

// augmentPrompt appends the task-specific rule patch to the base prompt.
func augmentPrompt(base string, zh, topology bool) string {
	var patch string
	switch {
	case topology && zh:
		patch = patchTopologyZH
	case topology:
		patch = patchTopologyEN
	case zh:
		patch = patchTimeseriesZH
	default:
		patch = patchTimeseriesEN
	}
	return strings.TrimSpace(base) + "\n\n" + patch
}
