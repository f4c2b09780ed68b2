// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package answer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/AleutianAI/brickqa/services/buildingqa/analysis"
	"github.com/AleutianAI/brickqa/services/buildingqa/intent"
	"github.com/AleutianAI/brickqa/services/buildingqa/llmclient"
	"github.com/AleutianAI/brickqa/services/buildingqa/sparql"
)

type mockChat struct {
	reply        string
	err          error
	lastMessages []llmclient.Message
}

func (m *mockChat) Chat(_ context.Context, messages []llmclient.Message, _ llmclient.ChatOptions) (string, error) {
	m.lastMessages = messages
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *mockChat) userPayload(t *testing.T) map[string]any {
	t.Helper()
	for _, msg := range m.lastMessages {
		if msg.Role == "user" {
			var payload map[string]any
			if err := json.Unmarshal([]byte(msg.Content), &payload); err != nil {
				t.Fatalf("user message is not JSON: %v", err)
			}
			return payload
		}
	}
	t.Fatal("no user message sent")
	return nil
}

func (m *mockChat) systemPrompt(t *testing.T) string {
	t.Helper()
	for _, msg := range m.lastMessages {
		if msg.Role == "system" {
			return msg.Content
		}
	}
	t.Fatal("no system message sent")
	return ""
}

func TestIsChinese(t *testing.T) {
	if !isChinese("1205房间昨天的温度") {
		t.Error("expected Chinese detection")
	}
	if isChinese("what was the temperature yesterday") {
		t.Error("expected English detection")
	}
}

func TestExtractLang(t *testing.T) {
	md := "# title\n\n## zh\n\n中文提示\n\n## en\n\nenglish prompt\n"
	if got := extractLang(md, true); got != "中文提示" {
		t.Errorf("zh section = %q", got)
	}
	if got := extractLang(md, false); got != "english prompt" {
		t.Errorf("en section = %q", got)
	}
	if got := extractLang("no sections here", false); got != "no sections here" {
		t.Errorf("fallback = %q", got)
	}
}

func TestCompose_EnglishTimeseries(t *testing.T) {
	chat := &mockChat{reply: "The average temperature was 21.5 °C."}
	c, err := NewLLMComposer(chat, nil)
	if err != nil {
		t.Fatalf("NewLLMComposer: %v", err)
	}

	avg := 21.5
	req := Request{
		Question: "what was the temperature in room 1205 yesterday?",
		Hints: intent.Hints{
			QuestionType: intent.QuestionTimeseries,
			Room:         "1205",
			Metric:       "temp",
			Need:         []string{"avg"},
		},
		Rows: []sparql.Row{{"room": "urn:demo-building#Room_1205", "tsid": "r1205.temp"}},
		Analysis: []analysis.SeriesReport{{
			TSID: "r1205.temp", N: 24,
			Stats: map[string]*analysis.StatValue{"avg": {Number: &avg}},
		}},
		TimeWindow: TimeWindow{
			StartLocal: "2024-05-01T00:00:00+08:00",
			EndLocal:   "2024-05-02T00:00:00+08:00",
			Label:      "yesterday",
			OK:         true,
		},
	}

	got, err := c.Compose(context.Background(), req)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if got != "The average temperature was 21.5 °C." {
		t.Errorf("answer = %q", got)
	}

	system := chat.systemPrompt(t)
	if !strings.Contains(system, "Additional rules for timeseries") {
		t.Error("expected English timeseries patch in system prompt")
	}

	payload := chat.userPayload(t)
	if payload["has_data"] != true {
		t.Error("expected has_data=true with n>0 analysis")
	}
	tw := payload["time_window"].(map[string]any)
	dates := tw["clean_dates"].(map[string]any)
	if dates["start_local_date"] != "2024-05-01" {
		t.Errorf("start_local_date = %v", dates["start_local_date"])
	}
}

func TestCompose_ChinesePromptSelection(t *testing.T) {
	chat := &mockChat{reply: "昨天的平均温度是21.5°C。"}
	c, _ := NewLLMComposer(chat, nil)

	_, err := c.Compose(context.Background(), Request{
		Question: "1205房间昨天的温度是多少？",
		Hints:    intent.Hints{QuestionType: intent.QuestionTimeseries},
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	system := chat.systemPrompt(t)
	if !strings.Contains(system, "补充要求") {
		t.Error("expected Chinese patch in system prompt")
	}
	if strings.Contains(system, "Additional rules") {
		t.Error("English patch must not leak into the Chinese prompt")
	}
}

func TestCompose_TopologyUsesUniverseAndRowSignal(t *testing.T) {
	chat := &mockChat{reply: "The query returned 3 rooms."}
	c, _ := NewLLMComposer(chat, nil)

	req := Request{
		Question: "which rooms have a CO2 sensor?",
		Hints: intent.Hints{
			QuestionType:   intent.QuestionTopology,
			TopologyIntent: intent.TopologySensorExistence,
		},
		Rows: []sparql.Row{{"room": "urn:demo-building#Room_1"}},
		AllRooms: []sparql.Row{
			{"room": "urn:demo-building#Room_1"},
			{"room": "urn:demo-building#Room_2"},
		},
	}
	if _, err := c.Compose(context.Background(), req); err != nil {
		t.Fatalf("Compose: %v", err)
	}

	if !strings.Contains(chat.systemPrompt(t), "topology") {
		t.Error("expected topology patch in system prompt")
	}
	payload := chat.userPayload(t)
	universe := payload["topology_all_rooms"].([]any)
	if len(universe) != 2 {
		t.Errorf("universe = %v", universe)
	}
	// Topology: non-empty rows are themselves the data signal, no
	// analysis required.
	if payload["has_data"] != true {
		t.Error("expected has_data=true from non-empty topology rows")
	}
}

func TestCompose_NoDataSignal(t *testing.T) {
	chat := &mockChat{reply: "No data was found for that period."}
	c, _ := NewLLMComposer(chat, nil)

	req := Request{
		Question: "temperature in room 9999?",
		Hints:    intent.Hints{QuestionType: intent.QuestionTimeseries},
		Analysis: []analysis.SeriesReport{{TSID: "r9999.temp", N: 0}},
	}
	if _, err := c.Compose(context.Background(), req); err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if chat.userPayload(t)["has_data"] != false {
		t.Error("expected has_data=false when every series is empty")
	}
}

func TestCompose_PropagatesChatError(t *testing.T) {
	c, _ := NewLLMComposer(&mockChat{err: errors.New("model offline")}, nil)

	if _, err := c.Compose(context.Background(), Request{Question: "q"}); err == nil {
		t.Fatal("expected error when the chat backend fails")
	}
}

func TestCompose_StripsReplyFence(t *testing.T) {
	chat := &mockChat{reply: "```\nfenced answer\n```"}
	c, _ := NewLLMComposer(chat, nil)

	got, err := c.Compose(context.Background(), Request{Question: "q"})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if got != "fenced answer" {
		t.Errorf("answer = %q", got)
	}
}
