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
	"errors"
	"strings"
	"testing"

	"github.com/AleutianAI/brickqa/services/buildingqa/intent"
	"github.com/AleutianAI/brickqa/services/buildingqa/llmclient"
)

func TestTemplateGenerator_TimeseriesWithRoomHint(t *testing.T) {
	g := NewTemplateGenerator(nil)
	hints := intent.Hints{
		QuestionType: intent.QuestionTimeseries,
		Room:         "1205",
		Metric:       "temp",
	}

	q, err := g.Generate(context.Background(), "what was the temperature in 1205 yesterday", "", hints)
	if err != nil {
		t.Fatalf("template generator must not fail: %v", err)
	}
	if !strings.Contains(q, `"_1205"`) {
		t.Error("expected room-scoped query")
	}
	if !strings.Contains(q, "brick:Air_Temperature_Sensor") {
		t.Error("expected temperature sensor class")
	}
}

func TestTemplateGenerator_RoomSniffedFromQuestion(t *testing.T) {
	g := NewTemplateGenerator(nil)
	hints := intent.Hints{QuestionType: intent.QuestionTimeseries}

	q, _ := g.Generate(context.Background(), "how humid is room 42?", "", hints)
	if !strings.Contains(q, `"_42"`) {
		t.Errorf("expected room 42 sniffed from text, got:\n%s", q)
	}
	if !strings.Contains(q, "brick:Relative_Humidity_Sensor") {
		t.Error("expected humidity metric inferred from 'humid'")
	}
}

func TestTemplateGenerator_NoRoomFallsBackToCatchAll(t *testing.T) {
	g := NewTemplateGenerator(nil)
	hints := intent.Hints{QuestionType: intent.QuestionTimeseries}

	q, _ := g.Generate(context.Background(), "show me some sensor data", "", hints)
	if strings.Contains(q, "STRENDS") {
		t.Error("expected no room filter")
	}
	if !strings.Contains(q, "LIMIT 20") {
		t.Errorf("expected the catch-all point listing, got:\n%s", q)
	}
}

func TestTemplateGenerator_TopologyRouting(t *testing.T) {
	g := NewTemplateGenerator(nil)
	cases := []struct {
		name   string
		intent intent.TopologyIntent
		want   string
	}{
		{"count", intent.TopologyCountRooms, "COUNT(DISTINCT ?room)"},
		{"list", intent.TopologyListRooms, "SELECT DISTINCT ?room"},
		{"existence", intent.TopologySensorExistence, "?ptType"},
		{"unrecognized defaults to list", intent.TopologyNone, "SELECT DISTINCT ?room"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hints := intent.Hints{
				QuestionType:   intent.QuestionTopology,
				TopologyIntent: tc.intent,
			}
			q, err := g.Generate(context.Background(), "rooms?", "", hints)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(q, tc.want) {
				t.Errorf("expected %q in query, got:\n%s", tc.want, q)
			}
		})
	}
}

func TestInferMetricFromText_CO2BeforeTemp(t *testing.T) {
	// "carbon dioxide" questions often also say "level": the ordered
	// keyword table must settle on co2, not a later match.
	if got := inferMetricFromText("what is the carbon dioxide level in room 3"); got != "co2" {
		t.Errorf("got %q, want co2", got)
	}
	if got := inferMetricFromText("is it warm in here"); got != "temp" {
		t.Errorf("got %q, want temp", got)
	}
	if got := inferMetricFromText("who built this place"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

// mockChat is a scripted ChatClient for generator tests.
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

func TestLLMGenerator_IgnoresRetrievedContext(t *testing.T) {
	chat := &mockChat{reply: "```sparql\nSELECT ?room WHERE { ?room a brick:Room . }\n```"}
	g, err := NewLLMGenerator(chat, nil)
	if err != nil {
		t.Fatalf("NewLLMGenerator: %v", err)
	}

	q, err := g.Generate(context.Background(), "which rooms exist?", "secret context block", intent.Hints{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(q, "SELECT ?room") {
		t.Errorf("expected cleaned query, got: %q", q)
	}
	if !strings.HasPrefix(q, "PREFIX brick:") {
		t.Errorf("expected prefixes prepended, got: %q", q)
	}
	for _, msg := range chat.lastMessages {
		if strings.Contains(msg.Content, "secret context block") {
			t.Error("pure-model fallback must not see the retrieved context")
		}
	}
}

func TestLLMGenerator_PropagatesChatError(t *testing.T) {
	chat := &mockChat{err: errors.New("model offline")}
	g, _ := NewLLMGenerator(chat, nil)

	if _, err := g.Generate(context.Background(), "q", "", intent.Hints{}); err == nil {
		t.Fatal("expected error when the chat backend fails")
	}
}

func TestAugmentedGenerator_IncludesRetrievedContext(t *testing.T) {
	chat := &mockChat{reply: "SELECT ?s WHERE { ?s ?p ?o }"}
	g, err := NewAugmentedGenerator(chat, nil)
	if err != nil {
		t.Fatalf("NewAugmentedGenerator: %v", err)
	}

	if _, err := g.Generate(context.Background(), "q", "room 12 has a co2 sensor", intent.Hints{}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	found := false
	for _, msg := range chat.lastMessages {
		if strings.Contains(msg.Content, "room 12 has a co2 sensor") {
			found = true
		}
	}
	if !found {
		t.Error("augmented fallback must include the retrieved context in its prompt")
	}
}
