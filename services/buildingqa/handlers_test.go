// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package buildingqa

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/brickqa/services/buildingqa/intent"
	"github.com/AleutianAI/brickqa/services/buildingqa/sparql"
	"github.com/AleutianAI/brickqa/services/buildingqa/workflow"
)

// scriptRunner returns a canned pipeline state and records the question.
type scriptRunner struct {
	state        *workflow.State
	lastQuestion string
	sawDeadline  bool
}

func (r *scriptRunner) Run(ctx context.Context, question string) *workflow.State {
	r.lastQuestion = question
	_, r.sawDeadline = ctx.Deadline()
	if r.state != nil {
		return r.state
	}
	s := workflow.NewState(question)
	s.Answer = "canned answer"
	return s
}

func setupTestRouter(t *testing.T, runner Runner) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc, err := NewService(runner, time.Minute, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	router := gin.New()
	RegisterRoutes(router.Group("/v1"), NewHandlers(svc))
	return router
}

func askBody(t *testing.T, question string) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(AskRequest{Question: question})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewReader(b)
}

func TestHandleAsk_Success(t *testing.T) {
	state := workflow.NewState("how warm is room 1205 now?")
	state.Hints = intent.Hints{QuestionType: intent.QuestionTimeseries}
	state.Rows = []sparql.Row{{"tsid": "b1.1205.temp"}}
	state.Answer = "Room 1205 is at 24.1 degrees."
	state.Retries = 1
	state.FallbackStrategy = workflow.FallbackLevel1
	state.TimeWindow.Label = "last 1 hours"
	state.Trace = []string{
		workflow.StepIntent, workflow.StepRAG, workflow.StepNormalizeTime,
		workflow.StepGenerateSPARQL, workflow.StepExecuteSPARQL,
		workflow.StepAnswer,
	}
	runner := &scriptRunner{state: state}
	router := setupTestRouter(t, runner)

	req, _ := http.NewRequest("POST", "/v1/buildingqa/ask", askBody(t, state.Question))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	if runner.lastQuestion != state.Question {
		t.Errorf("question passed to pipeline = %q, want %q", runner.lastQuestion, state.Question)
	}
	if !runner.sawDeadline {
		t.Error("pipeline context had no deadline")
	}

	var resp AskResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Answer != state.Answer {
		t.Errorf("answer = %q, want %q", resp.Answer, state.Answer)
	}
	if resp.Diagnostics.QuestionType != string(intent.QuestionTimeseries) {
		t.Errorf("question_type = %q, want %q", resp.Diagnostics.QuestionType, intent.QuestionTimeseries)
	}
	if resp.Diagnostics.Rows != 1 {
		t.Errorf("rows = %d, want 1", resp.Diagnostics.Rows)
	}
	if resp.Diagnostics.Retries != 1 {
		t.Errorf("retries = %d, want 1", resp.Diagnostics.Retries)
	}
	if resp.Diagnostics.FallbackStrategy != string(workflow.FallbackLevel1) {
		t.Errorf("fallback_strategy = %q, want %q", resp.Diagnostics.FallbackStrategy, workflow.FallbackLevel1)
	}
	if resp.Diagnostics.TimeWindow != "last 1 hours" {
		t.Errorf("time_window = %q, want %q", resp.Diagnostics.TimeWindow, "last 1 hours")
	}
	if len(resp.Diagnostics.Trace) != 6 || resp.Diagnostics.Trace[5] != workflow.StepAnswer {
		t.Errorf("trace = %v, want 6 steps ending in %q", resp.Diagnostics.Trace, workflow.StepAnswer)
	}
}

func TestHandleAsk_MissingQuestion(t *testing.T) {
	runner := &scriptRunner{}
	router := setupTestRouter(t, runner)

	req, _ := http.NewRequest("POST", "/v1/buildingqa/ask", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d: %s", http.StatusBadRequest, w.Code, w.Body.String())
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Code != "MISSING_PARAMETER" {
		t.Errorf("code = %q, want MISSING_PARAMETER", resp.Code)
	}
	if runner.lastQuestion != "" {
		t.Error("pipeline was invoked for an invalid request")
	}
}

func TestHandleAsk_BlankQuestion(t *testing.T) {
	router := setupTestRouter(t, &scriptRunner{})

	req, _ := http.NewRequest("POST", "/v1/buildingqa/ask", askBody(t, "   "))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Code != "INVALID_PARAMETER" {
		t.Errorf("code = %q, want INVALID_PARAMETER", resp.Code)
	}
}

func TestHandleAsk_RequestIDEchoed(t *testing.T) {
	router := setupTestRouter(t, &scriptRunner{})

	req, _ := http.NewRequest("POST", "/v1/buildingqa/ask", askBody(t, "list rooms"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "req-42" {
		t.Errorf("X-Request-ID = %q, want req-42", got)
	}
}

func TestHandleAsk_RequestIDMinted(t *testing.T) {
	router := setupTestRouter(t, &scriptRunner{})

	req, _ := http.NewRequest("POST", "/v1/buildingqa/ask", askBody(t, "list rooms"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("response carries no X-Request-ID")
	}
}

func TestHandleHealth(t *testing.T) {
	router := setupTestRouter(t, &scriptRunner{})

	req, _ := http.NewRequest("GET", "/v1/buildingqa/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestHandleReady(t *testing.T) {
	router := setupTestRouter(t, &scriptRunner{})

	req, _ := http.NewRequest("GET", "/v1/buildingqa/ready", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestNewService_NilPipeline(t *testing.T) {
	if _, err := NewService(nil, time.Minute, nil); err == nil {
		t.Fatal("expected error for nil pipeline")
	}
}
