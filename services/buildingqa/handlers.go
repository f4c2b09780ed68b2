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
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/brickqa/services/buildingqa/analysis"
	"github.com/AleutianAI/brickqa/services/buildingqa/workflow"
)

// Handlers holds the HTTP handlers for the building QA service.
type Handlers struct {
	service *Service
}

// NewHandlers creates the handler set for a service.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// ErrorResponse is the JSON body returned for all request errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// AskRequest is the body for POST /v1/buildingqa/ask.
type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

// AskResponse carries the synthesized answer plus enough diagnostics to
// understand how the pipeline arrived at it.
type AskResponse struct {
	Answer      string         `json:"answer"`
	Diagnostics AskDiagnostics `json:"diagnostics"`
}

// AskDiagnostics summarizes the pipeline run for one question.
type AskDiagnostics struct {
	QuestionType     string                  `json:"question_type"`
	TimeWindow       string                  `json:"time_window"`
	Rows             int                     `json:"rows"`
	Retries          int                     `json:"retries"`
	FallbackStrategy string                  `json:"fallback_strategy"`
	Analysis         []analysis.SeriesReport `json:"analysis,omitempty"`
	Trace            []string                `json:"trace"`
}

// getOrCreateRequestID returns the inbound X-Request-ID header, minting a
// fresh UUID when the caller did not send one. The ID is echoed back on the
// response so callers can correlate logs.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := strings.TrimSpace(c.GetHeader("X-Request-ID"))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

// HandleAsk answers one natural-language building question.
//
// Description:
//
//	Runs the full pipeline: intent extraction, context retrieval, time
//	normalization, query generation and execution with escalation,
//	statistics where requested, and answer synthesis. The pipeline never
//	fails a request outright; degraded runs still return 200 with an
//	apologetic answer and the trace showing where the run degraded.
//
// Request Body:
//
//	AskRequest (question is required and must be non-blank)
//
// Response:
//
//	200 OK: AskResponse
//	400 Bad Request: Missing or blank question
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleAsk(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAsk")

	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "question is required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "question must not be blank",
			Code:  "INVALID_PARAMETER",
		})
		return
	}

	state := h.service.Ask(c.Request.Context(), req.Question)

	logger.Info("question answered",
		"question_type", string(state.Hints.QuestionType),
		"rows", len(state.Rows),
		"retries", state.Retries,
		"fallback_strategy", string(state.FallbackStrategy))

	c.JSON(http.StatusOK, AskResponse{
		Answer: state.Answer,
		Diagnostics: AskDiagnostics{
			QuestionType:     string(state.Hints.QuestionType),
			TimeWindow:       state.TimeWindow.Label,
			Rows:             len(state.Rows),
			Retries:          state.Retries,
			FallbackStrategy: string(state.FallbackStrategy),
			Analysis:         state.Analysis,
			Trace:            state.Trace,
		},
	})
}

// HandleHealth reports process liveness.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleReady reports whether the service can take traffic. The pipeline
// is wired at startup, so readiness reduces to the service being present.
func (h *Handlers) HandleReady(c *gin.Context) {
	if h.service == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "pipeline not initialized",
			Code:  "NOT_READY",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

var _ Runner = (*workflow.Pipeline)(nil)
