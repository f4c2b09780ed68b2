// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llmclient

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangChainConfig configures the langchaingo-backed chat client.
type LangChainConfig struct {
	// Model is the chat model identifier (e.g. "deepseek-chat").
	Model string

	// BaseURL is the OpenAI-compatible endpoint. Empty uses the provider default.
	BaseURL string

	// APIKey authenticates against the endpoint.
	APIKey string

	// Timeout bounds a single chat call. Zero uses defaultChatTimeout.
	Timeout time.Duration
}

// defaultChatTimeout bounds a single model round-trip. Query generation and
// answer composition both stay well under this in practice; the cap exists so
// a hung endpoint degrades one step instead of stalling the whole request.
const defaultChatTimeout = 60 * time.Second

// LangChainClient implements ChatClient over an OpenAI-compatible endpoint
// via langchaingo.
//
// Description:
//
//	The underlying model handle is constructed lazily, at most once per
//	client, under a sync.Once guard. Construction failures are sticky: every
//	subsequent Chat call returns the same error rather than re-dialing.
//
// Thread Safety: Safe for concurrent use.
type LangChainClient struct {
	cfg    LangChainConfig
	logger *slog.Logger

	once    sync.Once
	model   llms.Model
	initErr error
}

// NewLangChainClient creates a LangChainClient. The model handle is not
// dialed until the first Chat call.
//
// Inputs:
//
//	cfg    - Endpoint configuration. Model must not be empty.
//	logger - Logger instance. Nil uses slog.Default().
//
// Outputs:
//
//	*LangChainClient - The constructed client. Never nil.
func NewLangChainClient(cfg LangChainConfig, logger *slog.Logger) *LangChainClient {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultChatTimeout
	}
	return &LangChainClient{cfg: cfg, logger: logger}
}

// Chat sends messages and returns the assistant's response text.
//
// Inputs:
//
//	ctx      - Context for cancellation/timeout. Must not be nil.
//	messages - Conversation messages. Must not be empty.
//	opts     - Chat options.
//
// Outputs:
//
//	string - The assistant's response text, whitespace-trimmed.
//	error  - Non-nil if construction, the call, or the response fails.
//
// Thread Safety: Safe for concurrent use.
func (c *LangChainClient) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("llmclient: messages must not be empty")
	}

	c.once.Do(c.initModel)
	if c.initErr != nil {
		return "", fmt.Errorf("llmclient: model unavailable: %w", c.initErr)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.TextParts(chatRole(m.Role), m.Content))
	}

	callOpts := []llms.CallOption{llms.WithTemperature(opts.Temperature)}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}

	start := time.Now()
	resp, err := c.model.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		return "", fmt.Errorf("llmclient: chat failed after %s: %w", time.Since(start).Round(time.Millisecond), err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llmclient: model returned no choices")
	}

	text := strings.TrimSpace(resp.Choices[0].Content)
	if text == "" {
		return "", fmt.Errorf("llmclient: model returned empty content")
	}

	c.logger.Debug("chat completed",
		slog.String("model", c.cfg.Model),
		slog.Int("response_len", len(text)),
		slog.Duration("duration", time.Since(start)),
	)
	return text, nil
}

// initModel constructs the langchaingo model handle. Called exactly once.
func (c *LangChainClient) initModel() {
	if c.cfg.Model == "" {
		c.initErr = fmt.Errorf("model name must not be empty")
		return
	}
	llmOpts := []openai.Option{
		openai.WithModel(c.cfg.Model),
		openai.WithToken(c.cfg.APIKey),
	}
	if c.cfg.BaseURL != "" {
		llmOpts = append(llmOpts, openai.WithBaseURL(c.cfg.BaseURL))
	}

	model, err := openai.New(llmOpts...)
	if err != nil {
		c.initErr = err
		c.logger.Warn("chat model construction failed",
			slog.String("model", c.cfg.Model),
			slog.String("error", err.Error()),
		)
		return
	}
	c.model = model
	c.logger.Info("chat model ready",
		slog.String("model", c.cfg.Model),
		slog.String("base_url", c.cfg.BaseURL),
	)
}

// chatRole maps a wire role string to the langchaingo message type.
// Unknown roles degrade to human turns rather than failing the call.
func chatRole(role string) llms.ChatMessageType {
	switch strings.ToLower(role) {
	case "system":
		return llms.ChatMessageTypeSystem
	case "assistant":
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
