// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llmclient defines the minimal chat interface the Building Q&A
// collaborators use to talk to a language model, plus the langchaingo-backed
// implementation. Collaborators (intent understander, query generators,
// answer composer) depend only on ChatClient so tests can substitute a mock
// without any network or model handle.
//
// Thread Safety:
//
//	All implementations in this package must be safe for concurrent use.
package llmclient

import "context"

// Message is one turn of a chat conversation.
type Message struct {
	// Role is "system", "user", or "assistant".
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// ChatOptions holds provider-agnostic options for a chat request.
type ChatOptions struct {
	// Temperature controls randomness (0.0-1.0). The zero value is an
	// explicit "most deterministic" setting, matching how the pipeline
	// uses the model (structured extraction and query generation).
	Temperature float64

	// MaxTokens limits the response length. Zero uses the provider default.
	MaxTokens int
}

// ChatClient is the minimal interface used by every LLM-backed collaborator.
//
// Description:
//
//	The intent understander, the fallback query generators, and the answer
//	composer only need simple chat (no tool calls, no streaming). This
//	minimal interface makes adapters trivial for any provider.
//
// Thread Safety: Implementations must be safe for concurrent use.
type ChatClient interface {
	// Chat sends messages and returns the assistant's response text.
	//
	// Inputs:
	//   - ctx: Context for cancellation and timeout.
	//   - messages: Conversation messages (system, user, assistant).
	//   - opts: Provider-agnostic chat options.
	//
	// Outputs:
	//   - string: The assistant's response text.
	//   - error: Non-nil on failure.
	Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error)
}
