// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package assistant

import (
	"context"
	"fmt"

	"github.com/AleutianAI/CivicScope/services/assistant/suggest"
	"github.com/AleutianAI/CivicScope/services/llm"
)

// TurnResult is what the responder produces for one query.
type TurnResult struct {
	Text        string
	ToolResults []suggest.ToolResult
	// Token usage recorded against the daily budget.
	InputTokens  int
	OutputTokens int
}

// Responder produces the assistant answer for a governed query. The
// data-exploration machinery behind it (query builder, tool loop, UI)
// is a collaborator; this pipeline only needs the finished text, the
// tool results for the suggestion fallback, and the token usage.
type Responder interface {
	Respond(ctx context.Context, query string) (*TurnResult, error)
}

const responderSystemPrompt = `You are a careful assistant for exploring public school data. ` +
	`You answer with specific figures from the data available to you, state limitations ` +
	`plainly, and never rank schools or steer by demographics. Frame comparisons around ` +
	`fit and growth.`

// llmResponder answers directly through a completion client. It is the
// default wiring when no richer data-exploration backend is attached.
type llmResponder struct {
	client llm.Client
}

// NewLLMResponder wraps a completion client as a Responder.
func NewLLMResponder(client llm.Client) Responder {
	return &llmResponder{client: client}
}

func (r *llmResponder) Respond(ctx context.Context, query string) (*TurnResult, error) {
	if r.client == nil {
		return nil, fmt.Errorf("responder: no model client configured")
	}

	result, err := r.client.Complete(ctx, llm.CompletionRequest{
		System:    responderSystemPrompt,
		Prompt:    query,
		MaxTokens: 2048,
	})
	if err != nil {
		return nil, fmt.Errorf("responder: %w", err)
	}

	return &TurnResult{
		Text:         result.Text,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
	}, nil
}
