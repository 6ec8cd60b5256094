// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides the model client used for response evaluation and
// suggestion generation, plus helpers for safely logging and parsing
// model output.
package llm

import "context"

// CompletionRequest is a single-shot prompt for a model call.
type CompletionRequest struct {
	// System is the system prompt. Empty means no system block.
	System string
	// Prompt is the user-turn content.
	Prompt string
	// MaxTokens caps the response length. 0 uses the client default.
	MaxTokens int
	// Temperature overrides the sampling temperature when non-nil.
	Temperature *float32
}

// CompletionResult is the model's reply plus the token usage the
// budget governor records.
type CompletionResult struct {
	Text         string
	InputTokens  int
	OutputTokens int
	Model        string
}

// Client is a single-shot completion client.
//
// Description:
//
//	Both the quality evaluator and the suggestion generator make one
//	call per query and parse the reply themselves, so the surface is a
//	single Complete method. A nil Client is the degraded mode: callers
//	must treat it as "model unavailable" and skip the call.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error)
}
