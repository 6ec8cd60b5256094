// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package assistant wires the trust pipeline around each conversational
// turn: classification, rate and budget governance, response delivery,
// and the asynchronous evaluation and suggestion paths.
package assistant

import (
	"github.com/AleutianAI/CivicScope/services/assistant/suggest"
)

// QueryRequest is the body of POST /v1/assistant/query.
type QueryRequest struct {
	Query string `json:"query" binding:"required"`
	// Identity keys the rate windows. Empty falls back to client IP.
	Identity string `json:"identity,omitempty"`
}

// QueryResponse is the turn result returned to the caller. Suggestions
// and evaluation are produced asynchronously and fetched separately.
type QueryResponse struct {
	ID       string `json:"id"`
	Response string `json:"response"`
	Blocked  bool   `json:"blocked"`
	// Reframe is populated only when Blocked is true.
	Reframe string `json:"reframe,omitempty"`
	// Flagged is true when a flag rule prepended context to the response.
	Flagged bool `json:"flagged,omitempty"`
}

// FollowupsResponse is the body of GET /v1/assistant/query/:id/followups.
type FollowupsResponse struct {
	ID          string                   `json:"id"`
	Status      string                   `json:"status"` // pending | ready
	Suggestions []suggest.SuggestedQuery `json:"suggestions,omitempty"`
}

// FeedbackRequest is the body of POST /v1/assistant/feedback.
type FeedbackRequest struct {
	Query    string `json:"query" binding:"required"`
	Response string `json:"response" binding:"required"`
	Feedback string `json:"feedback,omitempty"`
}

// FeedbackResponse acknowledges a logged feedback event.
type FeedbackResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	// RetryAfterSeconds accompanies rate and budget rejections.
	RetryAfterSeconds int `json:"retry_after_seconds,omitempty"`
}
