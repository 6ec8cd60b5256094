// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package eval scores delivered assistant responses with an external
// judge model and durably records the ones that need human review.
package eval

import "time"

// DimensionScores holds the five rubric dimensions, each 1-5.
type DimensionScores struct {
	FactualAccuracy          int `json:"factual_accuracy"`
	ContextInclusion         int `json:"context_inclusion"`
	LimitationAcknowledgment int `json:"limitation_acknowledgment"`
	ResponsibleFraming       int `json:"responsible_framing"`
	QueryRelevance           int `json:"query_relevance"`
}

// EvaluationResult is one scored assistant turn.
//
// Description:
//
//	WeightedScore is always the locally recomputed, capped value; the
//	score the judge model reports for itself is informational only and
//	discarded. Immutable after creation.
type EvaluationResult struct {
	Scores        DimensionScores `json:"scores"`
	WeightedScore int             `json:"weighted_score"`
	Flags         []string        `json:"flags"`
	Summary       string          `json:"summary"`
	AutoLogged    bool            `json:"auto_logged,omitempty"`
}

// LogType distinguishes automatic low-score logging from explicit user flags.
type LogType string

const (
	LogTypeAuto        LogType = "auto"
	LogTypeUserFlagged LogType = "user_flagged"
)

// LogRequest is the caller-facing input to the Logger.
type LogRequest struct {
	UserQuery         string
	AssistantResponse string
	ToolCalls         []string
	Evaluation        *EvaluationResult
	LogType           LogType
	UserFeedback      string
}

// EvaluationLogEntry is the durable record shape, one per JSONL line.
type EvaluationLogEntry struct {
	ID                string         `json:"id"`
	Timestamp         time.Time      `json:"timestamp"`
	LogType           LogType        `json:"log_type"`
	UserQuery         string         `json:"user_query"`
	AssistantResponse string         `json:"assistant_response"`
	ToolCalls         []string       `json:"tool_calls,omitempty"`
	Evaluation        *loggedScoring `json:"evaluation,omitempty"`
	UserFeedback      string         `json:"user_feedback,omitempty"`
}

// loggedScoring flattens an EvaluationResult plus its derived
// confidence label into the persisted record.
type loggedScoring struct {
	Scores          DimensionScores `json:"scores"`
	WeightedScore   int             `json:"weighted_score"`
	ConfidenceLevel string          `json:"confidence_level"`
	Flags           []string        `json:"flags,omitempty"`
	Summary         string          `json:"summary,omitempty"`
}
