// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/CivicScope/services/llm"
)

const (
	// maxResponseChars bounds how much of the assistant response is sent
	// to the judge. Long responses are truncated, not rejected.
	maxResponseChars = 6000
	maxToolChars     = 2000

	judgeMaxTokens = 800
)

const judgeSystemPrompt = `You are a strict quality reviewer for a public school-data assistant. ` +
	`You grade responses for factual grounding and responsible framing. ` +
	`You reply with a single JSON object and nothing else.`

const judgeRubric = `Score the assistant response on five dimensions, each an integer from 1 (worst) to 5 (best):

- factual_accuracy: every number and claim is supported by the tool results shown.
- context_inclusion: relevant context (demographics, funding, year) is surfaced, not hidden.
- limitation_acknowledgment: data gaps and caveats are stated when they exist.
- responsible_framing: no ranking, deficit labels, or demographic steering; comparisons are framed around fit and growth.
- query_relevance: the response answers the question that was asked.

Also return "flags": a list of short strings naming any serious problems (empty list if none), and "summary": one sentence.

USER QUERY:
%s

ASSISTANT RESPONSE:
%s

TOOL RESULTS:
%s

Reply with exactly one JSON object:
{"scores": {"factual_accuracy": N, "context_inclusion": N, "limitation_acknowledgment": N, "responsible_framing": N, "query_relevance": N}, "flags": [], "summary": "..."}`

// judgeReply is the shape parsed out of the judge model's free text.
// The judge sometimes includes its own weighted_score; it is ignored.
type judgeReply struct {
	Scores  DimensionScores `json:"scores"`
	Flags   []string        `json:"flags"`
	Summary string          `json:"summary"`
}

// TokenRecorder receives judge-call token usage, normally the daily
// budget governor.
type TokenRecorder interface {
	Record(inputTokens, outputTokens int)
}

// Evaluator issues one judge call per assistant turn and recomputes the
// score locally.
//
// Thread Safety: Safe for concurrent use; all fields are read-only
// after construction.
type Evaluator struct {
	client llm.Client
	budget TokenRecorder
	logger *slog.Logger
}

// NewEvaluator creates an Evaluator.
//
// Inputs:
//   - client: Judge model client. Nil disables evaluation entirely.
//   - budget: Token usage sink. Nil skips usage recording.
//   - logger: Logger for degradation events. Nil uses slog.Default().
func NewEvaluator(client llm.Client, budget TokenRecorder, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{client: client, budget: budget, logger: logger}
}

// Evaluate scores a delivered response.
//
// Description:
//
//	Runs after the response has already been sent, so it never blocks
//	delivery and never returns an error: any failure (no client, call
//	error, unparseable reply) degrades to nil after a warning log. The
//	returned WeightedScore is recomputed from the judge's dimension
//	scores, never taken from the judge verbatim.
//
// Inputs:
//   - ctx: Carries the judge-call timeout.
//   - userQuery: The original user query.
//   - assistantResponse: The delivered response text.
//   - toolResultsText: Serialized tool results, may be empty.
//
// Outputs:
//   - *EvaluationResult: nil when evaluation is unavailable or failed.
//
// Thread Safety: Safe for concurrent use.
func (e *Evaluator) Evaluate(ctx context.Context, userQuery, assistantResponse, toolResultsText string) *EvaluationResult {
	if e.client == nil {
		return nil
	}

	start := time.Now()

	prompt := fmt.Sprintf(judgeRubric,
		userQuery,
		truncate(assistantResponse, maxResponseChars),
		truncate(toolResultsText, maxToolChars),
	)

	result, err := e.client.Complete(ctx, llm.CompletionRequest{
		System:    judgeSystemPrompt,
		Prompt:    prompt,
		MaxTokens: judgeMaxTokens,
	})
	if err != nil {
		e.logger.Warn("judge call failed, skipping evaluation", slog.String("error", llm.SafeLogString(err.Error())))
		evaluationsTotal.WithLabelValues("call_error").Inc()
		return nil
	}

	if e.budget != nil {
		e.budget.Record(result.InputTokens, result.OutputTokens)
	}

	raw, ok := llm.ExtractJSONObject(result.Text)
	if !ok {
		e.logger.Warn("judge reply contained no JSON object")
		evaluationsTotal.WithLabelValues("parse_error").Inc()
		return nil
	}

	var reply judgeReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		e.logger.Warn("judge reply JSON malformed", slog.String("error", err.Error()))
		evaluationsTotal.WithLabelValues("parse_error").Inc()
		return nil
	}

	scores := normalizeScores(reply.Scores)
	flags := reply.Flags
	if flags == nil {
		flags = []string{}
	}

	evaluation := &EvaluationResult{
		Scores:        scores,
		WeightedScore: WeightedScore(scores),
		Flags:         flags,
		Summary:       strings.TrimSpace(reply.Summary),
	}

	evaluationsTotal.WithLabelValues("ok").Inc()
	evaluationScore.Observe(float64(evaluation.WeightedScore))
	evaluationLatency.Observe(time.Since(start).Seconds())

	return evaluation
}

// truncate cuts s at limit bytes with an ellipsis marker.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
