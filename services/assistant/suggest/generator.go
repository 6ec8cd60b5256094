// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/CivicScope/services/assistant/guardrail"
	"github.com/AleutianAI/CivicScope/services/llm"
)

const suggestMaxTokens = 400

const suggestSystemPrompt = `You suggest follow-up questions for a public school-data assistant. ` +
	`Suggestions must be neutral data-exploration questions, never rankings or ` +
	`deficit framing. Reply with a single JSON object and nothing else.`

const suggestPromptTemplate = `Given this exchange, suggest exactly %d follow-up questions a curious parent or researcher might ask next. Each must be under %d characters and carry a category from: explore, compare, explain, visualize.

USER QUERY:
%s

ASSISTANT RESPONSE:
%s

TOOL CONTEXT:
%s

Reply with exactly one JSON object:
{"suggestions": [{"text": "...", "category": "explore"}]}`

// modelReply is the shape parsed out of the generative reply.
type modelReply struct {
	Suggestions []SuggestedQuery `json:"suggestions"`
}

// Validator re-classifies candidate suggestion texts. Satisfied by
// guardrail.Classifier.
type Validator interface {
	Classify(query string) guardrail.ClassificationResult
}

// TokenRecorder receives suggestion-call token usage.
type TokenRecorder interface {
	Record(inputTokens, outputTokens int)
}

// Generator produces validated follow-up suggestions.
//
// Thread Safety: Safe for concurrent use; all fields are read-only
// after construction.
type Generator struct {
	client    llm.Client
	validator Validator
	budget    TokenRecorder
	cache     *Cache
	logger    *slog.Logger
}

// NewGenerator creates a Generator.
//
// Inputs:
//   - client: Generative model client. Nil disables the model path;
//     Generate then always returns nil and callers use the fallback.
//   - validator: Pattern classifier used to re-check every candidate.
//     Must not be nil.
//   - budget: Token usage sink. Nil skips usage recording.
//   - cache: Optional suggestion cache. Nil disables caching.
//   - logger: Nil uses slog.Default().
func NewGenerator(client llm.Client, validator Validator, budget TokenRecorder, cache *Cache, logger *slog.Logger) *Generator {
	if validator == nil {
		panic("suggest.NewGenerator: validator must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		client:    client,
		validator: validator,
		budget:    budget,
		cache:     cache,
		logger:    logger,
	}
}

// Generate produces up to three validated suggestions from the model.
//
// Description:
//
//	Issues one generative call, truncates each candidate to the length
//	cap, drops candidates with an unknown category, then re-runs every
//	survivor through the pattern classifier and discards anything that
//	would itself have been blocked. A nil return (never an empty slice)
//	means nothing safe was produced and the caller should use
//	GenerateFallback instead.
//
// Outputs:
//   - []SuggestedQuery: 1-3 validated suggestions, or nil.
//
// Thread Safety: Safe for concurrent use.
func (g *Generator) Generate(ctx context.Context, userQuery, assistantResponse, toolContext string) []SuggestedQuery {
	if g.client == nil {
		return nil
	}

	if cached, ok := g.cache.Get(ctx, userQuery, assistantResponse); ok {
		suggestionsTotal.WithLabelValues("cache_hit").Inc()
		return cached
	}

	prompt := fmt.Sprintf(suggestPromptTemplate,
		suggestionCount, maxSuggestionChars,
		userQuery,
		truncate(assistantResponse, 4000),
		truncate(toolContext, 1500),
	)

	result, err := g.client.Complete(ctx, llm.CompletionRequest{
		System:    suggestSystemPrompt,
		Prompt:    prompt,
		MaxTokens: suggestMaxTokens,
	})
	if err != nil {
		g.logger.Warn("suggestion call failed, using fallback",
			slog.String("error", llm.SafeLogString(err.Error())))
		suggestionsTotal.WithLabelValues("call_error").Inc()
		return nil
	}

	if g.budget != nil {
		g.budget.Record(result.InputTokens, result.OutputTokens)
	}

	raw, ok := llm.ExtractJSONObject(result.Text)
	if !ok {
		g.logger.Warn("suggestion reply contained no JSON object")
		suggestionsTotal.WithLabelValues("parse_error").Inc()
		return nil
	}

	var reply modelReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		g.logger.Warn("suggestion reply JSON malformed", slog.String("error", err.Error()))
		suggestionsTotal.WithLabelValues("parse_error").Inc()
		return nil
	}

	validated := g.validate(reply.Suggestions)
	if len(validated) == 0 {
		suggestionsTotal.WithLabelValues("all_blocked").Inc()
		return nil
	}

	g.cache.Put(ctx, userQuery, assistantResponse, validated)
	suggestionsTotal.WithLabelValues("ok").Inc()
	return validated
}

// validate truncates, category-checks, and re-classifies candidates.
func (g *Generator) validate(candidates []SuggestedQuery) []SuggestedQuery {
	var out []SuggestedQuery
	for _, c := range candidates {
		if len(out) == suggestionCount {
			break
		}

		text := strings.TrimSpace(truncate(c.Text, maxSuggestionChars))
		if text == "" {
			continue
		}
		if !validCategory(c.Category) {
			continue
		}

		// A suggestion the classifier would block must never be shown.
		if verdict := g.validator.Classify(text); verdict.Blocked {
			g.logger.Info("suggestion discarded by classifier",
				slog.String("rule", verdict.Rule))
			suggestionsBlockedTotal.Inc()
			continue
		}

		out = append(out, SuggestedQuery{Text: text, Category: c.Category})
	}
	return out
}

// truncate cuts s at limit bytes without an ellipsis; suggestions have a
// hard length contract.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
