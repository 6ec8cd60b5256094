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
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/CivicScope/services/assistant/eval"
	"github.com/AleutianAI/CivicScope/services/assistant/govern"
	"github.com/AleutianAI/CivicScope/services/assistant/guardrail"
	"github.com/AleutianAI/CivicScope/services/assistant/suggest"
	"github.com/AleutianAI/CivicScope/services/llm"
)

var turnTracer = otel.Tracer("civic.assistant")

// asyncTurnTimeout bounds the post-delivery evaluation and suggestion
// work, which runs on a context detached from the request.
const asyncTurnTimeout = 60 * time.Second

// Handlers carries the pipeline components for the HTTP surface.
//
// Thread Safety: Safe for concurrent use; every component it holds is.
type Handlers struct {
	classifier *guardrail.Classifier
	rates      *govern.RateLimiter
	budget     *govern.DailyBudget
	responder  Responder
	evaluator  *eval.Evaluator
	evalLogger *eval.Logger
	suggester  *suggest.Generator
	turns      *turnStore
	logger     *slog.Logger
}

// NewHandlers assembles the turn pipeline.
//
// Inputs:
//   - classifier, rates, budget, responder, evaluator, evalLogger,
//     suggester: Pipeline components. All required.
//   - logger: Nil uses slog.Default().
func NewHandlers(
	classifier *guardrail.Classifier,
	rates *govern.RateLimiter,
	budget *govern.DailyBudget,
	responder Responder,
	evaluator *eval.Evaluator,
	evalLogger *eval.Logger,
	suggester *suggest.Generator,
	logger *slog.Logger,
) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		classifier: classifier,
		rates:      rates,
		budget:     budget,
		responder:  responder,
		evaluator:  evaluator,
		evalLogger: evalLogger,
		suggester:  suggester,
		turns:      newTurnStore(),
		logger:     logger,
	}
}

// HandleQuery handles POST /v1/assistant/query.
//
// Description:
//
//	Runs the governed turn: classification short-circuits blocked
//	queries with their canned reframe, then the rate and budget
//	governors gate the model call, then the response is delivered with
//	any flag-rule context prepended. Evaluation and suggestion
//	generation start after the response is written and never delay it.
//
// Response:
//
//	200 OK: QueryResponse (including blocked turns, which are a policy
//	        outcome, not an error)
//	400 Bad Request: Missing or empty query
//	429 Too Many Requests: Rate window or daily budget exhausted
//	502 Bad Gateway: Responder failure
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleQuery(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleQuery")

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "query is required",
			Code:  "MISSING_QUERY",
		})
		return
	}

	identity := req.Identity
	if identity == "" {
		identity = c.ClientIP()
	}

	ctx, span := turnTracer.Start(c.Request.Context(), "assistant.HandleQuery",
		oteltrace.WithAttributes(
			attribute.String("request_id", requestID),
			attribute.String("identity", identity),
		),
	)
	defer span.End()

	// 1. Classification. A block is terminal and costs nothing.
	verdict := h.classifier.Classify(req.Query)
	if verdict.Blocked {
		span.SetAttributes(attribute.String("blocked_rule", verdict.Rule))
		c.JSON(http.StatusOK, QueryResponse{
			ID:       requestID,
			Blocked:  true,
			Reframe:  verdict.Reframe,
			Response: verdict.Reframe,
		})
		return
	}

	// 2. Rate governance. Header values come from the minute window.
	decision := h.rates.Check(identity)
	setRateHeaders(c, decision)
	if !decision.Allowed {
		retryAfter := int(decision.ResetIn.Seconds()) + 1
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		span.SetStatus(codes.Error, "rate limited")
		c.JSON(http.StatusTooManyRequests, ErrorResponse{
			Error:             decision.Err.Error(),
			Code:              "RATE_LIMITED",
			RetryAfterSeconds: retryAfter,
		})
		return
	}

	// 3. Budget governance.
	budget := h.budget.Check()
	if !budget.Allowed {
		span.SetStatus(codes.Error, "budget exhausted")
		c.JSON(http.StatusTooManyRequests, ErrorResponse{
			Error: fmt.Sprintf("daily model budget exhausted ($%.2f spent); resets at midnight UTC",
				budget.EstimatedCost),
			Code: "BUDGET_EXHAUSTED",
		})
		return
	}

	// 4. The model call.
	turn, err := h.responder.Respond(ctx, req.Query)
	if err != nil {
		logger.Warn("responder failed", slog.String("error", llm.SafeLogString(err.Error())))
		span.SetStatus(codes.Error, "responder failure")
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error: "the assistant is temporarily unavailable",
			Code:  "UPSTREAM_UNAVAILABLE",
		})
		return
	}

	h.rates.Record(identity)
	h.budget.Record(turn.InputTokens, turn.OutputTokens)

	// 5. Deliver, with flag-rule context prepended when present.
	responseText := turn.Text
	if verdict.Flag != "" {
		responseText = verdict.Flag + "\n\n" + responseText
	}

	h.turns.Create(requestID)
	c.JSON(http.StatusOK, QueryResponse{
		ID:       requestID,
		Response: responseText,
		Flagged:  verdict.Flag != "",
	})

	// 6. Post-delivery work on a detached context. Evaluation and
	// suggestion generation are independent and unordered.
	go h.evaluateTurn(requestID, req.Query, responseText, turn)
	go h.suggestFollowups(requestID, req.Query, responseText, turn)
}

// evaluateTurn scores the delivered response and auto-logs it when it
// needs review. Runs asynchronously; all failures degrade silently.
func (h *Handlers) evaluateTurn(requestID, query, response string, turn *TurnResult) {
	ctx, cancel := context.WithTimeout(context.Background(), asyncTurnTimeout)
	defer cancel()

	toolText := serializeToolResults(turn.ToolResults)
	evaluation := h.evaluator.Evaluate(ctx, query, response, toolText)
	if evaluation == nil {
		return
	}

	if eval.ShouldFlagResponse(evaluation) {
		evaluation.AutoLogged = true
		id := h.evalLogger.Log(ctx, eval.LogRequest{
			UserQuery:         query,
			AssistantResponse: response,
			ToolCalls:         toolCallNames(turn.ToolResults),
			Evaluation:        evaluation,
			LogType:           eval.LogTypeAuto,
		})
		h.logger.Info("low-quality response auto-logged",
			slog.String("request_id", requestID),
			slog.String("log_id", id),
			slog.Int("weighted_score", evaluation.WeightedScore),
		)
	}
}

// suggestFollowups produces the turn's followup suggestions, falling
// back to the deterministic generator when the model path yields nil.
func (h *Handlers) suggestFollowups(requestID, query, response string, turn *TurnResult) {
	ctx, cancel := context.WithTimeout(context.Background(), asyncTurnTimeout)
	defer cancel()

	batch := h.suggester.Generate(ctx, query, response, serializeToolResults(turn.ToolResults))
	if batch == nil {
		batch = suggest.GenerateFallback(turn.ToolResults)
	}
	h.turns.SetSuggestions(requestID, batch)
}

// HandleFollowups handles GET /v1/assistant/query/:id/followups.
//
// Response:
//
//	200 OK: FollowupsResponse (status pending until the async path finishes)
//	404 Not Found: Unknown or expired turn id
func (h *Handlers) HandleFollowups(c *gin.Context) {
	id := c.Param("id")

	batch, ready, known := h.turns.Suggestions(id)
	if !known {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "unknown or expired turn id",
			Code:  "TURN_NOT_FOUND",
		})
		return
	}

	status := "pending"
	if ready {
		status = "ready"
	}
	c.JSON(http.StatusOK, FollowupsResponse{
		ID:          id,
		Status:      status,
		Suggestions: batch,
	})
}

// HandleFeedback handles POST /v1/assistant/feedback.
//
// Description:
//
//	Records a user-flagged exchange through the evaluation logger.
//	Logging is fire-and-forget, so the endpoint acknowledges with the
//	assigned log id rather than a delivery status.
//
// Response:
//
//	202 Accepted: FeedbackResponse
//	400 Bad Request: Missing query or response
func (h *Handlers) HandleFeedback(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "query and response are required",
			Code:  "MISSING_FIELDS",
		})
		return
	}

	id := h.evalLogger.Log(c.Request.Context(), eval.LogRequest{
		UserQuery:         req.Query,
		AssistantResponse: req.Response,
		LogType:           eval.LogTypeUserFlagged,
		UserFeedback:      req.Feedback,
	})

	c.JSON(http.StatusAccepted, FeedbackResponse{ID: id, Status: "logged"})
}

// HandleHealth handles GET /v1/assistant/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"budget": h.budget.Summary(),
	})
}

// setRateHeaders writes the minute-window rate headers.
func setRateHeaders(c *gin.Context, d govern.RateDecision) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(d.MinuteLimit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(d.MinuteRemaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(d.MinuteReset.Unix(), 10))
}

// getOrCreateRequestID reads X-Request-ID or assigns a fresh UUID.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

// serializeToolResults flattens tool results into the judge/suggestion
// prompt context.
func serializeToolResults(results []suggest.ToolResult) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "%s: %s\n", r.ToolName, r.Result)
	}
	return b.String()
}

// toolCallNames lists the tool names for the durable log record.
func toolCallNames(results []suggest.ToolResult) []string {
	if len(results) == 0 {
		return nil
	}
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.ToolName)
	}
	return names
}
