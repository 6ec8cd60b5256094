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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/CivicScope/services/llm"
)

const (
	// webhookFieldLimit keeps the human-review preview small.
	webhookFieldLimit = 500
	// localFieldLimit is generous; the JSONL file is the full record.
	localFieldLimit = 10 * 1024

	webhookTimeout = 10 * time.Second
)

// webhookPayload is the flattened preview sent to the review channel.
type webhookPayload struct {
	ID                string   `json:"id"`
	Timestamp         string   `json:"timestamp"`
	LogType           LogType  `json:"log_type"`
	ConfidenceLevel   string   `json:"confidence_level,omitempty"`
	WeightedScore     int      `json:"weighted_score,omitempty"`
	UserQuery         string   `json:"user_query"`
	AssistantResponse string   `json:"assistant_response"`
	Flags             []string `json:"flags,omitempty"`
	Summary           string   `json:"summary,omitempty"`
	UserFeedback      string   `json:"user_feedback,omitempty"`
}

// Logger is the dual-sink evaluation recorder.
//
// Description:
//
//	Every flagged evaluation and every piece of user feedback goes to
//	two places: an optional webhook for human review, and an append-only
//	JSONL file as the guaranteed backup. The sinks fail independently;
//	a webhook failure never prevents the local append, and no failure
//	ever propagates to the caller.
//
// Thread Safety: Safe for concurrent use. File appends are serialized
// by fileMu so each JSONL line is a complete record.
type Logger struct {
	webhookURL string
	localPath  string
	httpClient *http.Client
	logger     *slog.Logger

	fileMu sync.Mutex

	// now is swappable for tests.
	now func() time.Time
}

// NewLogger creates a Logger.
//
// Inputs:
//   - webhookURL: Review-channel endpoint. Empty disables the webhook.
//   - localPath: JSONL backup file. Parent directory created on demand.
//   - logger: Logger for delivery failures. Nil uses slog.Default().
func NewLogger(webhookURL, localPath string, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{
		webhookURL: webhookURL,
		localPath:  localPath,
		httpClient: &http.Client{Timeout: webhookTimeout},
		logger:     logger,
		now:        time.Now,
	}
}

// Log records one evaluation or feedback event.
//
// Description:
//
//	Fire-and-forget: assigns an id and timestamp, attempts webhook
//	delivery first when configured, then always appends the full record
//	locally. Returns the assigned id so callers can surface it, but
//	never an error.
//
// Thread Safety: Safe for concurrent use.
func (l *Logger) Log(ctx context.Context, req LogRequest) string {
	entry := l.buildEntry(req)

	if l.webhookURL != "" {
		if err := l.deliverWebhook(ctx, entry, req); err != nil {
			l.logger.Error("evaluation webhook delivery failed",
				slog.String("id", entry.ID),
				slog.String("error", llm.SafeLogString(err.Error())),
			)
			logDeliveriesTotal.WithLabelValues("webhook", "error").Inc()
		} else {
			logDeliveriesTotal.WithLabelValues("webhook", "ok").Inc()
		}
	}

	// The local append is the guaranteed sink and always runs.
	if err := l.appendLocal(entry); err != nil {
		l.logger.Error("evaluation local append failed",
			slog.String("id", entry.ID),
			slog.String("path", l.localPath),
			slog.String("error", err.Error()),
		)
		logDeliveriesTotal.WithLabelValues("local", "error").Inc()
	} else {
		logDeliveriesTotal.WithLabelValues("local", "ok").Inc()
	}

	return entry.ID
}

func (l *Logger) buildEntry(req LogRequest) EvaluationLogEntry {
	entry := EvaluationLogEntry{
		ID:                uuid.NewString(),
		Timestamp:         l.now().UTC(),
		LogType:           req.LogType,
		UserQuery:         truncate(req.UserQuery, localFieldLimit),
		AssistantResponse: truncate(req.AssistantResponse, localFieldLimit),
		ToolCalls:         req.ToolCalls,
		UserFeedback:      truncate(req.UserFeedback, localFieldLimit),
	}

	if req.Evaluation != nil {
		level, _ := ConfidenceBadge(req.Evaluation.WeightedScore)
		entry.Evaluation = &loggedScoring{
			Scores:          req.Evaluation.Scores,
			WeightedScore:   req.Evaluation.WeightedScore,
			ConfidenceLevel: level,
			Flags:           req.Evaluation.Flags,
			Summary:         truncate(req.Evaluation.Summary, localFieldLimit),
		}
	}

	return entry
}

func (l *Logger) deliverWebhook(ctx context.Context, entry EvaluationLogEntry, req LogRequest) error {
	payload := webhookPayload{
		ID:           entry.ID,
		Timestamp:    entry.Timestamp.Format(time.RFC3339),
		LogType:      entry.LogType,
		UserQuery:    sanitizeForSpreadsheet(truncate(req.UserQuery, webhookFieldLimit)),
		UserFeedback: sanitizeForSpreadsheet(truncate(req.UserFeedback, webhookFieldLimit)),
		AssistantResponse: sanitizeForSpreadsheet(
			truncate(req.AssistantResponse, webhookFieldLimit)),
	}

	if req.Evaluation != nil {
		payload.ConfidenceLevel = entry.Evaluation.ConfidenceLevel
		payload.WeightedScore = req.Evaluation.WeightedScore
		payload.Summary = sanitizeForSpreadsheet(truncate(req.Evaluation.Summary, webhookFieldLimit))
		for _, f := range req.Evaluation.Flags {
			payload.Flags = append(payload.Flags, sanitizeForSpreadsheet(f))
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", l.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("webhook POST failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// appendLocal writes one complete JSONL line under fileMu.
func (l *Logger) appendLocal(entry EvaluationLogEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling log entry: %w", err)
	}

	l.fileMu.Lock()
	defer l.fileMu.Unlock()

	if dir := filepath.Dir(l.localPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating log directory: %w", err)
		}
	}

	f, err := os.OpenFile(l.localPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending log entry: %w", err)
	}
	return nil
}
