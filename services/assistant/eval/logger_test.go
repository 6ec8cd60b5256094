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
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	trimmed := strings.TrimSuffix(string(data), "\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}

func TestLog_LocalOnlyWritesOneLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "evaluations.jsonl")
	l := NewLogger("", path, nil)

	id := l.Log(context.Background(), LogRequest{
		UserQuery:         "how did attendance change?",
		AssistantResponse: "Attendance rose 2% year over year.",
		LogType:           LogTypeAuto,
		Evaluation: &EvaluationResult{
			Scores:        uniform(3),
			WeightedScore: 50,
			Flags:         []string{"thin evidence"},
			Summary:       "Middling.",
		},
	})
	if id == "" {
		t.Fatal("Log should return the assigned id")
	}

	lines := readLines(t, path)
	if len(lines) != 1 {
		t.Fatalf("expected exactly one JSONL line, got %d", len(lines))
	}

	var entry EvaluationLogEntry
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("line is not valid JSON: %v", err)
	}
	if entry.ID != id {
		t.Errorf("entry id %s does not match returned id %s", entry.ID, id)
	}
	if entry.UserQuery != "how did attendance change?" {
		t.Errorf("query truncated below limit: %q", entry.UserQuery)
	}
	if entry.AssistantResponse != "Attendance rose 2% year over year." {
		t.Errorf("response truncated below limit: %q", entry.AssistantResponse)
	}
	if entry.Evaluation == nil || entry.Evaluation.ConfidenceLevel != "review_suggested" {
		t.Errorf("confidence level not derived: %+v", entry.Evaluation)
	}
}

func TestLog_WebhookReceivesSanitizedPreview(t *testing.T) {
	var received webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decoding webhook body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "evaluations.jsonl")
	l := NewLogger(server.URL, path, nil)

	longResponse := strings.Repeat("z", webhookFieldLimit+200)
	l.Log(context.Background(), LogRequest{
		UserQuery:         "=SUM(A1:A9) what is this",
		AssistantResponse: longResponse,
		LogType:           LogTypeUserFlagged,
		UserFeedback:      "@channel wrong numbers",
		Evaluation: &EvaluationResult{
			Scores:        uniform(4),
			WeightedScore: 75,
			Flags:         []string{"-odd flag"},
		},
	})

	if !strings.HasPrefix(received.UserQuery, "'=") {
		t.Errorf("formula-leading query not sanitized: %q", received.UserQuery)
	}
	if !strings.HasPrefix(received.UserFeedback, "'@") {
		t.Errorf("feedback not sanitized: %q", received.UserFeedback)
	}
	if len(received.Flags) != 1 || !strings.HasPrefix(received.Flags[0], "'-") {
		t.Errorf("flags not sanitized: %v", received.Flags)
	}
	if len(received.AssistantResponse) > webhookFieldLimit+10 {
		t.Errorf("webhook preview not truncated, length %d", len(received.AssistantResponse))
	}
	if received.ConfidenceLevel != "verified" {
		t.Errorf("confidence level not sent: %q", received.ConfidenceLevel)
	}

	// The full record still lands locally, untruncated at this size.
	lines := readLines(t, path)
	if len(lines) != 1 {
		t.Fatalf("expected one local line, got %d", len(lines))
	}
	var entry EvaluationLogEntry
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("local line invalid: %v", err)
	}
	if len(entry.AssistantResponse) != len(longResponse) {
		t.Error("local record should keep the full response below the 10KB limit")
	}
}

func TestLog_WebhookFailureDoesNotBlockLocal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "evaluations.jsonl")
	l := NewLogger(server.URL, path, nil)

	l.Log(context.Background(), LogRequest{
		UserQuery:         "q",
		AssistantResponse: "r",
		LogType:           LogTypeAuto,
	})

	if lines := readLines(t, path); len(lines) != 1 {
		t.Fatalf("local append must run despite webhook failure, got %d lines", len(lines))
	}
}

func TestLog_LocalTruncationAtLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evaluations.jsonl")
	l := NewLogger("", path, nil)

	huge := strings.Repeat("a", localFieldLimit+500)
	l.Log(context.Background(), LogRequest{
		UserQuery:         "q",
		AssistantResponse: huge,
		LogType:           LogTypeAuto,
	})

	var entry EvaluationLogEntry
	lines := readLines(t, path)
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("line invalid: %v", err)
	}
	if len(entry.AssistantResponse) != localFieldLimit+3 {
		t.Errorf("expected truncation to limit plus ellipsis, got length %d", len(entry.AssistantResponse))
	}
	if !strings.HasSuffix(entry.AssistantResponse, "...") {
		t.Error("truncated field should end with ellipsis")
	}
}

func TestLog_ConcurrentAppendsStayWholeLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evaluations.jsonl")
	l := NewLogger("", path, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Log(context.Background(), LogRequest{
				UserQuery:         "concurrent query",
				AssistantResponse: strings.Repeat("b", 1000),
				LogType:           LogTypeAuto,
			})
		}()
	}
	wg.Wait()

	lines := readLines(t, path)
	if len(lines) != 20 {
		t.Fatalf("expected 20 lines, got %d", len(lines))
	}
	for i, line := range lines {
		var entry EvaluationLogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Errorf("line %d is not a complete record: %v", i, err)
		}
	}
}
