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
	"errors"
	"strings"
	"testing"

	"github.com/AleutianAI/CivicScope/services/assistant/guardrail"
	"github.com/AleutianAI/CivicScope/services/llm"
)

type fakeClient struct {
	text string
	err  error
}

func (f *fakeClient) Complete(_ context.Context, _ llm.CompletionRequest) (*llm.CompletionResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResult{Text: f.text, InputTokens: 80, OutputTokens: 40}, nil
}

func newTestValidator(t *testing.T) *guardrail.Classifier {
	t.Helper()
	rules, err := guardrail.DefaultRuleSet()
	if err != nil {
		t.Fatalf("loading default rules: %v", err)
	}
	return guardrail.NewClassifier(rules, nil)
}

func TestGenerate_ValidBatch(t *testing.T) {
	client := &fakeClient{text: `Sure!
{"suggestions": [
  {"text": "How has attendance changed at this school?", "category": "explore"},
  {"text": "Compare funding to nearby schools", "category": "compare"},
  {"text": "Show enrollment as a line chart", "category": "visualize"}
]}`}
	g := NewGenerator(client, newTestValidator(t), nil, nil, nil)

	got := g.Generate(context.Background(), "tell me about PS 123", "PS 123 has...", "")
	if len(got) != 3 {
		t.Fatalf("expected 3 suggestions, got %d", len(got))
	}
	if got[1].Category != CategoryCompare {
		t.Errorf("category not carried: %+v", got[1])
	}
}

func TestGenerate_BlockedCandidatesDiscarded(t *testing.T) {
	client := &fakeClient{text: `{"suggestions": [
  {"text": "Rank the best schools in Brooklyn", "category": "compare"},
  {"text": "How has attendance changed over time?", "category": "explore"}
]}`}
	g := NewGenerator(client, newTestValidator(t), nil, nil, nil)

	got := g.Generate(context.Background(), "q", "r", "")
	if len(got) != 1 {
		t.Fatalf("blocked candidate should be discarded, got %d suggestions", len(got))
	}
	if strings.Contains(strings.ToLower(got[0].Text), "rank") {
		t.Errorf("ranking suggestion survived validation: %q", got[0].Text)
	}
}

func TestGenerate_AllBlockedReturnsNil(t *testing.T) {
	client := &fakeClient{text: `{"suggestions": [
  {"text": "Rank the best schools in Brooklyn", "category": "compare"},
  {"text": "Which schools should I avoid?", "category": "explore"}
]}`}
	g := NewGenerator(client, newTestValidator(t), nil, nil, nil)

	got := g.Generate(context.Background(), "q", "r", "")
	if got != nil {
		t.Errorf("zero survivors must yield nil, not %v", got)
	}
}

func TestGenerate_TruncatesLongText(t *testing.T) {
	long := strings.Repeat("a", 120)
	client := &fakeClient{text: `{"suggestions": [{"text": "` + long + `", "category": "explore"}]}`}
	g := NewGenerator(client, newTestValidator(t), nil, nil, nil)

	got := g.Generate(context.Background(), "q", "r", "")
	if len(got) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(got))
	}
	if len(got[0].Text) > maxSuggestionChars {
		t.Errorf("text not truncated: %d chars", len(got[0].Text))
	}
}

func TestGenerate_UnknownCategoryDropped(t *testing.T) {
	client := &fakeClient{text: `{"suggestions": [
  {"text": "Look at attendance data", "category": "rank"},
  {"text": "Compare funding levels", "category": "compare"}
]}`}
	g := NewGenerator(client, newTestValidator(t), nil, nil, nil)

	got := g.Generate(context.Background(), "q", "r", "")
	if len(got) != 1 || got[0].Category != CategoryCompare {
		t.Errorf("unknown category should be dropped: %v", got)
	}
}

func TestGenerate_DegradesToNil(t *testing.T) {
	cases := []struct {
		name   string
		client llm.Client
	}{
		{"nil client", nil},
		{"call error", &fakeClient{err: errors.New("boom")}},
		{"no json", &fakeClient{text: "sorry, no ideas"}},
		{"malformed json", &fakeClient{text: `{"suggestions": [}`}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewGenerator(tc.client, newTestValidator(t), nil, nil, nil)
			if got := g.Generate(context.Background(), "q", "r", ""); got != nil {
				t.Errorf("expected nil, got %v", got)
			}
		})
	}
}

func TestGenerate_RecordsTokenUsage(t *testing.T) {
	client := &fakeClient{text: `{"suggestions": [{"text": "Explore attendance trends", "category": "explore"}]}`}
	budget := &fakeBudget{}
	g := NewGenerator(client, newTestValidator(t), budget, nil, nil)

	g.Generate(context.Background(), "q", "r", "")
	if budget.in != 80 || budget.out != 40 {
		t.Errorf("usage not recorded: %+v", budget)
	}
}

type fakeBudget struct {
	in, out int
}

func (f *fakeBudget) Record(inputTokens, outputTokens int) {
	f.in += inputTokens
	f.out += outputTokens
}
