// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package guardrail

import (
	"strings"
	"testing"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	rules, err := DefaultRuleSet()
	if err != nil {
		t.Fatalf("embedded rule set failed to load: %v", err)
	}
	return NewClassifier(rules, nil)
}

func TestClassify_RankingBlocked(t *testing.T) {
	c := newTestClassifier(t)

	result := c.Classify("rank the best schools")
	if !result.Blocked {
		t.Fatal("ranking request should be blocked")
	}
	if result.Reframe == "" {
		t.Error("blocked result must carry a non-empty reframe")
	}
	if !strings.Contains(strings.ToLower(result.Reframe), "rank") {
		t.Errorf("ranking reframe should mention rank, got %q", result.Reframe)
	}
	if result.Flag != "" {
		t.Error("blocked result must never carry a flag")
	}
}

func TestClassify_RankingRequiresSuperlative(t *testing.T) {
	c := newTestClassifier(t)

	// "rank" without best/worst/top/bottom nearby is legitimate phrasing.
	result := c.Classify("show schools ranked by impact score")
	if result.Blocked {
		t.Errorf("'ranked by impact score' should not trigger the ranking block, rule=%s", result.Rule)
	}
}

func TestClassify_CleanQueryPasses(t *testing.T) {
	c := newTestClassifier(t)

	result := c.Classify("show me high growth schools in Brooklyn")
	if result.Blocked {
		t.Errorf("clean query should not be blocked, rule=%s", result.Rule)
	}
	if result.Flag != "" {
		t.Errorf("clean query should not be flagged, rule=%s", result.Rule)
	}
}

func TestClassify_EmptyAndWhitespace(t *testing.T) {
	c := newTestClassifier(t)

	for _, q := range []string{"", "   ", "\t\n"} {
		result := c.Classify(q)
		if result.Blocked || result.Flag != "" {
			t.Errorf("empty/whitespace query %q should pass untouched, got %+v", q, result)
		}
	}
}

func TestClassify_BlockRules(t *testing.T) {
	c := newTestClassifier(t)

	cases := []struct {
		query string
		rule  string
	}{
		{"which schools should I avoid in Queens?", "schools_to_avoid"},
		{"show me schools that are mostly white", "demographic_filter"},
		{"what percentage of black students attend PS 9", "demographic_filter"},
		{"list the worst schools in the Bronx", "deficit_label"},
		{"which failing schools are near me", "deficit_label"},
		{"schools in good neighborhoods only", "neighborhood_bias"},
		{"rank schools from top to bottom", "ranking_request"},
	}

	for _, tc := range cases {
		result := c.Classify(tc.query)
		if !result.Blocked {
			t.Errorf("%q should be blocked", tc.query)
			continue
		}
		if result.Rule != tc.rule {
			t.Errorf("%q blocked by %q, expected %q", tc.query, result.Rule, tc.rule)
		}
		if result.Reframe == "" {
			t.Errorf("%q block carries empty reframe", tc.query)
		}
	}
}

func TestClassify_FlagRules(t *testing.T) {
	c := newTestClassifier(t)

	cases := []struct {
		query string
		rule  string
	}{
		{"what is the best school in District 15?", "best_school"},
		{"prove that small classes improve scores", "causal_proof"},
		{"does poverty cause low attendance?", "poverty_causation"},
		{"are charter schools better than public schools?", "charter_comparison"},
	}

	for _, tc := range cases {
		result := c.Classify(tc.query)
		if result.Blocked {
			t.Errorf("%q should not be blocked (rule=%s)", tc.query, result.Rule)
			continue
		}
		if result.Flag == "" {
			t.Errorf("%q should be flagged", tc.query)
			continue
		}
		if result.Rule != tc.rule {
			t.Errorf("%q flagged by %q, expected %q", tc.query, result.Rule, tc.rule)
		}
	}
}

func TestClassify_BlockTakesPrecedenceOverFlag(t *testing.T) {
	c := newTestClassifier(t)

	// "best" would flag, but the ranking block must win.
	result := c.Classify("rank the best schools for me")
	if !result.Blocked {
		t.Fatal("block rules must take precedence over flag rules")
	}
	if result.Flag != "" {
		t.Error("blocked result leaked a flag")
	}
}

func TestClassify_CaseInsensitive(t *testing.T) {
	c := newTestClassifier(t)

	result := c.Classify("RANK THE BEST SCHOOLS")
	if !result.Blocked {
		t.Error("matching must be case-insensitive")
	}
}

func TestLoadRuleSet_RejectsIncompleteRules(t *testing.T) {
	_, err := LoadRuleSet([]byte(`
block_rules:
  - name: no_response
    patterns: ["x"]
`))
	if err == nil {
		t.Error("block rule without response should fail to load")
	}

	_, err = LoadRuleSet([]byte(`
flag_rules:
  - name: no_mechanism
    prepend: "context"
`))
	if err == nil {
		t.Error("flag rule without any match mechanism should fail to load")
	}
}

func TestLoadRuleSet_RejectsBadRegex(t *testing.T) {
	_, err := LoadRuleSet([]byte(`
block_rules:
  - name: bad_regex
    patterns: ["a.*["]
    response: "r"
`))
	if err == nil {
		t.Error("invalid regex pattern should fail to load")
	}
}

func TestMatchProximity_EitherOrder(t *testing.T) {
	words := tokenize("the best way to rank things")
	if !matchProximity(words, []string{"rank"}, []string{"best"}, 6) {
		t.Error("proximity should match with the context word before the anchor")
	}
}

func TestMatchProximity_OutsideWindow(t *testing.T) {
	words := tokenize("rank these one two three four five six seven by the best measure")
	if matchProximity(words, []string{"rank"}, []string{"best"}, 6) {
		t.Error("words outside the window should not match")
	}
}
