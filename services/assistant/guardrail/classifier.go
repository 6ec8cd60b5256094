// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package guardrail implements the synchronous pattern classifier that runs
// before any model call. Block rules terminate harmful query patterns with a
// canned reframe; flag rules let ambiguous-but-legitimate queries through
// with clarifying context prepended to the eventual answer.
package guardrail

import (
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	classifierBlockedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civic",
		Subsystem: "guardrail",
		Name:      "blocked_total",
		Help:      "Queries blocked by rule name",
	}, []string{"rule"})

	classifierFlaggedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civic",
		Subsystem: "guardrail",
		Name:      "flagged_total",
		Help:      "Queries flagged by rule name",
	}, []string{"rule"})

	classifierPassedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "civic",
		Subsystem: "guardrail",
		Name:      "passed_total",
		Help:      "Queries that matched no rule",
	})

	classifierLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "civic",
		Subsystem: "guardrail",
		Name:      "latency_seconds",
		Help:      "Classifier execution latency",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01},
	})
)

// =============================================================================
// ClassificationResult
// =============================================================================

// ClassificationResult is the immutable outcome of classifying one query.
//
// Exactly one of the following holds: Blocked is true (terminal, Reframe
// populated, Flag empty) or Blocked is false (Flag optionally populated).
//
// Thread Safety: ClassificationResult is a value type. Safe to copy.
type ClassificationResult struct {
	// Blocked is true when a block rule matched. The query must not reach
	// any model call.
	Blocked bool

	// Reframe is the canned response returned instead of an answer.
	// Non-empty iff Blocked is true.
	Reframe string

	// Flag is clarifying context to prepend to the downstream answer.
	// Only ever set when Blocked is false.
	Flag string

	// Rule is the name of the rule that fired, for logs and metrics.
	// Empty when no rule matched.
	Rule string
}

// =============================================================================
// Classifier
// =============================================================================

// Classifier evaluates queries against an immutable rule set.
//
// Description:
//
//	Block rules are evaluated in fixed order, first match wins. Flag rules
//	are evaluated only when no block rule matched, first match wins. All
//	matching is case-insensitive and contextual (substring or word
//	proximity), never full-string.
//
// Thread Safety: Safe for concurrent use (all state is read-only after
// construction, no lock required).
type Classifier struct {
	rules  *RuleSet
	logger *slog.Logger
}

// NewClassifier creates a classifier over the given rule set.
//
// Inputs:
//   - rules: Compiled rule set. Must not be nil.
//   - logger: Logger for structured output. Nil uses slog.Default().
//
// Outputs:
//   - *Classifier: The constructed classifier.
func NewClassifier(rules *RuleSet, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{rules: rules, logger: logger}
}

// Classify evaluates a single query against the rule set.
//
// Description:
//
//	Pure and synchronous: no I/O, no side effects beyond metrics, and
//	deterministic for a given rule set. Empty or whitespace-only input
//	passes with no flag.
//
// Inputs:
//   - query: The raw user query.
//
// Outputs:
//   - ClassificationResult: The classification outcome.
//
// Thread Safety: Safe for concurrent use.
func (c *Classifier) Classify(query string) ClassificationResult {
	start := time.Now()
	defer func() { classifierLatency.Observe(time.Since(start).Seconds()) }()

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		classifierPassedTotal.Inc()
		return ClassificationResult{}
	}

	queryLower := strings.ToLower(trimmed)
	words := tokenize(queryLower)

	for i := range c.rules.BlockRules {
		r := &c.rules.BlockRules[i]
		if matchAnyPattern(queryLower, r.compiled) ||
			matchProximity(words, r.AnchorWords, r.ContextWords, r.Window) {
			classifierBlockedTotal.WithLabelValues(r.Name).Inc()
			c.logger.Info("guardrail blocked query",
				slog.String("rule", r.Name),
				slog.String("query_preview", truncateForLog(trimmed, 80)),
			)
			return ClassificationResult{Blocked: true, Reframe: r.Response, Rule: r.Name}
		}
	}

	for i := range c.rules.FlagRules {
		r := &c.rules.FlagRules[i]
		if matchAnyPattern(queryLower, r.compiled) ||
			matchProximity(words, r.AnchorWords, r.ContextWords, r.Window) {
			classifierFlaggedTotal.WithLabelValues(r.Name).Inc()
			c.logger.Info("guardrail flagged query",
				slog.String("rule", r.Name),
				slog.String("query_preview", truncateForLog(trimmed, 80)),
			)
			return ClassificationResult{Flag: r.Prepend, Rule: r.Name}
		}
	}

	classifierPassedTotal.Inc()
	return ClassificationResult{}
}

// =============================================================================
// Matching
// =============================================================================

// matchAnyPattern checks if any pre-compiled pattern matches the query.
func matchAnyPattern(queryLower string, patterns []compiledPattern) bool {
	for _, cp := range patterns {
		if cp.regex != nil {
			if cp.regex.MatchString(queryLower) {
				return true
			}
		} else if strings.Contains(queryLower, cp.raw) {
			return true
		}
	}
	return false
}

// matchProximity reports whether an anchor word and a context word occur
// within window words of each other, in either order.
//
// Algorithm:
//
//  1. Find all token positions of anchor words and context words.
//  2. For each (anchor_pos, context_pos) pair: |a - c| ≤ window → MATCH.
//
// Requiring co-occurrence is what keeps false positives down: "ranked by
// impact score" carries a rank anchor but no best/worst/top/bottom context,
// so it passes.
func matchProximity(words []string, anchors, contexts []string, window int) bool {
	if len(anchors) == 0 || len(contexts) == 0 {
		return false
	}
	if window <= 0 {
		window = 5
	}

	var anchorPositions []int
	for i, word := range words {
		for _, a := range anchors {
			if word == a {
				anchorPositions = append(anchorPositions, i)
				break
			}
		}
	}
	if len(anchorPositions) == 0 {
		return false
	}

	for i, word := range words {
		for _, cw := range contexts {
			if word != cw {
				continue
			}
			for _, ap := range anchorPositions {
				dist := i - ap
				if dist < 0 {
					dist = -dist
				}
				if dist <= window {
					return true
				}
			}
		}
	}

	return false
}

// tokenize splits a lowercased query into words with surrounding punctuation
// stripped, so "schools?" and "50%" compare as "schools" and "50%". The '%'
// rune is kept because demographic patterns match against it.
func tokenize(queryLower string) []string {
	fields := strings.Fields(queryLower)
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.TrimFunc(f, func(r rune) bool {
			return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '%'
		})
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}

// truncateForLog shortens a string for log previews.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
