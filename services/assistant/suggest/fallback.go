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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AleutianAI/CivicScope/services/assistant/match"
)

// ToolResult is one prior tool call available to the fallback generator.
type ToolResult struct {
	ToolName string
	Result   string // JSON payload as returned by the tool
}

// queryContext is what the entity extractor recovers from tool results.
type queryContext struct {
	schools  []string
	boroughs []string

	profile     bool
	comparison  bool
	correlation bool
	chart       bool
}

// GenerateFallback assembles suggestions without any external call.
//
// Description:
//
//	Inspects prior tool results for mentioned schools, boroughs, and
//	the kind of analysis performed, then picks from a fixed decision
//	table. Total by construction: always returns between one and three
//	suggestions, ending with context-free defaults when nothing was
//	extracted. Malformed tool payloads are skipped per item and never
//	abort the batch.
//
// Thread Safety: Safe for concurrent use.
func GenerateFallback(toolResults []ToolResult) []SuggestedQuery {
	fallbackTotal.Inc()
	qc := extractContext(toolResults)

	var out []SuggestedQuery
	add := func(text, category string) {
		if len(out) == suggestionCount {
			return
		}
		text = truncate(text, maxSuggestionChars)
		for _, existing := range out {
			if existing.Text == text {
				return
			}
		}
		out = append(out, SuggestedQuery{Text: text, Category: category})
	}

	if qc.profile && len(qc.schools) > 0 {
		school := qc.schools[0]
		add(fmt.Sprintf("How does %s compare to similar schools?", school), CategoryCompare)
		add(fmt.Sprintf("Show the year-over-year trend for %s", school), CategoryVisualize)
	}

	if qc.correlation {
		add("What other factors correlate with this metric?", CategoryExplore)
		add("Show this relationship as a scatter plot", CategoryVisualize)
	}

	if qc.comparison {
		add("What might explain the differences between these schools?", CategoryExplain)
	}

	if qc.chart {
		add("What is the main takeaway from this chart?", CategoryExplain)
	}

	if len(qc.boroughs) > 0 {
		add(fmt.Sprintf("What are enrollment trends in %s?", qc.boroughs[0]), CategoryExplore)
	}

	if len(qc.schools) > 0 && !qc.profile {
		add(fmt.Sprintf("Show a full profile of %s", qc.schools[0]), CategoryExplore)
	}

	// Context-free defaults guarantee a non-empty result.
	if len(out) == 0 {
		add("How has citywide attendance changed over the last five years?", CategoryExplore)
		add("Compare arts program access across boroughs", CategoryCompare)
	}

	return out
}

// extractContext pulls entities and analysis kinds out of tool results.
func extractContext(toolResults []ToolResult) queryContext {
	var qc queryContext
	seenSchool := map[string]bool{}
	seenBorough := map[string]bool{}

	for _, tr := range toolResults {
		name := strings.ToLower(tr.ToolName)
		switch {
		case strings.Contains(name, "profile"):
			qc.profile = true
		case strings.Contains(name, "compar"):
			qc.comparison = true
		case strings.Contains(name, "correlat"):
			qc.correlation = true
		case strings.Contains(name, "chart"), strings.Contains(name, "visual"):
			qc.chart = true
		}

		var payload any
		if err := json.Unmarshal([]byte(tr.Result), &payload); err != nil {
			// Malformed payloads are skipped, never fatal.
			continue
		}
		collectEntities(payload, seenSchool, seenBorough, &qc, 0)
	}

	return qc
}

// maxEntityDepth bounds recursion into nested tool payloads.
const maxEntityDepth = 4

// canonicalBoroughs is the fixed set of borough names suggestions use.
var canonicalBoroughs = []string{
	"Manhattan", "Brooklyn", "Queens", "The Bronx", "Staten Island",
}

// canonicalBorough resolves a borough string from a tool payload to its
// canonical form. Tool payloads echo user spellings ("brookln", "bronks"),
// and a suggestion should not repeat the typo. Unresolvable values pass
// through unchanged.
func canonicalBorough(raw string) string {
	found := match.FindMatches(raw, canonicalBoroughs, func(s string) string { return s }, 2, 1)
	if len(found) > 0 {
		return found[0].Item
	}
	return raw
}

// collectEntities walks a decoded JSON value gathering school and
// borough names.
func collectEntities(v any, seenSchool, seenBorough map[string]bool, qc *queryContext, depth int) {
	if depth > maxEntityDepth {
		return
	}

	switch value := v.(type) {
	case map[string]any:
		for key, child := range value {
			switch strings.ToLower(key) {
			case "school_name", "name":
				if s, ok := child.(string); ok && s != "" && !seenSchool[s] {
					seenSchool[s] = true
					qc.schools = append(qc.schools, s)
				}
			case "borough":
				if b, ok := child.(string); ok && b != "" {
					b = canonicalBorough(b)
					if !seenBorough[b] {
						seenBorough[b] = true
						qc.boroughs = append(qc.boroughs, b)
					}
				}
			default:
				collectEntities(child, seenSchool, seenBorough, qc, depth+1)
			}
		}
	case []any:
		for _, child := range value {
			collectEntities(child, seenSchool, seenBorough, qc, depth+1)
		}
	}
}
