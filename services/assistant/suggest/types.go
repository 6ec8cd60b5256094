// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package suggest produces follow-up query suggestions: a generative
// model path validated through the pattern classifier, and a
// deterministic entity-driven fallback.
package suggest

// Suggestion categories. The generative call is constrained to these
// and the fallback only ever emits them.
const (
	CategoryExplore   = "explore"
	CategoryCompare   = "compare"
	CategoryExplain   = "explain"
	CategoryVisualize = "visualize"
)

// maxSuggestionChars caps suggestion text length.
const maxSuggestionChars = 80

// suggestionCount is the batch size requested from the model.
const suggestionCount = 3

// SuggestedQuery is one follow-up suggestion. Ephemeral, never persisted
// outside the short-lived cache.
type SuggestedQuery struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

// validCategory reports whether c is one of the fixed categories.
func validCategory(c string) bool {
	switch c {
	case CategoryExplore, CategoryCompare, CategoryExplain, CategoryVisualize:
		return true
	}
	return false
}
