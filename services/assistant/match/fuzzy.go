// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package match provides approximate string matching for resilient entity
// lookup. When an exact name lookup fails (a school name typed from memory,
// a misspelled borough), the fuzzy matcher recovers the closest candidates
// by edit distance.
package match

import (
	"sort"
	"strings"
)

// DefaultMaxDistance is the largest edit distance still considered a match.
const DefaultMaxDistance = 3

// DefaultLimit is the maximum number of matches returned by FindMatches.
const DefaultLimit = 5

// minWordLen is the shortest key word considered for word-level matching.
// Shorter words ("of", "ps") produce too many accidental matches.
const minWordLen = 3

// Match pairs a candidate with its best edit distance against the query.
//
// Thread Safety: Match is a value type. Safe to copy.
type Match[T any] struct {
	// Item is the matched candidate.
	Item T

	// Distance is the smallest edit distance found for this candidate.
	Distance int
}

// Distance calculates the edit distance between two strings.
//
// Description:
//
//	Case-insensitive, whitespace-trimmed Levenshtein distance with the
//	standard insertion/deletion/substitution recurrence. Uses two rows
//	instead of a full matrix, so auxiliary space is O(min(len)).
//
// Inputs:
//   - a, b: The strings to compare. Either may be empty.
//
// Outputs:
//   - int: The edit distance. Zero iff the strings are equal after
//     trimming and case folding.
//
// Thread Safety: This function is safe for concurrent use (stateless).
func Distance(a, b string) int {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// Keep the shorter string in the row dimension for O(min(len)) space.
	if len(b) > len(a) {
		a, b = b, a
	}

	// Use two rows instead of full matrix for memory efficiency
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

// FindMatches finds candidates whose key text is within maxDistance of the query.
//
// Description:
//
//	For each candidate, computes the distance against the full key text.
//	If that exceeds maxDistance, each individual word of the key (length
//	≥ 3) is tried and the minimum taken: "bronx" should still match
//	"Bronx Science High School" even though the full name is far away.
//	Results are sorted ascending by distance and truncated to limit.
//
// Inputs:
//   - query: The search string. Empty is valid (degenerates to key lengths).
//   - candidates: The items to search. Empty yields an empty result.
//   - keyFn: Extracts the comparable key text from a candidate.
//   - maxDistance: The largest distance kept. Values < 0 use DefaultMaxDistance.
//   - limit: Maximum results returned. Values <= 0 use DefaultLimit.
//
// Outputs:
//   - []Match[T]: Matches sorted ascending by distance, at most limit long.
//
// Thread Safety: This function is safe for concurrent use (stateless).
func FindMatches[T any](query string, candidates []T, keyFn func(T) string, maxDistance, limit int) []Match[T] {
	if maxDistance < 0 {
		maxDistance = DefaultMaxDistance
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	matches := make([]Match[T], 0, len(candidates))

	for _, cand := range candidates {
		key := keyFn(cand)
		best := Distance(query, key)

		if best > maxDistance {
			// Full key too far; try each word of the key individually.
			for _, word := range strings.Fields(key) {
				if len(word) < minWordLen {
					continue
				}
				if d := Distance(query, word); d < best {
					best = d
				}
			}
		}

		if best <= maxDistance {
			matches = append(matches, Match[T]{Item: cand, Distance: best})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	return matches
}
