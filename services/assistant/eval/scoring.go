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

import "math"

// Rubric weights. They sum to 100 so the raw weighted sum lands in
// [100, 500] for in-range dimensions.
const (
	weightFactualAccuracy          = 25
	weightContextInclusion         = 20
	weightLimitationAcknowledgment = 20
	weightResponsibleFraming       = 20
	weightQueryRelevance           = 15
)

// Critical-failure caps keyed on factual accuracy. A response that gets
// the facts wrong cannot score well no matter how nicely it is framed.
const (
	capFactualAccuracy1 = 35
	capFactualAccuracy2 = 55
)

// Flagging thresholds.
const (
	flagScoreThreshold     = 60
	flagDimensionThreshold = 2
)

// clampDimension forces a judge-reported dimension into [1,5]. A
// missing dimension arrives as 0 and lands on 1, the worst case.
func clampDimension(v int) int {
	if v < 1 {
		return 1
	}
	if v > 5 {
		return 5
	}
	return v
}

// normalizeScores returns a copy with every dimension clamped to [1,5].
func normalizeScores(s DimensionScores) DimensionScores {
	return DimensionScores{
		FactualAccuracy:          clampDimension(s.FactualAccuracy),
		ContextInclusion:         clampDimension(s.ContextInclusion),
		LimitationAcknowledgment: clampDimension(s.LimitationAcknowledgment),
		ResponsibleFraming:       clampDimension(s.ResponsibleFraming),
		QueryRelevance:           clampDimension(s.QueryRelevance),
	}
}

// WeightedScore computes the 0-100 score for a set of dimensions.
//
// Description:
//
//	raw = sum(dimension * weight) lands in [100, 500]; normalizing via
//	round((raw-100)/4) maps that onto [0, 100]. The critical-failure
//	cap then applies: factual accuracy of 1 caps the result at 35,
//	factual accuracy of 2 caps at 55, and 3 or above is uncapped. The
//	score the judge model returns for itself is never used.
//
// Inputs:
//   - s: Dimension scores. Out-of-range values are clamped first.
//
// Outputs:
//   - int: Final capped score in [0, 100].
//
// Thread Safety: Pure function, safe for concurrent use.
func WeightedScore(s DimensionScores) int {
	s = normalizeScores(s)

	raw := s.FactualAccuracy*weightFactualAccuracy +
		s.ContextInclusion*weightContextInclusion +
		s.LimitationAcknowledgment*weightLimitationAcknowledgment +
		s.ResponsibleFraming*weightResponsibleFraming +
		s.QueryRelevance*weightQueryRelevance

	score := int(math.Round(float64(raw-100) / 4.0))

	switch s.FactualAccuracy {
	case 1:
		if score > capFactualAccuracy1 {
			score = capFactualAccuracy1
		}
	case 2:
		if score > capFactualAccuracy2 {
			score = capFactualAccuracy2
		}
	}

	return score
}

// ShouldFlagResponse reports whether an evaluation warrants logging for
// human review.
//
// True when the weighted score is below 60, factual accuracy or
// responsible framing is 2 or lower, or the judge raised any flags.
func ShouldFlagResponse(result *EvaluationResult) bool {
	if result == nil {
		return false
	}
	if result.WeightedScore < flagScoreThreshold {
		return true
	}
	if result.Scores.FactualAccuracy <= flagDimensionThreshold {
		return true
	}
	if result.Scores.ResponsibleFraming <= flagDimensionThreshold {
		return true
	}
	return len(result.Flags) > 0
}

// ConfidenceBadge maps a weighted score onto a user-facing badge.
//
// Bands are inclusive on their lower bound: 90 is high, 75 is
// verified, 60 is review_suggested, anything below is low.
func ConfidenceBadge(score int) (level, color string) {
	switch {
	case score >= 90:
		return "high", "green"
	case score >= 75:
		return "verified", "blue"
	case score >= 60:
		return "review_suggested", "yellow"
	default:
		return "low", "red"
	}
}
