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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	suggestionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civic",
		Subsystem: "suggest",
		Name:      "generations_total",
		Help:      "Suggestion generations by outcome (ok, cache_hit, call_error, parse_error, all_blocked).",
	}, []string{"outcome"})

	suggestionsBlockedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "civic",
		Subsystem: "suggest",
		Name:      "candidates_blocked_total",
		Help:      "Model-produced candidates discarded by the pattern classifier.",
	})

	fallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "civic",
		Subsystem: "suggest",
		Name:      "fallback_total",
		Help:      "Times the deterministic fallback produced the suggestions.",
	})
)
