// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package govern

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for Rate & Budget Governance
// =============================================================================

var (
	// rateAllowedTotal counts requests that passed both rate windows.
	rateAllowedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "civic",
		Subsystem: "govern",
		Name:      "rate_allowed_total",
		Help:      "Requests that passed the rate limiter",
	})

	// rateRejectedTotal counts rejections by the limiting window.
	// Labels: window (minute, hour)
	rateRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civic",
		Subsystem: "govern",
		Name:      "rate_rejected_total",
		Help:      "Requests rejected by the rate limiter, by window",
	}, []string{"window"})

	// rateTrackedIdentities gauges the in-memory window map size.
	rateTrackedIdentities = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "civic",
		Subsystem: "govern",
		Name:      "tracked_identities",
		Help:      "Identities currently holding rate windows",
	})

	// budgetTokensToday gauges tokens consumed in the current calendar day.
	budgetTokensToday = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "civic",
		Subsystem: "govern",
		Name:      "budget_tokens_today",
		Help:      "Tokens consumed against the daily budget",
	})

	// budgetCostUSDToday gauges the estimated USD spend for the day.
	budgetCostUSDToday = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "civic",
		Subsystem: "govern",
		Name:      "budget_cost_usd_today",
		Help:      "Estimated USD spend against the daily budget",
	})

	// budgetRejectedTotal counts calls refused for budget exhaustion.
	budgetRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "civic",
		Subsystem: "govern",
		Name:      "budget_rejected_total",
		Help:      "Calls refused because the daily budget was exhausted",
	})
)
