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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	evaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civic",
		Subsystem: "eval",
		Name:      "evaluations_total",
		Help:      "Judge evaluations by outcome (ok, call_error, parse_error).",
	}, []string{"outcome"})

	evaluationScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "civic",
		Subsystem: "eval",
		Name:      "weighted_score",
		Help:      "Distribution of recomputed weighted scores.",
		Buckets:   []float64{20, 35, 55, 60, 75, 90, 100},
	})

	evaluationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "civic",
		Subsystem: "eval",
		Name:      "latency_seconds",
		Help:      "Wall time of a full judge evaluation.",
		Buckets:   prometheus.DefBuckets,
	})

	logDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civic",
		Subsystem: "eval",
		Name:      "log_deliveries_total",
		Help:      "Evaluation log deliveries by sink and outcome.",
	}, []string{"sink", "outcome"})
)
