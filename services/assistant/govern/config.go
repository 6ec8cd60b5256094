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
	"os"
	"strconv"
)

// Config holds governance knobs loaded from environment variables.
//
// Thread Safety: Config is a value type. Safe to copy and share after loading.
type Config struct {
	// RatePerMinute is the per-identity request ceiling per minute.
	// Env: CIVIC_RATE_PER_MIN (default: 10, 0 = unlimited)
	RatePerMinute int

	// RatePerHour is the per-identity request ceiling per hour.
	// Env: CIVIC_RATE_PER_HOUR (default: 50, 0 = unlimited)
	RatePerHour int

	// DailyBudgetUSD is the process-wide spend ceiling per calendar day.
	// Env: CIVIC_DAILY_BUDGET_USD (default: 10.0, 0 = unlimited)
	DailyBudgetUSD float64

	// CostPerMTokUSD is the blended cost per million tokens used for
	// budget estimates.
	// Env: CIVIC_COST_PER_MTOK (default: 3.0)
	CostPerMTokUSD float64
}

// LoadConfig reads governance configuration from environment variables.
//
// Description:
//
//	All values have safe defaults; malformed values fall back to the
//	default rather than failing startup.
//
// Outputs:
//   - Config: Fully populated configuration.
func LoadConfig() Config {
	return Config{
		RatePerMinute:  envInt("CIVIC_RATE_PER_MIN", 10),
		RatePerHour:    envInt("CIVIC_RATE_PER_HOUR", 50),
		DailyBudgetUSD: envFloat("CIVIC_DAILY_BUDGET_USD", 10.0),
		CostPerMTokUSD: envFloat("CIVIC_COST_PER_MTOK", 3.0),
	}
}

// envInt reads an integer environment variable with a default value.
func envInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// envFloat reads a float64 environment variable with a default value.
func envFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}
