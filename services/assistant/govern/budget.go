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
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DailyBudget tracks process-wide token consumption against a daily USD ceiling.
//
// Description:
//
//	A single shared counter accumulates tokens across all identities and
//	resets exactly once per calendar-day rollover, detected by wall-clock
//	date comparison rather than elapsed time; a long-running process must
//	not drift. Record is the only mutator; Check is read-only and reports
//	zero usage after an unrecorded rollover.
//
//	A limit of 0 means unlimited (no enforcement).
//
// Thread Safety: Safe for concurrent use via sync.Mutex.
type DailyBudget struct {
	mu             sync.Mutex
	tokensUsed     int
	resetDate      string // YYYY-MM-DD of the day tokensUsed belongs to
	dailyLimitUSD  float64
	costPerMTokUSD float64
	logger         *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewDailyBudget creates a budget governor.
//
// Inputs:
//   - dailyLimitUSD: Maximum spend per calendar day. 0 means unlimited.
//   - costPerMTokUSD: Cost per million tokens, used for all estimates.
//   - logger: Logger for rollover and exhaustion events. Nil uses slog.Default().
//
// Outputs:
//   - *DailyBudget: Configured governor.
func NewDailyBudget(dailyLimitUSD, costPerMTokUSD float64, logger *slog.Logger) *DailyBudget {
	if logger == nil {
		logger = slog.Default()
	}
	b := &DailyBudget{
		dailyLimitUSD:  dailyLimitUSD,
		costPerMTokUSD: costPerMTokUSD,
		logger:         logger,
		now:            time.Now,
	}
	b.resetDate = b.today()
	return b
}

// Check reports whether spending is still below the daily ceiling.
//
// Outputs:
//   - BudgetDecision: Allowed plus current usage and USD headroom.
//
// Thread Safety: Safe for concurrent use.
func (b *DailyBudget) Check() BudgetDecision {
	b.mu.Lock()
	defer b.mu.Unlock()

	tokensUsed := b.tokensUsed
	if b.today() != b.resetDate {
		// The day rolled over but nothing has been recorded yet. Report
		// fresh usage without mutating; Record owns the actual reset.
		tokensUsed = 0
	}

	cost := b.costUSD(tokensUsed)
	decision := BudgetDecision{
		Allowed:       true,
		TokensUsed:    tokensUsed,
		EstimatedCost: cost,
	}

	if b.dailyLimitUSD > 0 {
		remaining := b.dailyLimitUSD - cost
		if remaining <= 0 {
			decision.Allowed = false
			decision.BudgetRemaining = 0
			budgetRejectedTotal.Inc()
			return decision
		}
		decision.BudgetRemaining = remaining
	}

	return decision
}

// Record adds actual token usage to the daily total.
//
// Description:
//
//	The only mutator. Detects calendar-day rollover by date string
//	comparison and resets the running total exactly once before adding.
//
// Inputs:
//   - inputTokens: Input tokens consumed by the call.
//   - outputTokens: Output tokens consumed by the call.
//
// Thread Safety: Safe for concurrent use.
func (b *DailyBudget) Record(inputTokens, outputTokens int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	today := b.today()
	if today != b.resetDate {
		b.logger.Info("daily budget rollover",
			slog.String("previous_date", b.resetDate),
			slog.Int("tokens_spent", b.tokensUsed),
		)
		b.tokensUsed = 0
		b.resetDate = today
	}

	b.tokensUsed += inputTokens + outputTokens
	budgetTokensToday.Set(float64(b.tokensUsed))
	budgetCostUSDToday.Set(b.costUSD(b.tokensUsed))
}

// Summary returns a human-readable spend summary.
func (b *DailyBudget) Summary() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	cost := b.costUSD(b.tokensUsed)
	if b.dailyLimitUSD == 0 {
		return fmt.Sprintf("%s: %d tokens, $%.4f (unlimited)", b.resetDate, b.tokensUsed, cost)
	}
	return fmt.Sprintf("%s: %d tokens, $%.4f / $%.2f limit", b.resetDate, b.tokensUsed, cost, b.dailyLimitUSD)
}

// costUSD converts a token count to USD at the configured rate.
func (b *DailyBudget) costUSD(tokens int) float64 {
	return float64(tokens) * b.costPerMTokUSD / 1_000_000
}

// today returns the wall-clock date in UTC as YYYY-MM-DD.
func (b *DailyBudget) today() string {
	return b.now().UTC().Format("2006-01-02")
}
