// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package govern enforces per-identity rate ceilings and a process-wide
// daily spending ceiling on model usage. Every model call is gated by a
// rate check (minute and hour windows per identity) and a budget check
// (cumulative token cost against a daily USD limit).
//
// Thread Safety:
//
//	All exported types are safe for concurrent use unless documented
//	otherwise. Counters are mutated under exclusive sections; lost
//	updates are correctness bugs, not tolerable races.
package govern

import (
	"errors"
	"time"
)

// =============================================================================
// Sentinel Errors
// =============================================================================

var (
	// ErrRateLimited is returned when an identity has exhausted its
	// minute or hour request ceiling.
	ErrRateLimited = errors.New("govern: rate limited")

	// ErrBudgetExhausted is returned when the process-wide daily USD
	// budget has been consumed.
	ErrBudgetExhausted = errors.New("govern: daily budget exhausted")
)

// =============================================================================
// Decisions
// =============================================================================

// RateDecision is the outcome of a rate-limit check for one identity.
//
// Thread Safety: RateDecision is a value type. Safe to copy.
type RateDecision struct {
	// Allowed is true when the request may proceed.
	Allowed bool

	// Remaining is the smaller of the two windows' remaining capacity,
	// minus one to reserve the current call. Never negative.
	Remaining int

	// ResetIn is the countdown until the limiting window resets.
	ResetIn time.Duration

	// MinuteLimit, MinuteRemaining, and MinuteReset describe the minute
	// window only, for the X-RateLimit-* response headers.
	MinuteLimit     int
	MinuteRemaining int
	MinuteReset     time.Time

	// Err is a human-readable rejection wrapping ErrRateLimited.
	// Nil when Allowed is true.
	Err error
}

// BudgetDecision is the outcome of a daily-budget check.
//
// Thread Safety: BudgetDecision is a value type. Safe to copy.
type BudgetDecision struct {
	// Allowed is true when spending has not yet reached the daily ceiling.
	Allowed bool

	// TokensUsed is the running token total for the current calendar day.
	TokensUsed int

	// EstimatedCost is the USD cost of TokensUsed at the configured
	// per-million-token rate.
	EstimatedCost float64

	// BudgetRemaining is the USD headroom left today. Never negative.
	BudgetRemaining float64
}
