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
	"math"
	"testing"
	"time"
)

func newTestBudget(limitUSD, costPerMTok float64) (*DailyBudget, *time.Time) {
	b := NewDailyBudget(limitUSD, costPerMTok, nil)
	clock := time.Date(2026, 3, 5, 23, 50, 0, 0, time.UTC)
	b.now = func() time.Time { return clock }
	b.resetDate = b.today()
	return b, &clock
}

func TestDailyBudget_AllowedUnderLimit(t *testing.T) {
	b, _ := newTestBudget(10.0, 3.0)

	d := b.Check()
	if !d.Allowed {
		t.Fatal("fresh budget should allow")
	}
	if d.TokensUsed != 0 {
		t.Errorf("fresh budget should report 0 tokens, got %d", d.TokensUsed)
	}
	if math.Abs(d.BudgetRemaining-10.0) > 1e-9 {
		t.Errorf("full headroom expected, got %f", d.BudgetRemaining)
	}
}

func TestDailyBudget_CostAccumulation(t *testing.T) {
	b, _ := newTestBudget(10.0, 3.0)

	// 1M tokens at $3/MTok = $3.00 spent.
	b.Record(600_000, 400_000)

	d := b.Check()
	if !d.Allowed {
		t.Fatal("$3 of a $10 budget should still allow")
	}
	if d.TokensUsed != 1_000_000 {
		t.Errorf("tokens used should be 1000000, got %d", d.TokensUsed)
	}
	if math.Abs(d.EstimatedCost-3.0) > 1e-9 {
		t.Errorf("cost should be $3.00, got %f", d.EstimatedCost)
	}
	if math.Abs(d.BudgetRemaining-7.0) > 1e-9 {
		t.Errorf("remaining should be $7.00, got %f", d.BudgetRemaining)
	}
}

func TestDailyBudget_ExhaustionRejects(t *testing.T) {
	b, _ := newTestBudget(1.0, 3.0)

	// 400K tokens at $3/MTok = $1.20, past the $1 ceiling.
	b.Record(200_000, 200_000)

	d := b.Check()
	if d.Allowed {
		t.Fatal("spend past the ceiling should reject")
	}
	if d.BudgetRemaining != 0 {
		t.Errorf("exhausted budget should report 0 remaining, got %f", d.BudgetRemaining)
	}
}

func TestDailyBudget_CheckIsReadOnlyAcrossRollover(t *testing.T) {
	b, clock := newTestBudget(1.0, 3.0)

	b.Record(500_000, 0) // $1.50, exhausted
	if d := b.Check(); d.Allowed {
		t.Fatal("budget should be exhausted before rollover")
	}

	// Cross midnight UTC. Check must report fresh usage without mutating.
	*clock = clock.Add(20 * time.Minute)
	d := b.Check()
	if !d.Allowed {
		t.Fatal("new calendar day should allow again")
	}
	if d.TokensUsed != 0 {
		t.Errorf("post-rollover check should report 0 tokens, got %d", d.TokensUsed)
	}
	if b.tokensUsed != 500_000 {
		t.Errorf("Check must not mutate state, tokensUsed changed to %d", b.tokensUsed)
	}
}

func TestDailyBudget_RecordResetsOnceOnRollover(t *testing.T) {
	b, clock := newTestBudget(10.0, 3.0)

	b.Record(100_000, 0)
	*clock = clock.Add(20 * time.Minute) // next UTC day

	b.Record(50_000, 0)
	if b.tokensUsed != 50_000 {
		t.Errorf("first record of the new day should reset then add, got %d", b.tokensUsed)
	}

	b.Record(25_000, 0)
	if b.tokensUsed != 75_000 {
		t.Errorf("second record of the same day must not reset again, got %d", b.tokensUsed)
	}
}

func TestDailyBudget_ZeroLimitUnlimited(t *testing.T) {
	b, _ := newTestBudget(0, 3.0)

	b.Record(50_000_000, 50_000_000) // $300 at $3/MTok

	d := b.Check()
	if !d.Allowed {
		t.Fatal("zero limit should never reject")
	}
	if d.BudgetRemaining != 0 {
		t.Errorf("unlimited budget reports no headroom figure, got %f", d.BudgetRemaining)
	}
}
