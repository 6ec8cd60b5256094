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
	"sync"
	"time"
)

// sweepInterval is how often the background sweep removes expired windows.
const sweepInterval = 5 * time.Minute

// rateWindow is a fixed-duration counting bucket for one identity.
// Lazily reset when now >= resetAt.
type rateWindow struct {
	count   int
	resetAt time.Time
}

// identityWindows holds both windows for one identity.
type identityWindows struct {
	minute rateWindow
	hour   rateWindow
}

// RateLimiter enforces per-identity request ceilings over fixed minute and
// hour windows.
//
// Description:
//
//	A request is rejected when it would exceed either window's ceiling,
//	with the rejecting window's reset countdown. Windows are created on
//	an identity's first request, lazily reset on access once expired, and
//	swept periodically so idle identities do not accumulate.
//
//	Call order contract: Check, then, if allowed and the caller actually
//	proceeds, Record. Check never mutates counters.
//
// Thread Safety: Safe for concurrent use via sync.Mutex.
type RateLimiter struct {
	mu        sync.Mutex
	perMinute int
	perHour   int
	windows   map[string]*identityWindows

	stopSweep chan struct{}
	stopOnce  sync.Once

	// now is swappable for tests.
	now func() time.Time
}

// NewRateLimiter creates a rate limiter with the given window ceilings and
// starts its background sweep.
//
// Inputs:
//   - perMinute: Requests allowed per identity per minute. 0 disables the window.
//   - perHour: Requests allowed per identity per hour. 0 disables the window.
//
// Outputs:
//   - *RateLimiter: Configured limiter. Callers should Close() it on shutdown.
func NewRateLimiter(perMinute, perHour int) *RateLimiter {
	rl := &RateLimiter{
		perMinute: perMinute,
		perHour:   perHour,
		windows:   make(map[string]*identityWindows),
		stopSweep: make(chan struct{}),
		now:       time.Now,
	}
	go rl.sweepLoop()
	return rl
}

// Close stops the background sweep. Idempotent.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stopSweep) })
}

// Check reports whether a request from the given identity may proceed.
//
// Description:
//
//	Both windows are lazily reset if expired, then tested against their
//	ceilings without incrementing. The reported Remaining is the minimum
//	of the two windows' remaining capacity minus one, reserving room for
//	the current call.
//
// Inputs:
//   - identity: The caller identity (session id, API key hash, client IP).
//
// Outputs:
//   - RateDecision: Allowed plus remaining/reset bookkeeping. On rejection,
//     Err wraps ErrRateLimited with the limiting window named.
//
// Thread Safety: Safe for concurrent use.
func (rl *RateLimiter) Check(identity string) RateDecision {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w := rl.windowsForLocked(identity, now)

	decision := RateDecision{
		Allowed:     true,
		MinuteLimit: rl.perMinute,
		MinuteReset: w.minute.resetAt,
	}

	if rl.perMinute > 0 && w.minute.count >= rl.perMinute {
		resetIn := w.minute.resetAt.Sub(now)
		decision.Allowed = false
		decision.ResetIn = resetIn
		decision.MinuteRemaining = 0
		decision.Err = fmt.Errorf("per-minute limit of %d reached, retry in %ds: %w",
			rl.perMinute, int(resetIn.Seconds())+1, ErrRateLimited)
		rateRejectedTotal.WithLabelValues("minute").Inc()
		return decision
	}

	if rl.perHour > 0 && w.hour.count >= rl.perHour {
		resetIn := w.hour.resetAt.Sub(now)
		decision.Allowed = false
		decision.ResetIn = resetIn
		decision.MinuteRemaining = remainingInWindow(w.minute.count, rl.perMinute)
		decision.Err = fmt.Errorf("per-hour limit of %d reached, retry in %ds: %w",
			rl.perHour, int(resetIn.Seconds())+1, ErrRateLimited)
		rateRejectedTotal.WithLabelValues("hour").Inc()
		return decision
	}

	minuteLeft := remainingInWindow(w.minute.count, rl.perMinute)
	hourLeft := remainingInWindow(w.hour.count, rl.perHour)

	// Reserve capacity for the current call.
	remaining := min(minuteLeft, hourLeft) - 1
	if remaining < 0 {
		remaining = 0
	}
	decision.Remaining = remaining
	decision.MinuteRemaining = minuteLeft
	decision.ResetIn = w.minute.resetAt.Sub(now)
	rateAllowedTotal.Inc()
	return decision
}

// Record counts an accepted request against both of the identity's windows.
//
// Inputs:
//   - identity: The caller identity previously passed to Check.
//
// Thread Safety: Safe for concurrent use.
func (rl *RateLimiter) Record(identity string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w := rl.windowsForLocked(identity, now)
	w.minute.count++
	w.hour.count++
}

// SweepExpired removes identities whose windows have both expired.
//
// Outputs:
//   - int: Number of identities removed.
//
// Thread Safety: Safe for concurrent use.
func (rl *RateLimiter) SweepExpired() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for identity, w := range rl.windows {
		if !now.Before(w.minute.resetAt) && !now.Before(w.hour.resetAt) {
			delete(rl.windows, identity)
			removed++
		}
	}
	rateTrackedIdentities.Set(float64(len(rl.windows)))
	return removed
}

// windowsForLocked returns the identity's windows, creating them on first
// request and lazily resetting any that have expired. Caller must hold mu.
func (rl *RateLimiter) windowsForLocked(identity string, now time.Time) *identityWindows {
	w, ok := rl.windows[identity]
	if !ok {
		w = &identityWindows{
			minute: rateWindow{resetAt: now.Add(time.Minute)},
			hour:   rateWindow{resetAt: now.Add(time.Hour)},
		}
		rl.windows[identity] = w
		rateTrackedIdentities.Set(float64(len(rl.windows)))
		return w
	}

	if !now.Before(w.minute.resetAt) {
		w.minute = rateWindow{resetAt: now.Add(time.Minute)}
	}
	if !now.Before(w.hour.resetAt) {
		w.hour = rateWindow{resetAt: now.Add(time.Hour)}
	}
	return w
}

// remainingInWindow returns ceiling-count, treating ceiling 0 as unlimited.
func remainingInWindow(count, ceiling int) int {
	if ceiling == 0 {
		return int(^uint(0) >> 1) // effectively unlimited
	}
	left := ceiling - count
	if left < 0 {
		return 0
	}
	return left
}

// sweepLoop runs the periodic sweep until Close is called.
func (rl *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.SweepExpired()
		case <-rl.stopSweep:
			return
		}
	}
}
