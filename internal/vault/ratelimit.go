package vault

import (
	sdkmath "cosmossdk.io/math"
)

// RateLimitWindow tracks cumulative usage inside the current period and
// resets on rollover. It is a plain counter: the caller checks the cap and
// must reject before consuming (check-then-act). One window exists per
// limited operation class (deposits, withdrawals).
type RateLimitWindow struct {
	period uint64
	used   sdkmath.Int
}

func NewRateLimitWindow() *RateLimitWindow {
	return &RateLimitWindow{used: sdkmath.ZeroInt()}
}

// Used returns the usage recorded for the current period. A period different
// from the stored one reads as zero without mutating the window.
func (w *RateLimitWindow) Used(currentPeriod uint64) sdkmath.Int {
	if currentPeriod != w.period {
		return sdkmath.ZeroInt()
	}
	return w.used
}

// Remaining returns cap - used, clamped at zero.
func (w *RateLimitWindow) Remaining(cap sdkmath.Int, currentPeriod uint64) sdkmath.Int {
	used := w.Used(currentPeriod)
	if used.GTE(cap) {
		return sdkmath.ZeroInt()
	}
	return cap.Sub(used)
}

// WouldExceed reports whether consuming amount would push usage over cap.
func (w *RateLimitWindow) WouldExceed(amount, cap sdkmath.Int, currentPeriod uint64) bool {
	return w.Used(currentPeriod).Add(amount).GT(cap)
}

// Consume records usage, rolling the window over first if the period changed.
func (w *RateLimitWindow) Consume(amount sdkmath.Int, currentPeriod uint64) {
	if currentPeriod != w.period {
		w.period = currentPeriod
		w.used = sdkmath.ZeroInt()
	}
	w.used = w.used.Add(amount)
}

// Snapshot returns the stored period and usage for persistence.
func (w *RateLimitWindow) Snapshot() (period uint64, used sdkmath.Int) {
	return w.period, w.used
}

// Restore replaces the window state from a snapshot.
func (w *RateLimitWindow) Restore(period uint64, used sdkmath.Int) {
	w.period = period
	w.used = used
}
