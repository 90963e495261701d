package math_test

import (
	"testing"

	sdkmath "cosmossdk.io/math"

	vmath "VaultLedger/internal/math"
)

// ============================================================================
// Test: linear accrual
// ============================================================================

func TestAccruedSince_OneDayOnePercent(t *testing.T) {
	// 1000 at 1%/day over exactly one day -> 10.
	got := vmath.AccruedSince(intVal(1000), 10_000, vmath.SecondsPerDay, vmath.RoundDown)
	if !got.Equal(intVal(10)) {
		t.Errorf("got %s, want 10", got)
	}
}

func TestAccruedSince_ZeroElapsed(t *testing.T) {
	got := vmath.AccruedSince(intVal(1000), 10_000, 0, vmath.RoundDown)
	if !got.IsZero() {
		t.Errorf("zero elapsed must accrue nothing: got %s", got)
	}
}

func TestAccruedSince_ZeroRate(t *testing.T) {
	got := vmath.AccruedSince(intVal(1000), 0, vmath.SecondsPerDay, vmath.RoundDown)
	if !got.IsZero() {
		t.Errorf("zero rate must accrue nothing: got %s", got)
	}
}

func TestAccruedSince_Linearity(t *testing.T) {
	// Half a day accrues exactly half of a full day at even amounts.
	full := vmath.AccruedSince(intVal(2000), 10_000, vmath.SecondsPerDay, vmath.RoundDown)
	half := vmath.AccruedSince(intVal(2000), 10_000, vmath.SecondsPerDay/2, vmath.RoundDown)
	if !half.MulRaw(2).Equal(full) {
		t.Errorf("half-day accrual %s is not half of full-day %s", half, full)
	}
}

func TestDiscount_InvertsAccrual(t *testing.T) {
	// principal + accrued(principal) grown back through Discount recovers
	// the principal when the arithmetic is exact.
	principal := intVal(1_000_000)
	rate := int64(10_000)
	elapsed := int64(vmath.SecondsPerDay)

	grown := principal.Add(vmath.AccruedSince(principal, rate, elapsed, vmath.RoundDown))
	back := vmath.Discount(grown, rate, elapsed, vmath.RoundDown)
	if !back.Equal(principal) {
		t.Errorf("got %s, want %s", back, principal)
	}
}

func TestDiscount_NeverExceedsInput(t *testing.T) {
	for _, a := range []int64{1, 7, 100, 999, 123_456} {
		got := vmath.Discount(intVal(a), 50_000, 3600, vmath.RoundDown)
		if got.GT(intVal(a)) {
			t.Errorf("discount of %d produced %s", a, got)
		}
	}
}

// ============================================================================
// Test: vesting
// ============================================================================

func TestVested_Partial(t *testing.T) {
	// 700 over 7 units, 3 elapsed -> 300.
	got := vmath.Vested(intVal(700), 7, 3, vmath.RoundDown)
	if !got.Equal(intVal(300)) {
		t.Errorf("got %s, want 300", got)
	}
}

func TestVested_Complete(t *testing.T) {
	got := vmath.Vested(intVal(700), 7, 7, vmath.RoundDown)
	if !got.Equal(intVal(700)) {
		t.Errorf("got %s, want 700", got)
	}
	got = vmath.Vested(intVal(700), 7, 100, vmath.RoundDown)
	if !got.Equal(intVal(700)) {
		t.Errorf("past the period must stay capped: got %s, want 700", got)
	}
}

func TestVested_NothingElapsed(t *testing.T) {
	got := vmath.Vested(intVal(700), 7, 0, vmath.RoundDown)
	if !got.IsZero() {
		t.Errorf("got %s, want 0", got)
	}
}

// ============================================================================
// Test: compound preview
// ============================================================================

func TestCompoundGrowth_MatchesLinearForOneDay(t *testing.T) {
	principal := intVal(1_000_000)
	compound := vmath.CompoundGrowth(principal, 10_000, vmath.SecondsPerDay)
	linear := principal.Add(vmath.AccruedSince(principal, 10_000, vmath.SecondsPerDay, vmath.RoundDown))
	if !compound.Equal(linear) {
		t.Errorf("one-day compound %s != linear %s", compound, linear)
	}
}

func TestCompoundGrowth_ExceedsLinearBeyondOneDay(t *testing.T) {
	principal := intVal(1_000_000)
	elapsed := int64(10 * vmath.SecondsPerDay)
	compound := vmath.CompoundGrowth(principal, 10_000, elapsed)
	linear := principal.Add(vmath.AccruedSince(principal, 10_000, elapsed, vmath.RoundDown))
	if !compound.GT(linear) {
		t.Errorf("10-day compound %s should exceed linear %s", compound, linear)
	}
}

func TestCompoundGrowth_ZeroInputs(t *testing.T) {
	if got := vmath.CompoundGrowth(intVal(500), 0, 86_400); !got.Equal(intVal(500)) {
		t.Errorf("zero rate: got %s, want 500", got)
	}
	if got := vmath.CompoundGrowth(sdkmath.ZeroInt(), 10_000, 86_400); !got.IsZero() {
		t.Errorf("zero principal: got %s, want 0", got)
	}
}
