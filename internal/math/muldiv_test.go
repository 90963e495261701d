package math_test

import (
	"testing"

	sdkmath "cosmossdk.io/math"

	vmath "VaultLedger/internal/math"
)

func intVal(v int64) sdkmath.Int { return sdkmath.NewInt(v) }

// ============================================================================
// Test: MulDiv rounding modes
// ============================================================================

func TestMulDiv_Exact(t *testing.T) {
	got := vmath.MulDiv(intVal(10), intVal(6), intVal(3), vmath.RoundDown)
	if !got.Equal(intVal(20)) {
		t.Errorf("got %s, want 20", got)
	}
}

func TestMulDiv_RoundDown(t *testing.T) {
	// 7*3/2 = 10.5 -> 10
	got := vmath.MulDiv(intVal(7), intVal(3), intVal(2), vmath.RoundDown)
	if !got.Equal(intVal(10)) {
		t.Errorf("got %s, want 10", got)
	}
}

func TestMulDiv_RoundUp(t *testing.T) {
	// 7*3/2 = 10.5 -> 11
	got := vmath.MulDiv(intVal(7), intVal(3), intVal(2), vmath.RoundUp)
	if !got.Equal(intVal(11)) {
		t.Errorf("got %s, want 11", got)
	}
}

func TestMulDiv_RoundUp_NoRemainder(t *testing.T) {
	got := vmath.MulDiv(intVal(8), intVal(3), intVal(2), vmath.RoundUp)
	if !got.Equal(intVal(12)) {
		t.Errorf("exact division must not round up: got %s, want 12", got)
	}
}

func TestMulDiv_RoundHalfEven(t *testing.T) {
	cases := []struct {
		a, b, denom, want int64
	}{
		{5, 1, 2, 2},  // 2.5 -> 2 (even)
		{7, 1, 2, 4},  // 3.5 -> 4 (even)
		{5, 1, 4, 1},  // 1.25 -> 1
		{7, 1, 4, 2},  // 1.75 -> 2
		{10, 1, 4, 2}, // 2.5 -> 2 (even)
	}
	for _, c := range cases {
		got := vmath.MulDiv(intVal(c.a), intVal(c.b), intVal(c.denom), vmath.RoundHalfEven)
		if !got.Equal(intVal(c.want)) {
			t.Errorf("%d*%d/%d: got %s, want %d", c.a, c.b, c.denom, got, c.want)
		}
	}
}

func TestMulDiv_LargeProductNoOverflow(t *testing.T) {
	// Both factors near int64 max; the product needs 126 bits.
	a := sdkmath.NewInt(1).MulRaw(1 << 62)
	got := vmath.MulDiv(a, a, a, vmath.RoundDown)
	if !got.Equal(a) {
		t.Errorf("a*a/a should be a: got %s, want %s", got, a)
	}
}

func TestMulDiv_PanicsOnZeroDenominator(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on zero denominator")
		}
	}()
	vmath.MulDiv(intVal(1), intVal(1), intVal(0), vmath.RoundDown)
}

func TestMinInt(t *testing.T) {
	if got := vmath.MinInt(intVal(3), intVal(5)); !got.Equal(intVal(3)) {
		t.Errorf("got %s, want 3", got)
	}
	if got := vmath.MinInt(intVal(5), intVal(3)); !got.Equal(intVal(3)) {
		t.Errorf("got %s, want 3", got)
	}
}
